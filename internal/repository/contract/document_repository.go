package contract

import (
	"context"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// SoftDelete flips is_active off for the given rows and stamps last_modified.
	// It returns how many active rows were changed.
	SoftDelete(ctx context.Context, at time.Time, ids ...uuid.UUID) (int64, error)
	ActiveIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// InactiveIDs lists documents soft-deleted at or after since, oldest first.
	InactiveIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}
