package service

import (
	"context"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/rag"

	"github.com/google/uuid"
)

// DocumentRegistry is the relational side of the pipelines: ingestion
// registers rows through it and retrieval asks it which documents are live.
type DocumentRegistry struct {
	uowFactory unitofwork.RepositoryFactory
	now        func() time.Time
}

var (
	_ rag.DocumentSink    = (*DocumentRegistry)(nil)
	_ rag.ActiveDocuments = (*DocumentRegistry)(nil)
)

func NewDocumentRegistry(uowFactory unitofwork.RepositoryFactory) *DocumentRegistry {
	return &DocumentRegistry{uowFactory: uowFactory, now: time.Now}
}

func (r *DocumentRegistry) Register(ctx context.Context, record rag.DocumentRecord) error {
	now := r.now().UTC()
	collection := record.Collection
	doc := &entity.Document{
		Id:            record.ID,
		UserId:        record.OwnerID,
		Title:         record.Title,
		FileName:      record.FileName,
		FilePath:      record.FilePath,
		FileSize:      record.FileSize,
		FileType:      record.FileType,
		CollectionRef: &collection,
		UploadDate:    now,
		LastModified:  now,
		IsActive:      true,
	}
	return r.uowFactory.NewUnitOfWork(ctx).DocumentRepository().Create(ctx, doc)
}

func (r *DocumentRegistry) Discard(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.uowFactory.NewUnitOfWork(ctx).DocumentRepository().SoftDelete(ctx, r.now().UTC(), ids...)
	return err
}

func (r *DocumentRegistry) ActiveDocumentIDs(ctx context.Context, owner uuid.UUID) (map[string]struct{}, error) {
	ids, err := r.uowFactory.NewUnitOfWork(ctx).DocumentRepository().ActiveIDsByUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id.String()] = struct{}{}
	}
	return out, nil
}
