package rag

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/vectorindex"
)

// Purger removes a document's chunks from the index: look the ids up by the
// document_id metadata, then delete that id set.
type Purger struct {
	index   vectorindex.Index
	logger  logger.ILogger
	timeout time.Duration
}

func NewPurger(index vectorindex.Index, log logger.ILogger, timeout time.Duration) *Purger {
	return &Purger{index: index, logger: log, timeout: timeout}
}

// PurgeDocument returns how many index entries were removed. Purging a
// document with no entries is a no-op, so retries are safe.
func (p *Purger) PurgeDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	ctx, span := tracer.Start(ctx, "rag.delete")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID.String()))

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ids, err := p.index.Get(ctx, vectorindex.Filter{vectorindex.MetaDocumentID: documentID.String()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := p.index.Delete(ctx, ids); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	if err := p.index.Persist(ctx); err != nil {
		BestEffort("persist", err).Log(p.logger, "INDEX", nil)
	}

	span.SetAttributes(attribute.Int("removed", len(ids)))
	p.logger.Info("INDEX", "Purged document chunks", map[string]interface{}{
		"document_id": documentID.String(),
		"removed":     len(ids),
	})
	return len(ids), nil
}
