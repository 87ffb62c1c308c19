package service

import (
	"context"
	"encoding/json"
	"time"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/events"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/storage"
)

const documentsModule = "DOCUMENTS"

// DocumentDeleter runs the three deletion steps shared by the owner and admin
// paths. Only the registry update can fail the request.
type DocumentDeleter struct {
	uowFactory     unitofwork.RepositoryFactory
	purger         *rag.Purger
	storage        storage.FileStorage
	cleanupQueue   IPublisherService
	eventPublisher events.Publisher
	logger         logger.ILogger
	now            func() time.Time
}

func NewDocumentDeleter(
	uowFactory unitofwork.RepositoryFactory,
	purger *rag.Purger,
	store storage.FileStorage,
	cleanupQueue IPublisherService,
	eventPublisher events.Publisher,
	log logger.ILogger,
) *DocumentDeleter {
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &DocumentDeleter{
		uowFactory:     uowFactory,
		purger:         purger,
		storage:        store,
		cleanupQueue:   cleanupQueue,
		eventPublisher: eventPublisher,
		logger:         log,
		now:            time.Now,
	}
}

func (d *DocumentDeleter) Delete(ctx context.Context, doc *entity.Document, actor string) (*dto.DeleteDocumentResponse, error) {
	details := map[string]interface{}{"document_id": doc.Id.String(), "actor": actor}
	res := &dto.DeleteDocumentResponse{Id: doc.Id}

	// 1. Index entries
	removed, err := d.purger.PurgeDocument(ctx, doc.Id)
	purge := rag.BestEffort("index_cleanup", err)
	if purge.OK() {
		res.IndexEntries = removed
	} else {
		purge.Log(d.logger, documentsModule, details)
		res.CleanupPending = true
		d.enqueueCleanup(ctx, doc)
	}

	// 2. File
	rag.BestEffort("remove_file", d.storage.Delete(doc.FilePath)).Log(d.logger, documentsModule, details)

	// 3. Registry
	uow := d.uowFactory.NewUnitOfWork(ctx)
	_, err = uow.DocumentRepository().SoftDelete(ctx, d.now().UTC(), doc.Id)
	if step := rag.Required("soft_delete", err); !step.OK() {
		step.Log(d.logger, documentsModule, details)
		return nil, apperror.Internal("Failed to delete document", err)
	}

	if err := d.eventPublisher.Publish(ctx, events.New(events.DocumentDeleted, map[string]interface{}{
		"user_id":     doc.UserId.String(),
		"document_id": doc.Id.String(),
		"actor":       actor,
	})); err != nil {
		rag.BestEffort("publish", err).Log(d.logger, documentsModule, details)
	}

	d.logger.Info(documentsModule, "Document deleted", map[string]interface{}{
		"document_id":     doc.Id.String(),
		"actor":           actor,
		"index_entries":   res.IndexEntries,
		"cleanup_pending": res.CleanupPending,
	})
	return res, nil
}

func (d *DocumentDeleter) enqueueCleanup(ctx context.Context, doc *entity.Document) {
	if d.cleanupQueue == nil {
		return
	}
	payload, err := json.Marshal(dto.IndexCleanupMessage{DocumentId: doc.Id})
	if err == nil {
		err = d.cleanupQueue.Publish(ctx, payload)
	}
	rag.BestEffort("enqueue_cleanup", err).Log(d.logger, documentsModule, map[string]interface{}{
		"document_id": doc.Id.String(),
	})
}
