package service

import (
	"context"
	"time"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/specification"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/rag"

	"github.com/google/uuid"
)

const adminModule = "ADMIN"

// LogReader is the read side of the zap file logger.
type LogReader interface {
	GetLogs(level string, limit, offset int) ([]logger.LogEntry, error)
	GetLogById(id string) (*logger.LogEntry, error)
}

type IAdminService interface {
	ListDocuments(ctx context.Context, filter dto.AdminDocumentFilter) (*dto.DocumentPage, error)
	DeleteDocument(ctx context.Context, adminId, documentId uuid.UUID) (*dto.DeleteDocumentResponse, error)
	PurgeIndex(ctx context.Context, documentId uuid.UUID) (*dto.PurgeIndexResponse, error)
	GetLogs(ctx context.Context, level string, page, limit int) ([]*dto.LogListResponse, error)
	GetLogDetail(ctx context.Context, logId string) (*dto.LogDetailResponse, error)
}

type adminService struct {
	uowFactory unitofwork.RepositoryFactory
	deleter    *DocumentDeleter
	purger     *rag.Purger
	logs       LogReader
	logger     logger.ILogger
}

func NewAdminService(
	uowFactory unitofwork.RepositoryFactory,
	deleter *DocumentDeleter,
	purger *rag.Purger,
	logs LogReader,
	log logger.ILogger,
) IAdminService {
	return &adminService{
		uowFactory: uowFactory,
		deleter:    deleter,
		purger:     purger,
		logs:       logs,
		logger:     log,
	}
}

func (s *adminService) ListDocuments(ctx context.Context, filter dto.AdminDocumentFilter) (*dto.DocumentPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	var specs []specification.Specification
	if filter.UserId != nil {
		specs = append(specs, specification.UserOwnedBy{UserID: *filter.UserId})
	}
	if !filter.IncludeInactive {
		specs = append(specs, specification.ActiveDocuments{})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	total, err := uow.DocumentRepository().Count(ctx, specs...)
	if err != nil {
		return nil, apperror.Internal("Failed to count documents", err)
	}

	specs = append(specs,
		specification.RecentDocumentsFirst{},
		specification.Pagination{Limit: filter.Limit, Offset: (filter.Page - 1) * filter.Limit},
	)
	docs, err := uow.DocumentRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, apperror.Internal("Failed to list documents", err)
	}

	page := &dto.DocumentPage{
		Items: make([]*dto.AdminDocumentResponse, 0, len(docs)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for _, doc := range docs {
		page.Items = append(page.Items, toAdminDocumentResponse(doc))
	}
	return page, nil
}

func (s *adminService) DeleteDocument(ctx context.Context, adminId, documentId uuid.UUID) (*dto.DeleteDocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId}, specification.ActiveDocuments{})
	if err != nil {
		return nil, apperror.Internal("Failed to load document", err)
	}
	if doc == nil {
		return nil, apperror.NotFound("Document not found")
	}
	return s.deleter.Delete(ctx, doc, "admin:"+adminId.String())
}

// PurgeIndex drops a document's index entries without touching its registry
// row. It works for inactive documents too, which is how operators clear
// leftovers by hand.
func (s *adminService) PurgeIndex(ctx context.Context, documentId uuid.UUID) (*dto.PurgeIndexResponse, error) {
	removed, err := s.purger.PurgeDocument(ctx, documentId)
	if err != nil {
		s.logger.Error(adminModule, "Index purge failed", map[string]interface{}{
			"document_id": documentId.String(),
			"error":       err.Error(),
		})
		return nil, apperror.Upstream("Vector index unavailable", err)
	}
	return &dto.PurgeIndexResponse{DocumentId: documentId, Removed: removed}, nil
}

func (s *adminService) GetLogs(ctx context.Context, level string, page, limit int) ([]*dto.LogListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	entries, err := s.logs.GetLogs(level, limit, (page-1)*limit)
	if err != nil {
		return nil, apperror.Internal("Failed to read logs", err)
	}

	res := make([]*dto.LogListResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, toLogListResponse(e))
	}
	return res, nil
}

func (s *adminService) GetLogDetail(ctx context.Context, logId string) (*dto.LogDetailResponse, error) {
	entry, err := s.logs.GetLogById(logId)
	if err != nil || entry == nil {
		return nil, apperror.NotFound("Log not found")
	}
	return &dto.LogDetailResponse{
		LogListResponse: *toLogListResponse(*entry),
		Details:         entry.Details,
	}, nil
}

func toLogListResponse(e logger.LogEntry) *dto.LogListResponse {
	res := &dto.LogListResponse{
		Id:      e.Id,
		Level:   e.Level,
		Module:  e.Module,
		Message: e.Message,
	}
	if t, err := parseLogTime(e.Timestamp); err == nil {
		res.CreatedAt = t
	}
	return res
}

// zap's ISO8601 encoder, as written to the log file.
const logTimeLayout = "2006-01-02T15:04:05.000Z0700"

func parseLogTime(raw string) (time.Time, error) {
	if t, err := time.Parse(logTimeLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
