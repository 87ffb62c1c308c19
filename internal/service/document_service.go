package service

import (
	"context"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/repository/specification"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/rag"

	"github.com/google/uuid"
)

type IDocumentService interface {
	Upload(ctx context.Context, userId uuid.UUID, source string, files []rag.Upload) (*dto.UploadResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error)
	Get(ctx context.Context, userId, documentId uuid.UUID) (*dto.DocumentResponse, error)
	Delete(ctx context.Context, userId, documentId uuid.UUID) (*dto.DeleteDocumentResponse, error)
}

type documentService struct {
	uowFactory unitofwork.RepositoryFactory
	ingestor   *rag.Ingestor
	deleter    *DocumentDeleter
}

func NewDocumentService(uowFactory unitofwork.RepositoryFactory, ingestor *rag.Ingestor, deleter *DocumentDeleter) IDocumentService {
	return &documentService{
		uowFactory: uowFactory,
		ingestor:   ingestor,
		deleter:    deleter,
	}
}

func (s *documentService) Upload(ctx context.Context, userId uuid.UUID, source string, files []rag.Upload) (*dto.UploadResponse, error) {
	res, err := s.ingestor.Ingest(ctx, rag.IngestRequest{OwnerID: userId, Source: source, Files: files})
	if err != nil {
		return nil, err
	}
	return &dto.UploadResponse{
		DocumentIds: res.DocumentIDs,
		Files:       res.Files,
		Chunks:      res.Chunks,
	}, nil
}

func (s *documentService) List(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.ActiveDocuments{},
		specification.RecentDocumentsFirst{},
	)
	if err != nil {
		return nil, apperror.Internal("Failed to list documents", err)
	}

	res := make([]*dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		res = append(res, toDocumentResponse(doc))
	}
	return res, nil
}

func (s *documentService) Get(ctx context.Context, userId, documentId uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.findOwned(ctx, userId, documentId)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (s *documentService) Delete(ctx context.Context, userId, documentId uuid.UUID) (*dto.DeleteDocumentResponse, error) {
	doc, err := s.findOwned(ctx, userId, documentId)
	if err != nil {
		return nil, err
	}
	return s.deleter.Delete(ctx, doc, userId.String())
}

// findOwned hides other users' documents behind the same 404 as missing ones.
func (s *documentService) findOwned(ctx context.Context, userId, documentId uuid.UUID) (*entity.Document, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: documentId},
		specification.UserOwnedBy{UserID: userId},
		specification.ActiveDocuments{},
	)
	if err != nil {
		return nil, apperror.Internal("Failed to load document", err)
	}
	if doc == nil {
		return nil, apperror.NotFound("Document not found")
	}
	return doc, nil
}

func toDocumentResponse(doc *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:            doc.Id,
		Title:         doc.Title,
		FileName:      doc.FileName,
		FileSize:      doc.FileSize,
		FileSizeHuman: doc.FileSizeHuman(),
		FileType:      doc.FileType,
		UploadDate:    doc.UploadDate,
		LastModified:  doc.LastModified,
		IsActive:      doc.IsActive,
	}
}

func toAdminDocumentResponse(doc *entity.Document) *dto.AdminDocumentResponse {
	return &dto.AdminDocumentResponse{
		DocumentResponse: *toDocumentResponse(doc),
		UserId:           doc.UserId,
		FilePath:         doc.FilePath,
		CollectionRef:    doc.CollectionRef,
	}
}
