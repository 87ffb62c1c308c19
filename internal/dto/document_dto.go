package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadResponse struct {
	DocumentIds []uuid.UUID `json:"document_ids"`
	Files       []string    `json:"files"`
	Chunks      int         `json:"chunks"`
}

type DocumentResponse struct {
	Id            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	FileSizeHuman string    `json:"file_size_human"`
	FileType      string    `json:"file_type"`
	UploadDate    time.Time `json:"upload_date"`
	LastModified  time.Time `json:"last_modified"`
	IsActive      bool      `json:"is_active"`
}

// AdminDocumentResponse adds the fields only operators get to see.
type AdminDocumentResponse struct {
	DocumentResponse
	UserId        uuid.UUID `json:"user_id"`
	FilePath      string    `json:"file_path"`
	CollectionRef *string   `json:"collection_ref"`
}

type DeleteDocumentResponse struct {
	Id             uuid.UUID `json:"id"`
	IndexEntries   int       `json:"index_entries"`
	CleanupPending bool      `json:"cleanup_pending"`
}

type PurgeIndexResponse struct {
	DocumentId uuid.UUID `json:"document_id"`
	Removed    int       `json:"removed"`
}

type AdminDocumentFilter struct {
	UserId          *uuid.UUID
	IncludeInactive bool
	Page            int
	Limit           int
}

type DocumentPage struct {
	Items []*AdminDocumentResponse `json:"items"`
	Total int64                    `json:"total"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
}

// IndexCleanupMessage is the payload on the index.cleanup topic.
type IndexCleanupMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
