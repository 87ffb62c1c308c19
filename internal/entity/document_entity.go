package entity

import (
	"time"

	"github.com/google/uuid"

	"rag-chatbot-be/pkg/utils"
)

// Document is the registry row for one uploaded file. Rows are never removed;
// deletion flips IsActive.
type Document struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	Title         string
	FileName      string
	FilePath      string
	FileSize      int64
	FileType      string
	CollectionRef *string
	UploadDate    time.Time
	LastModified  time.Time
	IsActive      bool
}

func (d *Document) FileSizeHuman() string {
	return utils.HumanSize(d.FileSize)
}

func (d *Document) OwnedBy(userID uuid.UUID) bool {
	return d.UserId == userID
}
