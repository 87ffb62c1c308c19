package model

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId        uuid.UUID `gorm:"type:uuid;not null;index:idx_documents_owner_active,priority:1"`
	Title         string    `gorm:"type:varchar(255);not null"`
	FileName      string    `gorm:"type:varchar(255);not null"`
	FilePath      string    `gorm:"type:text;not null"`
	FileSize      int64     `gorm:"not null;default:0"`
	FileType      string    `gorm:"type:varchar(100)"`
	CollectionRef *string   `gorm:"type:varchar(255);index"`
	UploadDate    time.Time `gorm:"not null;index"`
	LastModified  time.Time `gorm:"not null"`
	IsActive      bool      `gorm:"not null;index:idx_documents_owner_active,priority:2"`
}

func (Document) TableName() string {
	return "documents"
}

// All lists every registry table, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&UserRefreshToken{},
		&Document{},
	}
}
