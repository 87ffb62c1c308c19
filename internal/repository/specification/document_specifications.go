package specification

import (
	"gorm.io/gorm"
)

type ActiveDocuments struct{}

func (s ActiveDocuments) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

type ByCollectionRef struct {
	Ref string
}

func (s ByCollectionRef) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("collection_ref = ?", s.Ref)
}

// RecentDocumentsFirst orders by upload date, newest first, with id as a tie-breaker.
type RecentDocumentsFirst struct{}

func (s RecentDocumentsFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("upload_date DESC").Order("id DESC")
}
