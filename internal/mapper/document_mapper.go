package mapper

import (
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/model"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}
	return &entity.Document{
		Id:            d.Id,
		UserId:        d.UserId,
		Title:         d.Title,
		FileName:      d.FileName,
		FilePath:      d.FilePath,
		FileSize:      d.FileSize,
		FileType:      d.FileType,
		CollectionRef: d.CollectionRef,
		UploadDate:    d.UploadDate,
		LastModified:  d.LastModified,
		IsActive:      d.IsActive,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}
	return &model.Document{
		Id:            d.Id,
		UserId:        d.UserId,
		Title:         d.Title,
		FileName:      d.FileName,
		FilePath:      d.FilePath,
		FileSize:      d.FileSize,
		FileType:      d.FileType,
		CollectionRef: d.CollectionRef,
		UploadDate:    d.UploadDate,
		LastModified:  d.LastModified,
		IsActive:      d.IsActive,
	}
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}
