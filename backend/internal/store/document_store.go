package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type DocumentStore struct{ db *gorm.DB }

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// GetDocument implements collab.DocumentPersister.
func (s *DocumentStore) GetDocument(ctx context.Context, docID string) (string, string, uint64, error) {
	var m DocumentModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", docID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", 0, ErrNotFound
	}
	if err != nil {
		return "", "", 0, err
	}
	return m.Title, m.Content, m.Version, nil
}

// SaveDocument persists content plus the derived word/char counts.
func (s *DocumentStore) SaveDocument(ctx context.Context, docID, content string, version uint64, wordCount, charCount int) error {
	res := s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", docID).Updates(map[string]any{
		"content":    content,
		"version":    version,
		"word_count": wordCount,
		"char_count": charCount,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DocumentStore) CreateDocument(ctx context.Context, m DocumentModel) error {
	return s.db.WithContext(ctx).Create(&m).Error
}

// PutDocument is the full-update path behind HTTP PUT.
func (s *DocumentStore) PutDocument(ctx context.Context, m DocumentModel) error {
	res := s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", m.ID).Updates(map[string]any{
		"title":      m.Title,
		"content":    m.Content,
		"version":    m.Version,
		"word_count": m.WordCount,
		"char_count": m.CharCount,
		"archived":   m.Archived,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DocumentStore) GetDocumentModel(ctx context.Context, docID string) (DocumentModel, error) {
	var m DocumentModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", docID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DocumentModel{}, ErrNotFound
	}
	return m, err
}

func (s *DocumentStore) GetDocumentID(ctx context.Context, title string) (string, error) {
	var m DocumentModel
	err := s.db.WithContext(ctx).Select("id").First(&m, "title = ?", title).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	return m.ID, err
}
