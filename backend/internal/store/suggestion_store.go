package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
)

type SuggestionStore struct{ db *gorm.DB }

func NewSuggestionStore(db *gorm.DB) *SuggestionStore {
	return &SuggestionStore{db: db}
}

func suggestionRow(s collab.Suggestion) SuggestionModel {
	return SuggestionModel{
		ID:            s.ID,
		DocID:         s.DocID,
		AuthorID:      s.AuthorID,
		AuthorName:    s.AuthorName,
		OriginalText:  s.OriginalText,
		SuggestedText: s.SuggestedText,
		StartOffset:   s.Start,
		EndOffset:     s.End,
		Status:        string(s.Status),
		ReviewerID:    s.ReviewerID,
		ReviewedAt:    s.ReviewedAt,
		CreatedAt:     s.CreatedAt,
	}
}

func (m SuggestionModel) toSuggestion() collab.Suggestion {
	return collab.Suggestion{
		ID:            m.ID,
		DocID:         m.DocID,
		AuthorID:      m.AuthorID,
		AuthorName:    m.AuthorName,
		OriginalText:  m.OriginalText,
		SuggestedText: m.SuggestedText,
		Start:         m.StartOffset,
		End:           m.EndOffset,
		Status:        collab.SuggestionStatus(m.Status),
		ReviewerID:    m.ReviewerID,
		ReviewedAt:    m.ReviewedAt,
		CreatedAt:     m.CreatedAt,
	}
}

func (s *SuggestionStore) CreateSuggestion(ctx context.Context, sg collab.Suggestion) error {
	row := suggestionRow(sg)
	return s.db.WithContext(ctx).Create(&row).Error
}

// UpdateSuggestion persists a status transition with reviewer metadata.
func (s *SuggestionStore) UpdateSuggestion(ctx context.Context, sg collab.Suggestion) error {
	row := suggestionRow(sg)
	res := s.db.WithContext(ctx).Model(&SuggestionModel{}).Where("id = ? AND doc_id = ?", sg.ID, sg.DocID).Updates(map[string]any{
		"status":      row.Status,
		"reviewer_id": row.ReviewerID,
		"reviewed_at": row.ReviewedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SuggestionStore) ListSuggestions(ctx context.Context, docID string) ([]collab.Suggestion, error) {
	var rows []SuggestionModel
	if err := s.db.WithContext(ctx).Where("doc_id = ?", docID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]collab.Suggestion, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSuggestion())
	}
	return out, nil
}
