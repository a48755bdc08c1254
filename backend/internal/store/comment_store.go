package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
)

type CommentStore struct{ db *gorm.DB }

func NewCommentStore(db *gorm.DB) *CommentStore {
	return &CommentStore{db: db}
}

func commentRow(c collab.Comment) CommentModel {
	return CommentModel{
		ID:         c.ID,
		DocID:      c.DocID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Body:       c.Body,
		Resolved:   c.Resolved,
		ResolvedBy: c.ResolvedBy,
		ResolvedAt: c.ResolvedAt,
		CreatedAt:  c.CreatedAt,
	}
}

func (m CommentModel) toComment() collab.Comment {
	return collab.Comment{
		ID:         m.ID,
		DocID:      m.DocID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Body:       m.Body,
		Resolved:   m.Resolved,
		ResolvedBy: m.ResolvedBy,
		ResolvedAt: m.ResolvedAt,
		CreatedAt:  m.CreatedAt,
	}
}

func (s *CommentStore) CreateComment(ctx context.Context, c collab.Comment) error {
	row := commentRow(c)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *CommentStore) UpdateComment(ctx context.Context, c collab.Comment) error {
	row := commentRow(c)
	res := s.db.WithContext(ctx).Model(&CommentModel{}).Where("id = ? AND doc_id = ?", c.ID, c.DocID).Updates(map[string]any{
		"body":        row.Body,
		"resolved":    row.Resolved,
		"resolved_by": row.ResolvedBy,
		"resolved_at": row.ResolvedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CommentStore) DeleteComment(ctx context.Context, docID, commentID string) error {
	return s.db.WithContext(ctx).Delete(&CommentModel{}, "id = ? AND doc_id = ?", commentID, docID).Error
}

func (s *CommentStore) ListComments(ctx context.Context, docID string) ([]collab.Comment, error) {
	var rows []CommentModel
	if err := s.db.WithContext(ctx).Where("doc_id = ?", docID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]collab.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toComment())
	}
	return out, nil
}
