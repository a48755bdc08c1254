package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
)

type ConflictStore struct{ db *gorm.DB }

func NewConflictStore(db *gorm.DB) *ConflictStore {
	return &ConflictStore{db: db}
}

// RecordConflict keeps a durable trail of every detected conflict.
func (s *ConflictStore) RecordConflict(ctx context.Context, c collab.Conflict) error {
	row := ConflictModel{
		ID:            c.ID,
		DocID:         c.DocID,
		Description:   c.Description,
		LocalVersion:  c.LocalVersion,
		RemoteVersion: c.RemoteVersion,
		DetectedAt:    c.DetectedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// ResolveConflict implements collab.ConflictPersister: the chosen strategy
// is stamped onto the recorded conflict.
func (s *ConflictStore) ResolveConflict(ctx context.Context, docID, conflictID string, strategy collab.ResolutionStrategy) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&ConflictModel{}).Where("id = ? AND doc_id = ?", conflictID, docID).Updates(map[string]any{
		"resolution":  string(strategy),
		"resolved_at": &now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ConflictStore) ListOpenConflicts(ctx context.Context, docID string) ([]ConflictModel, error) {
	var rows []ConflictModel
	err := s.db.WithContext(ctx).Where("doc_id = ? AND resolved_at IS NULL", docID).Order("detected_at").Find(&rows).Error
	return rows, err
}
