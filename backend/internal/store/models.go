package store

import "time"

// Row types for gorm. The collab package owns the in-session shapes; these
// mirror them onto MySQL tables.

type DocumentModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Title     string `gorm:"size:255"`
	OwnerID   uint64 `gorm:"index"`
	Content   string `gorm:"type:longtext"`
	Version   uint64
	WordCount int
	CharCount int
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DocumentModel) TableName() string { return "documents" }

type CommentModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	DocID      string `gorm:"index;size:64"`
	AuthorID   uint64
	AuthorName string `gorm:"size:255"`
	Body       string `gorm:"type:text"`
	Resolved   bool
	ResolvedBy uint64
	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (CommentModel) TableName() string { return "document_comments" }

type SuggestionModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	DocID         string `gorm:"index;size:64"`
	AuthorID      uint64
	AuthorName    string `gorm:"size:255"`
	OriginalText  string `gorm:"type:text"`
	SuggestedText string `gorm:"type:text"`
	StartOffset   int
	EndOffset     int
	Status        string `gorm:"size:16;index"`
	ReviewerID    uint64
	ReviewedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (SuggestionModel) TableName() string { return "document_suggestions" }

// SnapshotModel exists for migration only; the snapshot store writes the
// table through database/sql.
type SnapshotModel struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	DocumentID string `gorm:"size:64;uniqueIndex:uniq_doc_rev"`
	Revision   uint64 `gorm:"uniqueIndex:uniq_doc_rev"`
	Content    string `gorm:"type:longtext"`
	CreatedAt  time.Time
}

func (SnapshotModel) TableName() string { return "document_snapshots" }

type ConflictModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	DocID         string `gorm:"index;size:64"`
	Description   string `gorm:"type:text"`
	LocalVersion  uint64
	RemoteVersion uint64
	Resolution    string `gorm:"size:16"`
	ResolvedBy    uint64
	ResolvedAt    *time.Time
	DetectedAt    time.Time
}

func (ConflictModel) TableName() string { return "document_conflicts" }
