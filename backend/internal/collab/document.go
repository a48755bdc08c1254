package collab

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DocumentReplica is the session-local mutable copy of the shared document.
// Only the owning session writes to it: local edits through UpdateContent,
// remote text through the replication callbacks.
type DocumentReplica struct {
	ID      string
	Title   string
	Content string
	Version uint64

	Locked   bool
	LockedBy uint64
	LockedAt time.Time

	unsaved          bool
	lastSavedVersion uint64
	lastSavedAt      time.Time
}

func NewDocumentReplica(id, title, content string, version uint64) *DocumentReplica {
	return &DocumentReplica{ID: id, Title: title, Content: content, Version: version, lastSavedVersion: version}
}

// UpdateContent rewrites the replica if the text actually changed, marking
// it unsaved and bumping the version. Identical content is a no-op.
func (d *DocumentReplica) UpdateContent(newText string) bool {
	if d.Content == newText {
		return false
	}
	d.Content = newText
	d.Version++
	d.unsaved = true
	return true
}

// Read-only accessors take value receivers so they work on snapshots.

func (d DocumentReplica) Unsaved() bool            { return d.unsaved }
func (d DocumentReplica) LastSavedVersion() uint64 { return d.lastSavedVersion }
func (d DocumentReplica) LastSavedAt() time.Time   { return d.lastSavedAt }

func (d *DocumentReplica) markSaved(at time.Time) {
	d.unsaved = false
	d.lastSavedVersion = d.Version
	d.lastSavedAt = at
}

// WordCount and CharCount feed the derived metadata persisted with a save.

func (d DocumentReplica) WordCount() int {
	return len(strings.Fields(d.Content))
}

func (d DocumentReplica) CharCount() int {
	return utf8.RuneCountInString(d.Content)
}

func (d *DocumentReplica) setLock(locked bool, userID uint64, at time.Time) {
	d.Locked = locked
	if locked {
		d.LockedBy = userID
		d.LockedAt = at
	} else {
		d.LockedBy = 0
		d.LockedAt = time.Time{}
	}
}
