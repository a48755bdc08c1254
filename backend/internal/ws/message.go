package ws

import (
	"time"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
	"github.com/michaelayoade/dotmac-collab/backend/internal/ot/delta"
)

type ClientMessage struct {
	Type     string `json:"type"`
	DocID    string `json:"docId,omitempty"`
	DocTitle string `json:"docTitle,omitempty"`

	// updateContent
	Content string `json:"content,omitempty"`

	// op_submit
	BaseRevision uint64      `json:"baseRevision,omitempty"`
	ClientID     string      `json:"clientId,omitempty"`
	ClientSeq    uint64      `json:"clientSeq,omitempty"`
	Ops          delta.Delta `json:"ops,omitempty"`

	// presence
	Cursor    *collab.CursorPosition `json:"cursor,omitempty"`
	Selection *collab.SelectionRange `json:"selection,omitempty"`
	Status    string                 `json:"status,omitempty"`

	// comments
	Body      string `json:"body,omitempty"`
	CommentID string `json:"commentId,omitempty"`

	// suggestions
	SuggestionID  string `json:"suggestionId,omitempty"`
	OriginalText  string `json:"originalText,omitempty"`
	SuggestedText string `json:"suggestedText,omitempty"`
	Start         int    `json:"start,omitempty"`
	End           int    `json:"end,omitempty"`

	// conflicts
	ConflictID string `json:"conflictId,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
}

type PresenceMember struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

type ServerMessage struct {
	Type       string                     `json:"type"`
	UserID     uint64                     `json:"userId,omitempty"`
	DocID      string                     `json:"docId,omitempty"`
	Revision   uint64                     `json:"revision,omitempty"`
	Members    []PresenceMember           `json:"members,omitempty"`
	Users      []collab.CollaborationUser `json:"users,omitempty"`
	Cursor     *collab.CursorPosition     `json:"cursor,omitempty"`
	Selection  *collab.SelectionRange     `json:"selection,omitempty"`
	Status     string                     `json:"status,omitempty"`
	Comment    *collab.Comment            `json:"comment,omitempty"`
	Suggestion *collab.Suggestion         `json:"suggestion,omitempty"`
	Conflict   *collab.Conflict           `json:"conflict,omitempty"`
	Action     string                     `json:"action,omitempty"`
	Content    string                     `json:"content,omitempty"`
	Locked     bool                       `json:"locked,omitempty"`
	SavedAt    *time.Time                 `json:"savedAt,omitempty"`
}

type OpAppliedMessage struct {
	Type            string `json:"type"` // "op_applied"
	DocID           string `json:"docId"`
	BaseRevision    uint64 `json:"baseRevision"`
	CurrentRevision uint64 `json:"currentRevision"`
	ClientID        string `json:"clientId"`
	ClientSeq       uint64 `json:"clientSeq"`
}

// OpBroadcastMessage pushes an applied change to the other members of the
// doc room, as opposed to the op_applied ack the author gets.
type OpBroadcastMessage struct {
	Type      string      `json:"type"` // "op_broadcast"
	DocID     string      `json:"docId"`
	Revision  uint64      `json:"revision"`
	AuthorID  uint64      `json:"authorId"`
	ClientID  string      `json:"clientId,omitempty"`
	ClientSeq uint64      `json:"clientSeq,omitempty"`
	Ops       delta.Delta `json:"ops"`
	AppliedAt time.Time   `json:"appliedAt,omitempty"`
}

type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string      { return m.Type }
func (m OpAppliedMessage) MessageType() string   { return m.Type }
func (m OpBroadcastMessage) MessageType() string { return m.Type }

// eventMessage renders a session event as its wire form.
func eventMessage(docID string, senderID uint64, evt collab.Event) (OutboundMessage, bool) {
	switch e := evt.(type) {
	case collab.JoinedEvent:
		return ServerMessage{Type: "join", DocID: docID, UserID: e.User.UserID, Users: []collab.CollaborationUser{e.User}}, true
	case collab.LeftEvent:
		return ServerMessage{Type: "leave", DocID: docID, UserID: e.UserID}, true
	case collab.PresenceEvent:
		m := ServerMessage{Type: "presence", DocID: docID, UserID: e.UserID, Cursor: e.Cursor, Selection: e.Selection}
		if e.Status != nil {
			m.Status = string(*e.Status)
		}
		return m, true
	case collab.CommentEvent:
		c := e.Comment
		return ServerMessage{Type: "comment", Action: string(e.Action), DocID: docID, UserID: senderID, Comment: &c}, true
	case collab.SuggestionEvent:
		s := e.Suggestion
		return ServerMessage{Type: "suggestion", Action: string(e.Action), DocID: docID, UserID: senderID, Suggestion: &s}, true
	case collab.ConflictDetectedEvent:
		c := e.Conflict
		return ServerMessage{Type: "conflict", DocID: docID, Conflict: &c}, true
	case collab.DocSavedEvent:
		at := e.SavedAt
		return ServerMessage{Type: "saved", DocID: docID, Revision: e.Version, SavedAt: &at}, true
	case collab.DocLockedEvent:
		return ServerMessage{Type: "locked", DocID: docID, UserID: e.UserID, Locked: true}, true
	case collab.DocUnlockedEvent:
		return ServerMessage{Type: "unlocked", DocID: docID, UserID: e.UserID}, true
	}
	return nil, false
}
