package collab

import (
	"encoding/json"
	"time"

	"github.com/michaelayoade/dotmac-collab/backend/internal/ot/delta"
)

// CollabEvent is the Kafka envelope for every collaboration event: applied
// text ops, comment/suggestion lifecycle, presence, locks and conflicts.
// Messages are keyed by DocID so one partition carries a document in order.
type CollabEvent struct {
	EventType string          `json:"eventType"`
	DocID     string          `json:"docId"`
	ActorID   uint64          `json:"actorId,omitempty"`
	Revision  uint64          `json:"revision,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EmittedAt time.Time       `json:"emittedAt"`
}

const (
	EventOpApplied         = "OP_APPLIED"
	EventCommentChanged    = "COMMENT_CHANGED"
	EventSuggestionChanged = "SUGGESTION_CHANGED"
	EventPresenceChanged   = "PRESENCE_CHANGED"
	EventDocSaved          = "DOC_SAVED"
	EventDocLocked         = "DOC_LOCKED"
	EventDocUnlocked       = "DOC_UNLOCKED"
	EventConflictDetected  = "CONFLICT_DETECTED"
)

type opAppliedPayload struct {
	OperationID  string      `json:"operationId"`
	ClientID     string      `json:"clientId"`
	ClientSeq    uint64      `json:"clientSeq"`
	BaseRevision uint64      `json:"baseRevision"`
	Ops          delta.Delta `json:"ops"`
}

func NewOpAppliedEvent(docID string, op AppliedOp, clientID string, clientSeq, baseRevision uint64) CollabEvent {
	payload, _ := json.Marshal(opAppliedPayload{
		OperationID:  op.OperationID,
		ClientID:     clientID,
		ClientSeq:    clientSeq,
		BaseRevision: baseRevision,
		Ops:          op.Ops,
	})
	return CollabEvent{
		EventType: EventOpApplied,
		DocID:     docID,
		ActorID:   op.AuthorID,
		Revision:  op.Revision,
		Payload:   payload,
		EmittedAt: op.AppliedAt,
	}
}

// NewSessionEvent converts a session broadcast into its Kafka envelope.
// Returns false for event types that stay instance-local.
func NewSessionEvent(docID string, senderID uint64, evt Event) (CollabEvent, bool) {
	out := CollabEvent{DocID: docID, ActorID: senderID, EmittedAt: time.Now()}
	switch e := evt.(type) {
	case CommentEvent:
		out.EventType = EventCommentChanged
		out.Payload, _ = json.Marshal(e.Comment)
	case SuggestionEvent:
		out.EventType = EventSuggestionChanged
		out.Payload, _ = json.Marshal(e.Suggestion)
	case ConflictDetectedEvent:
		out.EventType = EventConflictDetected
		out.Payload, _ = json.Marshal(e.Conflict)
	case DocSavedEvent:
		out.EventType = EventDocSaved
		out.Revision = e.Version
	case DocLockedEvent:
		out.EventType = EventDocLocked
	case DocUnlockedEvent:
		out.EventType = EventDocUnlocked
	default:
		return CollabEvent{}, false
	}
	return out, true
}
