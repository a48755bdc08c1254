package collab

import "time"

// Origin tags whether an event was produced by this session or arrived
// from a peer, so the dispatcher can drop echoes of its own broadcasts
// structurally instead of comparing user IDs in each handler.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// Event is the tagged variant fed to a Session's single inbound channel.
// One dispatcher goroutine consumes them in receipt order.
type Event interface {
	EventOrigin() Origin
}

type baseEvent struct {
	Origin Origin
}

func (e baseEvent) EventOrigin() Origin { return e.Origin }

type JoinedEvent struct {
	baseEvent
	User CollaborationUser
}

type LeftEvent struct {
	baseEvent
	UserID uint64
}

// PresenceEvent is a partial update: nil fields leave the current value.
type PresenceEvent struct {
	baseEvent
	UserID    uint64
	Status    *UserStatus
	Cursor    *CursorPosition
	Selection *SelectionRange
}

type CommentAction string

const (
	CommentAdded    CommentAction = "add"
	CommentUpdated  CommentAction = "update"
	CommentDeleted  CommentAction = "delete"
	CommentResolved CommentAction = "resolve"
)

type CommentEvent struct {
	baseEvent
	Action  CommentAction
	Comment Comment
}

type SuggestionAction string

const (
	SuggestionAdded     SuggestionAction = "add"
	SuggestionAccepted  SuggestionAction = "accept"
	SuggestionRejected  SuggestionAction = "reject"
	SuggestionWithdrawn SuggestionAction = "withdraw"
)

type SuggestionEvent struct {
	baseEvent
	Action     SuggestionAction
	Suggestion Suggestion
}

type ConflictDetectedEvent struct {
	baseEvent
	Conflict Conflict
}

type DocSavedEvent struct {
	baseEvent
	Version uint64
	SavedAt time.Time
}

type DocLockedEvent struct {
	baseEvent
	UserID   uint64
	LockedAt time.Time
}

type DocUnlockedEvent struct {
	baseEvent
	UserID uint64
}

func remote() baseEvent { return baseEvent{Origin: OriginRemote} }

// Remote constructors used by the transport layer when replaying peer events.

func RemoteJoined(u CollaborationUser) JoinedEvent { return JoinedEvent{remote(), u} }
func RemoteLeft(userID uint64) LeftEvent           { return LeftEvent{remote(), userID} }

func RemotePresence(userID uint64, status *UserStatus, cursor *CursorPosition, sel *SelectionRange) PresenceEvent {
	return PresenceEvent{remote(), userID, status, cursor, sel}
}

func RemoteComment(action CommentAction, c Comment) CommentEvent {
	return CommentEvent{remote(), action, c}
}

func RemoteSuggestion(action SuggestionAction, s Suggestion) SuggestionEvent {
	return SuggestionEvent{remote(), action, s}
}

func RemoteConflict(c Conflict) ConflictDetectedEvent { return ConflictDetectedEvent{remote(), c} }

// AsRemote retags a locally produced event for delivery to a peer session.
func AsRemote(evt Event) Event {
	switch e := evt.(type) {
	case JoinedEvent:
		e.baseEvent = remote()
		return e
	case LeftEvent:
		e.baseEvent = remote()
		return e
	case PresenceEvent:
		e.baseEvent = remote()
		return e
	case CommentEvent:
		e.baseEvent = remote()
		return e
	case SuggestionEvent:
		e.baseEvent = remote()
		return e
	case ConflictDetectedEvent:
		e.baseEvent = remote()
		return e
	case DocSavedEvent:
		e.baseEvent = remote()
		return e
	case DocLockedEvent:
		e.baseEvent = remote()
		return e
	case DocUnlockedEvent:
		e.baseEvent = remote()
		return e
	}
	return evt
}
