package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Persistence surfaces the session depends on. Declared here, implemented
// by the store and cache packages.

type DocumentPersister interface {
	GetDocument(ctx context.Context, docID string) (string, string, uint64, error) // title, content, version
	SaveDocument(ctx context.Context, docID, content string, version uint64, wordCount, charCount int) error
}

type CommentPersister interface {
	CreateComment(ctx context.Context, c Comment) error
	UpdateComment(ctx context.Context, c Comment) error
	DeleteComment(ctx context.Context, docID, commentID string) error
}

type SuggestionPersister interface {
	CreateSuggestion(ctx context.Context, s Suggestion) error
	UpdateSuggestion(ctx context.Context, s Suggestion) error
}

type ConflictPersister interface {
	RecordConflict(ctx context.Context, c Conflict) error
	ResolveConflict(ctx context.Context, docID, conflictID string, strategy ResolutionStrategy) error
}

// Locker is the exclusive-editing lock backend (Redis in production).
type Locker interface {
	Lock(ctx context.Context, docID string, userID uint64, ttl time.Duration) error
	Unlock(ctx context.Context, docID string, userID uint64) error
}

// Broadcaster pushes a locally produced event to the peers of a document.
// The sender never receives its own broadcast back through Dispatch.
type Broadcaster interface {
	Broadcast(docID string, senderID uint64, evt Event)
}

type SessionOptions struct {
	Presence          bool
	Comments          bool
	Suggestions       bool
	Autosave          bool
	AutosaveInterval  time.Duration
	LockTTL           time.Duration
	DefaultResolution ResolutionStrategy
	InboxSize         int
}

func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Presence:          true,
		Comments:          true,
		Suggestions:       true,
		Autosave:          true,
		AutosaveInterval:  30 * time.Second,
		LockTTL:           5 * time.Minute,
		DefaultResolution: ResolutionManual,
		InboxSize:         256,
	}
}

type SessionDeps struct {
	Documents   DocumentPersister
	Comments    CommentPersister
	Suggestions SuggestionPersister
	Conflicts   ConflictPersister
	Locker      Locker
	Broadcast   Broadcaster
	Logger      zerolog.Logger
}

// Session owns the collaboration state for one (document, user) pair:
// document replica, roster, comment/suggestion registries and the conflict
// surface. Remote events enter through a single inbound channel and are
// applied by one dispatcher goroutine; local mutations go through the
// exported methods. Nothing else writes the replica.
type Session struct {
	docID string
	user  CollaborationUser
	opts  SessionOptions
	deps  SessionDeps
	log   zerolog.Logger

	mu          sync.Mutex
	doc         *DocumentReplica
	roster      *Roster
	comments    *commentRegistry
	suggestions *suggestionRegistry
	conflicts   conflictSurface
	saving      bool
	connected   bool
	lastErr     error

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

// NewSession loads the document and constructs the session. A load failure
// is DocumentNotFound.
func NewSession(ctx context.Context, docID string, user CollaborationUser, opts SessionOptions, deps SessionDeps) (*Session, error) {
	title, content, version, err := deps.Documents.GetDocument(ctx, docID)
	if err != nil {
		return nil, newError(CodeDocumentNotFound, docID, user.UserID, err)
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	s := &Session{
		docID:       docID,
		user:        user,
		opts:        opts,
		deps:        deps,
		log:         deps.Logger.With().Str("doc", docID).Uint64("user", user.UserID).Logger(),
		doc:         NewDocumentReplica(docID, title, content, version),
		roster:      NewRoster(),
		comments:    newCommentRegistry(),
		suggestions: newSuggestionRegistry(),
		inbox:       make(chan Event, opts.InboxSize),
		done:        make(chan struct{}),
	}
	s.roster.Upsert(user)
	return s, nil
}

// Start launches the dispatcher and announces the join to peers.
func (s *Session) Start() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	go s.run()
	s.broadcast(JoinedEvent{User: s.user})
}

// Close sends a best-effort leave, stops the dispatcher and the autosave
// ticker. In-flight requests are not cancelled; their results are dropped
// because the dispatcher is gone.
func (s *Session) Close() {
	s.once.Do(func() {
		s.broadcast(LeftEvent{UserID: s.user.UserID})
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		close(s.done)
	})
}

// Dispatch feeds a remote event to the session. Non-blocking: when the
// inbox is full the event is dropped and logged, mirroring the transport's
// own overflow policy.
func (s *Session) Dispatch(evt Event) {
	select {
	case s.inbox <- evt:
	default:
		s.log.Warn().Type("event", evt).Msg("inbox full, event dropped")
	}
}

func (s *Session) run() {
	var tick <-chan time.Time
	if s.opts.Autosave && s.opts.AutosaveInterval > 0 {
		t := time.NewTicker(s.opts.AutosaveInterval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.inbox:
			s.apply(evt)
		case <-tick:
			s.autosaveTick(context.Background())
		}
	}
}

// apply replays one remote event. Local echoes are ignored structurally.
func (s *Session) apply(evt Event) {
	if evt.EventOrigin() == OriginLocal {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	switch e := evt.(type) {
	case JoinedEvent:
		u := e.User
		if u.LastSeen.IsZero() {
			u.LastSeen = now
		}
		s.roster.Upsert(u)
	case LeftEvent:
		s.roster.Remove(e.UserID)
	case PresenceEvent:
		if !s.opts.Presence {
			return
		}
		s.roster.Merge(e.UserID, e.Status, e.Cursor, e.Selection, now)
	case CommentEvent:
		s.applyCommentEvent(e)
	case SuggestionEvent:
		s.applySuggestionEvent(e)
	case ConflictDetectedEvent:
		s.conflicts.add(e.Conflict)
	case DocSavedEvent:
		// A peer persisted; our unsaved flag still reflects local edits.
		if e.Version > s.doc.lastSavedVersion {
			s.doc.lastSavedVersion = e.Version
		}
	case DocLockedEvent:
		s.doc.setLock(true, e.UserID, e.LockedAt)
	case DocUnlockedEvent:
		s.doc.setLock(false, 0, time.Time{})
	}
}

func (s *Session) applyCommentEvent(e CommentEvent) {
	switch e.Action {
	case CommentAdded, CommentUpdated, CommentResolved:
		s.comments.upsert(e.Comment)
	case CommentDeleted:
		s.comments.remove(e.Comment.ID)
	}
}

func (s *Session) applySuggestionEvent(e SuggestionEvent) {
	if e.Action == SuggestionAccepted {
		// Replay the span replacement so this replica converges with the
		// accepter. Already-terminal entries have applied it; the engine
		// broadcast that follows carries identical content and no-ops.
		if cur, ok := s.suggestions.get(e.Suggestion.ID); !ok || !cur.Status.Terminal() {
			s.doc.UpdateContent(applySuggestion(s.doc.Content, e.Suggestion))
		}
	}
	s.suggestions.upsert(e.Suggestion)
}

func (s *Session) broadcast(evt Event) {
	if s.deps.Broadcast != nil {
		s.deps.Broadcast.Broadcast(s.docID, s.user.UserID, evt)
	}
}

func (s *Session) setErr(err error) {
	s.lastErr = err
}

// --- document replica ---

// UpdateContent applies a local edit to the replica.
func (s *Session) UpdateContent(newText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.UpdateContent(newText)
}

// ApplyRemoteContent applies text arriving from the replicated-data
// channel. Same versioning rules as a local edit.
func (s *Session) ApplyRemoteContent(newText string) bool {
	return s.UpdateContent(newText)
}

// SaveDocument persists the replica. A save already in flight makes this a
// no-op; failures leave the unsaved flag set so the next autosave tick
// retries (no immediate retry, no backoff).
func (s *Session) SaveDocument(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return nil
	}
	s.saving = true
	content := s.doc.Content
	version := s.doc.Version
	words := s.doc.WordCount()
	chars := s.doc.CharCount()
	s.mu.Unlock()

	err := s.deps.Documents.SaveDocument(ctx, s.docID, content, version, words, chars)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		serr := newError(CodeSaveFailed, s.docID, s.user.UserID, err)
		s.setErr(serr)
		s.mu.Unlock()
		return serr
	}
	now := time.Now()
	if s.doc.Version == version {
		s.doc.markSaved(now)
	} else if version > s.doc.lastSavedVersion {
		// Edits landed while the save was in flight; they stay unsaved.
		s.doc.lastSavedVersion = version
		s.doc.lastSavedAt = now
	}
	s.mu.Unlock()

	// Broadcast outside the lock: the hub may block on the Kafka queue.
	s.broadcast(DocSavedEvent{Version: version, SavedAt: now})
	return nil
}

// autosaveTick saves only when there is something new to persist.
func (s *Session) autosaveTick(ctx context.Context) {
	s.mu.Lock()
	due := s.connected && s.doc.Unsaved() && s.doc.Version > s.doc.lastSavedVersion && !s.saving
	s.mu.Unlock()
	if !due {
		return
	}
	if err := s.SaveDocument(ctx); err != nil {
		s.log.Warn().Err(err).Msg("autosave failed, will retry next tick")
	}
}

// LockDocument acquires the exclusive editing lock, updates the replica
// optimistically and notifies peers. Failure leaves local state unchanged.
func (s *Session) LockDocument(ctx context.Context) error {
	if err := s.deps.Locker.Lock(ctx, s.docID, s.user.UserID, s.opts.LockTTL); err != nil {
		lerr := newError(CodeLockFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(lerr)
		s.mu.Unlock()
		return lerr
	}
	now := time.Now()
	s.mu.Lock()
	s.doc.setLock(true, s.user.UserID, now)
	s.mu.Unlock()
	s.broadcast(DocLockedEvent{UserID: s.user.UserID, LockedAt: now})
	return nil
}

func (s *Session) UnlockDocument(ctx context.Context) error {
	if err := s.deps.Locker.Unlock(ctx, s.docID, s.user.UserID); err != nil {
		lerr := newError(CodeLockFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(lerr)
		s.mu.Unlock()
		return lerr
	}
	s.mu.Lock()
	s.doc.setLock(false, 0, time.Time{})
	s.mu.Unlock()
	s.broadcast(DocUnlockedEvent{UserID: s.user.UserID})
	return nil
}

// --- presence ---

// UpdateCursor is broadcast-only: the sender does not re-render its own
// cursor from its own event.
func (s *Session) UpdateCursor(pos CursorPosition) {
	if !s.opts.Presence {
		return
	}
	s.broadcast(PresenceEvent{UserID: s.user.UserID, Cursor: &pos})
}

func (s *Session) UpdateSelection(sel *SelectionRange) {
	if !s.opts.Presence {
		return
	}
	s.broadcast(PresenceEvent{UserID: s.user.UserID, Selection: sel})
}

func (s *Session) UpdateStatus(status UserStatus) {
	if !s.opts.Presence {
		return
	}
	s.broadcast(PresenceEvent{UserID: s.user.UserID, Status: &status})
}

// --- comments ---

func (s *Session) AddComment(ctx context.Context, body string) (Comment, error) {
	if !s.opts.Comments {
		return Comment{}, newError(CodeOperationDisabled, s.docID, s.user.UserID, fmt.Errorf("comments disabled"))
	}
	c := Comment{
		ID:         uuid.NewString(),
		DocID:      s.docID,
		AuthorID:   s.user.UserID,
		AuthorName: s.user.Username,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	if err := s.deps.Comments.CreateComment(ctx, c); err != nil {
		oerr := newError(CodeOperationFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(oerr)
		s.mu.Unlock()
		return Comment{}, oerr
	}
	s.mu.Lock()
	s.comments.upsert(c)
	s.mu.Unlock()
	s.broadcast(CommentEvent{Action: CommentAdded, Comment: c})
	return c, nil
}

// ResolveComment stamps resolver identity and time. Resolving an already
// resolved comment returns it unchanged without a store call.
func (s *Session) ResolveComment(ctx context.Context, commentID string) (Comment, error) {
	s.mu.Lock()
	c, ok := s.comments.get(commentID)
	s.mu.Unlock()
	if !ok {
		return Comment{}, newError(CodeOperationFailed, s.docID, s.user.UserID, fmt.Errorf("comment %s not found", commentID))
	}
	if c.Resolved {
		return c, nil
	}
	now := time.Now()
	c.Resolved = true
	c.ResolvedBy = s.user.UserID
	c.ResolvedAt = &now
	if err := s.deps.Comments.UpdateComment(ctx, c); err != nil {
		oerr := newError(CodeOperationFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(oerr)
		s.mu.Unlock()
		return Comment{}, oerr
	}
	s.mu.Lock()
	s.comments.upsert(c)
	s.mu.Unlock()
	s.broadcast(CommentEvent{Action: CommentResolved, Comment: c})
	return c, nil
}

func (s *Session) DeleteComment(ctx context.Context, commentID string) error {
	s.mu.Lock()
	c, ok := s.comments.get(commentID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.deps.Comments.DeleteComment(ctx, s.docID, commentID); err != nil {
		oerr := newError(CodeOperationFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(oerr)
		s.mu.Unlock()
		return oerr
	}
	s.mu.Lock()
	s.comments.remove(commentID)
	s.mu.Unlock()
	s.broadcast(CommentEvent{Action: CommentDeleted, Comment: c})
	return nil
}

// --- suggestions ---

func (s *Session) AddSuggestion(ctx context.Context, original, suggested string, start, end int) (Suggestion, error) {
	if !s.opts.Suggestions {
		return Suggestion{}, newError(CodeOperationDisabled, s.docID, s.user.UserID, fmt.Errorf("suggestions disabled"))
	}
	sg := Suggestion{
		ID:            uuid.NewString(),
		DocID:         s.docID,
		AuthorID:      s.user.UserID,
		AuthorName:    s.user.Username,
		OriginalText:  original,
		SuggestedText: suggested,
		Start:         start,
		End:           end,
		Status:        SuggestionPending,
		CreatedAt:     time.Now(),
	}
	if err := s.deps.Suggestions.CreateSuggestion(ctx, sg); err != nil {
		oerr := newError(CodeOperationFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(oerr)
		s.mu.Unlock()
		return Suggestion{}, oerr
	}
	s.mu.Lock()
	s.suggestions.upsert(sg)
	s.mu.Unlock()
	s.broadcast(SuggestionEvent{Action: SuggestionAdded, Suggestion: sg})
	return sg, nil
}

// AcceptSuggestion substitutes the recorded span in the current content
// with the suggested text, then persists the status transition. Offsets
// are the ones recorded at creation; intervening edits can make them
// stale. Unknown IDs and already-terminal suggestions are no-ops and
// return a zero Suggestion. The accepted suggestion is returned so the
// transport can mirror the span replacement into the replicated engine.
func (s *Session) AcceptSuggestion(ctx context.Context, suggestionID string) (Suggestion, error) {
	s.mu.Lock()
	sg, ok := s.suggestions.get(suggestionID)
	if !ok {
		s.mu.Unlock()
		s.log.Warn().Str("suggestion", suggestionID).Msg("accept on unknown suggestion ignored")
		return Suggestion{}, nil
	}
	if sg.Status.Terminal() {
		s.mu.Unlock()
		return Suggestion{}, nil
	}
	newContent := applySuggestion(s.doc.Content, sg)
	s.doc.UpdateContent(newContent)
	now := time.Now()
	sg.Status = SuggestionAccept
	sg.ReviewerID = s.user.UserID
	sg.ReviewedAt = &now
	s.suggestions.upsert(sg)
	s.mu.Unlock()

	if err := s.deps.Suggestions.UpdateSuggestion(ctx, sg); err != nil {
		// Optimistic local apply is not rolled back.
		oerr := newError(CodeOperationFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(oerr)
		s.mu.Unlock()
		return sg, oerr
	}
	s.broadcast(SuggestionEvent{Action: SuggestionAccepted, Suggestion: sg})
	return sg, nil
}

// RejectSuggestion records the reviewer decision; document text is never
// touched.
func (s *Session) RejectSuggestion(ctx context.Context, suggestionID string) error {
	return s.reviewSuggestion(ctx, suggestionID, SuggestionReject, SuggestionRejected)
}

func (s *Session) WithdrawSuggestion(ctx context.Context, suggestionID string) error {
	return s.reviewSuggestion(ctx, suggestionID, SuggestionWithdraw, SuggestionWithdrawn)
}

func (s *Session) reviewSuggestion(ctx context.Context, suggestionID string, status SuggestionStatus, action SuggestionAction) error {
	s.mu.Lock()
	sg, ok := s.suggestions.get(suggestionID)
	if !ok {
		s.mu.Unlock()
		s.log.Warn().Str("suggestion", suggestionID).Str("status", string(status)).Msg("review on unknown suggestion ignored")
		return nil
	}
	if sg.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	now := time.Now()
	sg.Status = status
	sg.ReviewerID = s.user.UserID
	sg.ReviewedAt = &now
	s.suggestions.upsert(sg)
	s.mu.Unlock()

	if err := s.deps.Suggestions.UpdateSuggestion(ctx, sg); err != nil {
		oerr := newError(CodeOperationFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(oerr)
		s.mu.Unlock()
		return oerr
	}
	s.broadcast(SuggestionEvent{Action: action, Suggestion: sg})
	return nil
}

// --- conflicts ---

// ReportConflict records a replication-layer conflict and tells peers.
func (s *Session) ReportConflict(description string, localVersion, remoteVersion uint64) Conflict {
	c := Conflict{
		ID:            uuid.NewString(),
		DocID:         s.docID,
		Description:   description,
		LocalVersion:  localVersion,
		RemoteVersion: remoteVersion,
		DetectedAt:    time.Now(),
	}
	s.mu.Lock()
	s.conflicts.add(c)
	s.mu.Unlock()
	if s.deps.Conflicts != nil {
		// Durable trail is best effort; the in-memory surface is canonical.
		if err := s.deps.Conflicts.RecordConflict(context.Background(), c); err != nil {
			s.log.Warn().Err(err).Str("conflict", c.ID).Msg("conflict record failed")
		}
	}
	s.broadcast(ConflictDetectedEvent{Conflict: c})
	return c
}

// ResolveConflict sends the strategy to the backing service; the entry is
// removed only on success so a failure can be retried.
func (s *Session) ResolveConflict(ctx context.Context, conflictID string, strategy ResolutionStrategy) error {
	if strategy == "" {
		strategy = s.opts.DefaultResolution
	}
	s.mu.Lock()
	_, ok := s.conflicts.get(conflictID)
	s.mu.Unlock()
	if !ok {
		return newError(CodeConflictResolutionFailed, s.docID, s.user.UserID, fmt.Errorf("conflict %s not found", conflictID))
	}
	if err := s.deps.Conflicts.ResolveConflict(ctx, s.docID, conflictID, strategy); err != nil {
		rerr := newError(CodeConflictResolutionFailed, s.docID, s.user.UserID, err)
		s.mu.Lock()
		s.setErr(rerr)
		s.mu.Unlock()
		return rerr
	}
	s.mu.Lock()
	s.conflicts.remove(conflictID)
	s.mu.Unlock()
	return nil
}

// SeedComments and SeedSuggestions hydrate the registries from persisted
// lists when a session joins an existing document. Called before Start.

func (s *Session) SeedComments(comments []Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range comments {
		s.comments.upsert(c)
	}
}

func (s *Session) SeedSuggestions(suggestions []Suggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range suggestions {
		s.suggestions.upsert(sg)
	}
}

// --- snapshots for transports / UI ---

func (s *Session) DocID() string           { return s.docID }
func (s *Session) User() CollaborationUser { return s.user }

func (s *Session) Document() DocumentReplica {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.doc
}

func (s *Session) Collaborators() []CollaborationUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.List()
}

func (s *Session) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments.list()
}

func (s *Session) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestions.list()
}

func (s *Session) Conflicts() []Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflicts.list()
}

// Err returns the last session-level error, for a disconnected/degraded
// indicator. It does not reset.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}
