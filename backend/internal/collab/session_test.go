package collab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeDocs struct {
	mu        sync.Mutex
	title     string
	content   string
	version   uint64
	failSave  bool
	saveCalls int

	// when set, SaveDocument blocks until release is closed
	started chan struct{}
	release chan struct{}
}

func (f *fakeDocs) GetDocument(ctx context.Context, docID string) (string, string, uint64, error) {
	if f.title == "" && f.content == "" && f.version == 0 {
		return "Untitled", "", 0, nil
	}
	return f.title, f.content, f.version, nil
}

func (f *fakeDocs) SaveDocument(ctx context.Context, docID, content string, version uint64, wordCount, charCount int) error {
	f.mu.Lock()
	f.saveCalls++
	fail := f.failSave
	started := f.started
	release := f.release
	f.mu.Unlock()
	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
		<-release
	}
	if fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeDocs) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveCalls
}

type fakeComments struct {
	createCalls int
	updateCalls int
	deleteCalls int
	fail        bool
}

func (f *fakeComments) CreateComment(ctx context.Context, c Comment) error {
	f.createCalls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeComments) UpdateComment(ctx context.Context, c Comment) error {
	f.updateCalls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeComments) DeleteComment(ctx context.Context, docID, commentID string) error {
	f.deleteCalls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

type fakeSuggestions struct {
	createCalls int
	updateCalls int
	fail        bool
}

func (f *fakeSuggestions) CreateSuggestion(ctx context.Context, s Suggestion) error {
	f.createCalls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeSuggestions) UpdateSuggestion(ctx context.Context, s Suggestion) error {
	f.updateCalls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

type fakeConflicts struct {
	recorded     []Conflict
	resolveCalls int
	fail         bool
}

func (f *fakeConflicts) RecordConflict(ctx context.Context, c Conflict) error {
	f.recorded = append(f.recorded, c)
	return nil
}

func (f *fakeConflicts) ResolveConflict(ctx context.Context, docID, conflictID string, strategy ResolutionStrategy) error {
	f.resolveCalls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

type fakeLocker struct {
	fail        bool
	lockCalls   int
	unlockCalls int
}

func (f *fakeLocker) Lock(ctx context.Context, docID string, userID uint64, ttl time.Duration) error {
	f.lockCalls++
	if f.fail {
		return errors.New("held elsewhere")
	}
	return nil
}

func (f *fakeLocker) Unlock(ctx context.Context, docID string, userID uint64) error {
	f.unlockCalls++
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	events  []Event
	onEvent func(Event)
}

func (b *recordingBroadcaster) Broadcast(docID string, senderID uint64, evt Event) {
	b.mu.Lock()
	b.events = append(b.events, evt)
	fn := b.onEvent
	b.mu.Unlock()
	if fn != nil {
		fn(evt)
	}
}

func (b *recordingBroadcaster) all() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

type testEnv struct {
	docs        *fakeDocs
	comments    *fakeComments
	suggestions *fakeSuggestions
	conflicts   *fakeConflicts
	locker      *fakeLocker
	broadcast   *recordingBroadcaster
}

func newTestSession(t *testing.T, content string, mutate func(*SessionOptions)) (*Session, *testEnv) {
	t.Helper()
	env := &testEnv{
		docs:        &fakeDocs{title: "Doc", content: content, version: 1},
		comments:    &fakeComments{},
		suggestions: &fakeSuggestions{},
		conflicts:   &fakeConflicts{},
		locker:      &fakeLocker{},
		broadcast:   &recordingBroadcaster{},
	}
	opts := DefaultSessionOptions()
	opts.Autosave = false // tests drive autosaveTick directly
	if mutate != nil {
		mutate(&opts)
	}
	deps := SessionDeps{
		Documents:   env.docs,
		Comments:    env.comments,
		Suggestions: env.suggestions,
		Conflicts:   env.conflicts,
		Locker:      env.locker,
		Broadcast:   env.broadcast,
		Logger:      zerolog.Nop(),
	}
	user := CollaborationUser{UserID: 7, Username: "alice", Status: StatusOnline, LastSeen: time.Now()}
	s, err := NewSession(context.Background(), "doc-1", user, opts, deps)
	require.NoError(t, err)
	s.SetConnected(true) // tests drive ticks without Start's dispatcher
	return s, env
}

// --- document replica ---

func TestUpdateContent_VersionStrictlyIncreases(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	base := s.Document().Version

	assert.True(t, s.UpdateContent("Hello world"))
	assert.Equal(t, base+1, s.Document().Version)

	assert.True(t, s.UpdateContent("Hello world!"))
	assert.Equal(t, base+2, s.Document().Version)
}

func TestUpdateContent_IdenticalIsNoOp(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	base := s.Document().Version

	assert.False(t, s.UpdateContent("Hello"))
	doc := s.Document()
	assert.Equal(t, base, doc.Version)
	assert.False(t, doc.Unsaved())
}

func TestSaveDocument_SuccessClearsUnsaved(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	s.UpdateContent("Hello world")
	require.True(t, s.Document().Unsaved())

	require.NoError(t, s.SaveDocument(context.Background()))
	assert.Equal(t, 1, env.docs.calls())
	doc := s.Document()
	assert.False(t, doc.Unsaved())
	assert.Equal(t, doc.Version, doc.LastSavedVersion())
}

func TestSaveDocument_FailureLeavesUnsaved(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	env.docs.failSave = true
	s.UpdateContent("Hello world")

	err := s.SaveDocument(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeSaveFailed, CodeOf(err))
	assert.True(t, s.Document().Unsaved())
	assert.Error(t, s.Err())

	// next autosave tick retries the same check, no immediate retry
	env.docs.failSave = false
	s.autosaveTick(context.Background())
	assert.Equal(t, 2, env.docs.calls())
	assert.False(t, s.Document().Unsaved())
}

func TestSaveDocument_ConcurrentSecondCallIsNoOp(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	s.UpdateContent("Hello world")

	env.docs.started = make(chan struct{})
	env.docs.release = make(chan struct{})
	started := env.docs.started

	done := make(chan error, 1)
	go func() { done <- s.SaveDocument(context.Background()) }()
	<-started

	// second call while the first is in flight
	require.NoError(t, s.SaveDocument(context.Background()))
	assert.Equal(t, 1, env.docs.calls())

	close(env.docs.release)
	require.NoError(t, <-done)
}

func TestAutosaveTick_SkipsWhenNothingNew(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)

	s.autosaveTick(context.Background())
	assert.Equal(t, 0, env.docs.calls())

	s.UpdateContent("Hello world")
	s.autosaveTick(context.Background())
	assert.Equal(t, 1, env.docs.calls())

	// clean again: nothing to do
	s.autosaveTick(context.Background())
	assert.Equal(t, 1, env.docs.calls())
}

func TestAutosaveTick_SkipsWhileSaving(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	s.UpdateContent("Hello world")

	s.mu.Lock()
	s.saving = true
	s.mu.Unlock()
	s.autosaveTick(context.Background())
	assert.Equal(t, 0, env.docs.calls())

	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()
	s.autosaveTick(context.Background())
	assert.Equal(t, 1, env.docs.calls())
}

func TestAutosaveTick_SkipsWhileDisconnected(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	s.UpdateContent("Hello world")

	s.SetConnected(false)
	s.autosaveTick(context.Background())
	assert.Equal(t, 0, env.docs.calls())

	s.SetConnected(true)
	s.autosaveTick(context.Background())
	assert.Equal(t, 1, env.docs.calls())
}

func TestSaveDocument_BroadcastSeesReleasedState(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	var seen DocumentReplica
	env.broadcast.onEvent = func(evt Event) {
		if _, ok := evt.(DocSavedEvent); ok {
			// would deadlock if the save still held the session mutex
			seen = s.Document()
		}
	}

	s.UpdateContent("Hello world")
	require.NoError(t, s.SaveDocument(context.Background()))
	assert.Equal(t, "Hello world", seen.Content)
	assert.False(t, seen.Unsaved())
}

func TestLockDocument_OptimisticUpdateAndBroadcast(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)

	require.NoError(t, s.LockDocument(context.Background()))
	doc := s.Document()
	assert.True(t, doc.Locked)
	assert.Equal(t, uint64(7), doc.LockedBy)

	require.NoError(t, s.UnlockDocument(context.Background()))
	assert.False(t, s.Document().Locked)

	var locked, unlocked bool
	for _, evt := range env.broadcast.all() {
		switch evt.(type) {
		case DocLockedEvent:
			locked = true
		case DocUnlockedEvent:
			unlocked = true
		}
	}
	assert.True(t, locked)
	assert.True(t, unlocked)
}

func TestLockDocument_FailureLeavesStateUnchanged(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	env.locker.fail = true

	err := s.LockDocument(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeLockFailed, CodeOf(err))
	assert.False(t, s.Document().Locked)
}

// --- presence ---

func TestPresence_JoinUpsertIsIdempotent(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	u := CollaborationUser{UserID: 9, Username: "bob", Status: StatusOnline}

	s.apply(RemoteJoined(u))
	s.apply(RemoteJoined(u))

	assert.Equal(t, 2, len(s.Collaborators())) // self + bob
}

func TestPresence_SecondJoinKeepsLatestCursor(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	u := CollaborationUser{UserID: 9, Username: "bob", Cursor: &CursorPosition{Line: 1, Column: 2}}
	s.apply(RemoteJoined(u))
	u.Cursor = &CursorPosition{Line: 5, Column: 0}
	s.apply(RemoteJoined(u))

	got := roster(t, s, 9)
	require.NotNil(t, got.Cursor)
	assert.Equal(t, 5, got.Cursor.Line)
}

func TestPresence_LeaveUnknownUserIsNoOp(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	before := len(s.Collaborators())
	s.apply(RemoteLeft(12345))
	assert.Equal(t, before, len(s.Collaborators()))
}

func TestPresence_MergePartialUpdate(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	s.apply(RemoteJoined(CollaborationUser{UserID: 9, Username: "bob", Status: StatusOnline}))

	status := StatusAway
	s.apply(RemotePresence(9, &status, nil, &SelectionRange{Start: 1, End: 4}))

	got := roster(t, s, 9)
	assert.Equal(t, StatusAway, got.Status)
	assert.Equal(t, "bob", got.Username)
	require.NotNil(t, got.Selection)
	assert.Equal(t, 4, got.Selection.End)
	assert.False(t, got.LastSeen.IsZero())
}

func TestPresence_DisabledIgnoresEvents(t *testing.T) {
	s, env := newTestSession(t, "Hello", func(o *SessionOptions) { o.Presence = false })
	s.apply(RemoteJoined(CollaborationUser{UserID: 9, Status: StatusOnline}))

	// join still lands, the presence merge is ignored
	status := StatusAway
	s.apply(RemotePresence(9, &status, nil, nil))
	assert.Equal(t, StatusOnline, roster(t, s, 9).Status)

	s.UpdateCursor(CursorPosition{Line: 1})
	for _, evt := range env.broadcast.all() {
		_, isPresence := evt.(PresenceEvent)
		assert.False(t, isPresence)
	}
}

func TestUpdateCursor_BroadcastOnlyNoLocalEcho(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	s.UpdateCursor(CursorPosition{Line: 3, Column: 1})

	self := roster(t, s, 7)
	assert.Nil(t, self.Cursor)

	events := env.broadcast.all()
	require.Len(t, events, 1)
	pe, ok := events[0].(PresenceEvent)
	require.True(t, ok)
	assert.Equal(t, OriginLocal, pe.EventOrigin())
	assert.Equal(t, 3, pe.Cursor.Line)
}

func roster(t *testing.T, s *Session, userID uint64) CollaborationUser {
	t.Helper()
	for _, u := range s.Collaborators() {
		if u.UserID == userID {
			return u
		}
	}
	t.Fatalf("user %d not in roster", userID)
	return CollaborationUser{}
}

// --- comments ---

func TestAddComment_DisabledRejectsWithoutStoreCall(t *testing.T) {
	s, env := newTestSession(t, "Hello", func(o *SessionOptions) { o.Comments = false })

	_, err := s.AddComment(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, CodeOperationDisabled, CodeOf(err))
	assert.Equal(t, 0, env.comments.createCalls)
}

func TestAddComment_PersistsAppendsBroadcasts(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)

	c, err := s.AddComment(context.Background(), "first!")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), c.AuthorID)
	assert.Equal(t, "doc-1", c.DocID)
	assert.Equal(t, 1, env.comments.createCalls)
	require.Len(t, s.Comments(), 1)

	events := env.broadcast.all()
	require.Len(t, events, 1)
	ce := events[0].(CommentEvent)
	assert.Equal(t, CommentAdded, ce.Action)
}

func TestResolveComment_StampsResolverAndIsIdempotent(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	c, err := s.AddComment(context.Background(), "first!")
	require.NoError(t, err)

	resolved, err := s.ResolveComment(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, uint64(7), resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, 1, env.comments.updateCalls)

	again, err := s.ResolveComment(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, resolved.ResolvedAt, again.ResolvedAt)
	assert.Equal(t, 1, env.comments.updateCalls) // no second store call
}

func TestRemoteCommentEvents_ReplayTransitions(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	c := Comment{ID: "c1", DocID: "doc-1", AuthorID: 9, Body: "remote"}

	s.apply(RemoteComment(CommentAdded, c))
	require.Len(t, s.Comments(), 1)

	c.Resolved = true
	s.apply(RemoteComment(CommentResolved, c))
	assert.True(t, s.Comments()[0].Resolved)

	s.apply(RemoteComment(CommentDeleted, c))
	assert.Empty(t, s.Comments())
}

func TestApply_IgnoresLocalEcho(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	s.apply(CommentEvent{Action: CommentAdded, Comment: Comment{ID: "c1", DocID: "doc-1"}})
	assert.Empty(t, s.Comments())
}

// --- suggestions ---

func TestAcceptSuggestion_ReplacesSpan(t *testing.T) {
	s, env := newTestSession(t, "Hello world", nil)

	sg, err := s.AddSuggestion(context.Background(), "world", "there", 6, 11)
	require.NoError(t, err)
	accepted, err := s.AcceptSuggestion(context.Background(), sg.ID)
	require.NoError(t, err)
	assert.Equal(t, sg.ID, accepted.ID)

	doc := s.Document()
	assert.Equal(t, "Hello there", doc.Content)
	assert.True(t, doc.Unsaved())

	got := s.Suggestions()[0]
	assert.Equal(t, SuggestionAccept, got.Status)
	assert.Equal(t, uint64(7), got.ReviewerID)
	assert.Equal(t, 1, env.suggestions.updateCalls)
}

func TestRejectSuggestion_NeverMutatesContent(t *testing.T) {
	s, _ := newTestSession(t, "Hello world", nil)
	sg, err := s.AddSuggestion(context.Background(), "world", "there", 6, 11)
	require.NoError(t, err)

	require.NoError(t, s.RejectSuggestion(context.Background(), sg.ID))
	assert.Equal(t, "Hello world", s.Document().Content)
	assert.Equal(t, SuggestionReject, s.Suggestions()[0].Status)
}

func TestSuggestionStatus_TerminalIsOneWay(t *testing.T) {
	s, env := newTestSession(t, "Hello world", nil)
	sg, err := s.AddSuggestion(context.Background(), "world", "there", 6, 11)
	require.NoError(t, err)

	_, err = s.AcceptSuggestion(context.Background(), sg.ID)
	require.NoError(t, err)
	require.NoError(t, s.RejectSuggestion(context.Background(), sg.ID)) // no-op
	require.NoError(t, s.WithdrawSuggestion(context.Background(), sg.ID))

	assert.Equal(t, SuggestionAccept, s.Suggestions()[0].Status)
	assert.Equal(t, 1, env.suggestions.updateCalls)
}

func TestAcceptSuggestion_UnknownIDIsSilentNoOp(t *testing.T) {
	s, env := newTestSession(t, "Hello world", nil)

	sg, err := s.AcceptSuggestion(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, sg.ID)
	assert.Equal(t, "Hello world", s.Document().Content)
	assert.Equal(t, 0, env.suggestions.updateCalls)
}

func TestAddSuggestion_DisabledRejects(t *testing.T) {
	s, env := newTestSession(t, "Hello", func(o *SessionOptions) { o.Suggestions = false })

	_, err := s.AddSuggestion(context.Background(), "a", "b", 0, 1)
	require.Error(t, err)
	assert.Equal(t, CodeOperationDisabled, CodeOf(err))
	assert.Equal(t, 0, env.suggestions.createCalls)
}

func TestAcceptSuggestion_PersistFailureKeepsOptimisticApply(t *testing.T) {
	s, env := newTestSession(t, "Hello world", nil)
	sg, err := s.AddSuggestion(context.Background(), "world", "there", 6, 11)
	require.NoError(t, err)

	env.suggestions.fail = true
	_, err = s.AcceptSuggestion(context.Background(), sg.ID)
	require.Error(t, err)
	assert.Equal(t, CodeOperationFailed, CodeOf(err))
	// no rollback of the local apply
	assert.Equal(t, "Hello there", s.Document().Content)
}

func TestAcceptSuggestion_StaleOffsetsAreClamped(t *testing.T) {
	s, _ := newTestSession(t, "Hi", nil)
	s.apply(RemoteSuggestion(SuggestionAdded, Suggestion{
		ID: "s1", DocID: "doc-1", SuggestedText: "!", Start: 10, End: 20, Status: SuggestionPending,
	}))

	_, err := s.AcceptSuggestion(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", s.Document().Content)
}

func TestRemoteSuggestionAccept_AppliesTextChange(t *testing.T) {
	s, _ := newTestSession(t, "Hello world", nil)
	sg := Suggestion{
		ID: "s1", DocID: "doc-1", OriginalText: "world", SuggestedText: "there",
		Start: 6, End: 11, Status: SuggestionAccept, ReviewerID: 9,
	}

	s.apply(RemoteSuggestion(SuggestionAccepted, sg))
	assert.Equal(t, "Hello there", s.Document().Content)
	assert.Equal(t, SuggestionAccept, s.Suggestions()[0].Status)

	// a replayed accept does not apply twice
	s.apply(RemoteSuggestion(SuggestionAccepted, sg))
	assert.Equal(t, "Hello there", s.Document().Content)
}

// mirrorBroadcaster delivers each broadcast straight into the other
// sessions, the way the hub fans events out to room peers.
type mirrorBroadcaster struct {
	peers map[uint64]*Session
}

func (b *mirrorBroadcaster) Broadcast(docID string, senderID uint64, evt Event) {
	for id, p := range b.peers {
		if id != senderID {
			p.apply(AsRemote(evt))
		}
	}
}

func TestAcceptSuggestion_PeerReplicasConverge(t *testing.T) {
	docs := &fakeDocs{title: "Doc", content: "Hello world", version: 1}
	mirror := &mirrorBroadcaster{peers: map[uint64]*Session{}}
	opts := DefaultSessionOptions()
	opts.Autosave = false
	deps := SessionDeps{
		Documents:   docs,
		Comments:    &fakeComments{},
		Suggestions: &fakeSuggestions{},
		Conflicts:   &fakeConflicts{},
		Locker:      &fakeLocker{},
		Broadcast:   mirror,
		Logger:      zerolog.Nop(),
	}
	ctx := context.Background()
	a, err := NewSession(ctx, "doc-1", CollaborationUser{UserID: 1, Username: "alice"}, opts, deps)
	require.NoError(t, err)
	b, err := NewSession(ctx, "doc-1", CollaborationUser{UserID: 2, Username: "bob"}, opts, deps)
	require.NoError(t, err)
	mirror.peers[1] = a
	mirror.peers[2] = b

	sg, err := a.AddSuggestion(ctx, "world", "there", 6, 11)
	require.NoError(t, err)
	require.Len(t, b.Suggestions(), 1)

	_, err = a.AcceptSuggestion(ctx, sg.ID)
	require.NoError(t, err)

	assert.Equal(t, "Hello there", a.Document().Content)
	assert.Equal(t, "Hello there", b.Document().Content)
	assert.Equal(t, SuggestionAccept, b.Suggestions()[0].Status)
}

// --- conflicts ---

func TestConflictSurface_AccumulatesAndResolves(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)

	c1 := s.ReportConflict("edit race", 3, 4)
	c2 := s.ReportConflict("edit race", 3, 5) // no dedup
	assert.Len(t, s.Conflicts(), 2)
	assert.Len(t, env.conflicts.recorded, 2)

	require.NoError(t, s.ResolveConflict(context.Background(), c1.ID, ResolutionLWW))
	assert.Len(t, s.Conflicts(), 1)
	assert.Equal(t, c2.ID, s.Conflicts()[0].ID)
}

func TestResolveConflict_FailureKeepsEntryForRetry(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	c := s.ReportConflict("edit race", 3, 4)

	env.conflicts.fail = true
	err := s.ResolveConflict(context.Background(), c.ID, ResolutionManual)
	require.Error(t, err)
	assert.Equal(t, CodeConflictResolutionFailed, CodeOf(err))
	assert.Len(t, s.Conflicts(), 1)

	env.conflicts.fail = false
	require.NoError(t, s.ResolveConflict(context.Background(), c.ID, ResolutionManual))
	assert.Empty(t, s.Conflicts())
}

// --- lifecycle ---

func TestSessionStartClose_AnnouncesJoinAndLeave(t *testing.T) {
	s, env := newTestSession(t, "Hello", nil)
	s.Start()
	s.Close()
	s.Close() // idempotent

	events := env.broadcast.all()
	require.GreaterOrEqual(t, len(events), 2)
	_, isJoin := events[0].(JoinedEvent)
	assert.True(t, isJoin)
	var leaves int
	for _, evt := range events {
		if _, ok := evt.(LeftEvent); ok {
			leaves++
		}
	}
	assert.Equal(t, 1, leaves)
	assert.False(t, s.Connected())
}

func TestDispatch_RemoteEventsReachDispatcher(t *testing.T) {
	s, _ := newTestSession(t, "Hello", nil)
	s.Start()
	defer s.Close()

	s.Dispatch(RemoteJoined(CollaborationUser{UserID: 9, Username: "bob"}))

	assert.Eventually(t, func() bool {
		return len(s.Collaborators()) == 2
	}, time.Second, 5*time.Millisecond)
}
