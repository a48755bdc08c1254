package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/michaelayoade/dotmac-collab/backend/internal/ot/delta"
)

// Service is the replicated-data channel: it accepts local text mutations
// against a base revision and replays them to every replica in a single
// authoritative order.
type Service interface {
	Submit(ctx context.Context, docID string, authorID uint64,
		baseRevision uint64, clientID string, clientSeq uint64,
		ops delta.Delta) (AppliedOp, error)

	CurrentRevision(ctx context.Context, docID string) (uint64, error)

	LoadDocumentContent(ctx context.Context, docID string) (string, uint64, error)

	// OpsSince serves handshake/catch-up after a reconnect.
	OpsSince(ctx context.Context, docID string, fromRevision uint64, limit int) ([]AppliedOp, error)

	SaveSnapshot(ctx context.Context, docID string) error

	SeedDocument(ctx context.Context, docID, content string, revision uint64)
}

// SnapshotStore persists full-content snapshots of a document revision.
type SnapshotStore interface {
	SaveDocumentSnapshot(ctx context.Context, docID string, rev uint64, content string) error
}

type AppliedOp struct {
	OperationID string // unique per applied op, for idempotence/tracing
	Revision    uint64
	AuthorID    uint64
	Ops         delta.Delta
	AppliedAt   time.Time
}

type docState struct {
	mu       sync.RWMutex
	revision uint64
	opsRing  []AppliedOp
	// dedup window: highest clientSeq seen per clientID
	lastSeqByClient map[string]uint64
	buf             Buffer
}

// InMemoryService holds every open document's live state in memory and
// snapshots through the store. Applied ops are fanned out to Kafka through
// the dispatcher so peer instances and auditors can follow along.
type InMemoryService struct {
	mu      sync.RWMutex
	docs    map[string]*docState
	ringCap int

	store      SnapshotStore
	dispatcher *KafkaDispatcher
}

func NewInMemoryService(store SnapshotStore, dispatcher *KafkaDispatcher) *InMemoryService {
	return &InMemoryService{
		docs:       make(map[string]*docState),
		ringCap:    1024,
		store:      store,
		dispatcher: dispatcher,
	}
}

func (s *InMemoryService) getOrCreateDoc(docID string) *docState {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds != nil {
		return ds
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds = s.docs[docID]; ds == nil {
		capacity := s.ringCap
		if capacity <= 0 {
			capacity = 1024
		}
		ds = &docState{
			lastSeqByClient: make(map[string]uint64),
			opsRing:         make([]AppliedOp, 0, capacity),
			buf:             NewPieceTable(""),
		}
		s.docs[docID] = ds
	}
	return ds
}

// SeedDocument primes the in-memory state from a persisted snapshot, so a
// session joining after a restart sees the saved content.
func (s *InMemoryService) SeedDocument(ctx context.Context, docID, content string, revision uint64) {
	ds := s.getOrCreateDoc(docID)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.revision > 0 || ds.buf.Len() > 0 {
		return // live state wins over a snapshot
	}
	ds.buf = NewPieceTable(content)
	ds.revision = revision
}

// Submit validates the base revision, dedups by (clientID, clientSeq),
// applies the delta and advances the revision. A base mismatch returns
// ErrRevisionConflict; callers surface it on the session conflict list.
func (s *InMemoryService) Submit(ctx context.Context, docID string, authorID uint64, baseRevision uint64, clientID string, clientSeq uint64, ops delta.Delta) (AppliedOp, error) {
	ds := s.getOrCreateDoc(docID)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if last := ds.lastSeqByClient[clientID]; clientSeq <= last {
		return AppliedOp{}, ErrDuplicateOrOutOfOrder
	}
	if baseRevision != ds.revision {
		return AppliedOp{}, ErrRevisionConflict
	}

	if ds.buf == nil {
		ds.buf = NewPieceTable("")
	}
	if err := ds.buf.Apply(ops); err != nil {
		return AppliedOp{}, err
	}

	ds.revision++
	applied := AppliedOp{
		OperationID: ulid.Make().String(),
		Revision:    ds.revision,
		AuthorID:    authorID,
		Ops:         ops,
		AppliedAt:   time.Now(),
	}

	// Ring keeps the recent history for OpsSince; oldest entry falls off.
	if cap(ds.opsRing) > 0 && len(ds.opsRing) == cap(ds.opsRing) {
		copy(ds.opsRing[0:], ds.opsRing[1:])
		ds.opsRing = ds.opsRing[:len(ds.opsRing)-1]
	}
	ds.opsRing = append(ds.opsRing, applied)
	ds.lastSeqByClient[clientID] = clientSeq

	if s.dispatcher != nil {
		// Fan-out is best effort; the op itself is already applied.
		_ = s.dispatcher.Enqueue(ctx, NewOpAppliedEvent(docID, applied, clientID, clientSeq, baseRevision))
	}

	return applied, nil
}

func (s *InMemoryService) CurrentRevision(ctx context.Context, docID string) (uint64, error) {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds == nil {
		return 0, nil
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.revision, nil
}

func (s *InMemoryService) LoadDocumentContent(ctx context.Context, docID string) (string, uint64, error) {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds == nil {
		return "", 0, errors.New("document not found")
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.buf.String(), ds.revision, nil
}

func (s *InMemoryService) OpsSince(ctx context.Context, docID string, fromRevision uint64, limit int) ([]AppliedOp, error) {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds == nil {
		return nil, nil
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var out []AppliedOp
	for _, op := range ds.opsRing {
		if op.Revision > fromRevision {
			out = append(out, op)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *InMemoryService) SaveSnapshot(ctx context.Context, docID string) error {
	if s.store == nil {
		return errors.New("snapshot store not initialized")
	}
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds == nil || ds.buf == nil {
		return errors.New("document not found or buffer not initialized")
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return s.store.SaveDocumentSnapshot(ctx, docID, ds.revision, ds.buf.String())
}
