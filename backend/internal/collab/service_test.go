package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelayoade/dotmac-collab/backend/internal/ot/delta"
)

func newTestService() *InMemoryService {
	return NewInMemoryService(nil, nil)
}

func TestSubmit_AppliesAndAdvancesRevision(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	applied, err := svc.Submit(ctx, "d1", 7, 0, "c1", 1,
		delta.Delta{{Kind: delta.KindInsert, Text: "Hello world"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), applied.Revision)
	assert.NotEmpty(t, applied.OperationID)

	content, rev, err := svc.LoadDocumentContent(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", content)
	assert.Equal(t, uint64(1), rev)
}

func TestSubmit_BaseRevisionMismatch(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Submit(ctx, "d1", 7, 0, "c1", 1,
		delta.Delta{{Kind: delta.KindInsert, Text: "Hello"}})
	require.NoError(t, err)

	// peer submits against the stale base
	_, err = svc.Submit(ctx, "d1", 8, 0, "c2", 1,
		delta.Delta{{Kind: delta.KindInsert, Text: "clash"}})
	assert.ErrorIs(t, err, ErrRevisionConflict)

	// content untouched by the rejected op
	content, _, err := svc.LoadDocumentContent(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", content)
}

func TestSubmit_DedupsByClientSeq(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Submit(ctx, "d1", 7, 0, "c1", 5,
		delta.Delta{{Kind: delta.KindInsert, Text: "Hello"}})
	require.NoError(t, err)

	// retransmit of the same seq
	_, err = svc.Submit(ctx, "d1", 7, 1, "c1", 5,
		delta.Delta{{Kind: delta.KindInsert, Text: "Hello"}})
	assert.ErrorIs(t, err, ErrDuplicateOrOutOfOrder)

	// older seq from the same client
	_, err = svc.Submit(ctx, "d1", 7, 1, "c1", 3,
		delta.Delta{{Kind: delta.KindInsert, Text: "late"}})
	assert.ErrorIs(t, err, ErrDuplicateOrOutOfOrder)

	// another client is tracked independently
	_, err = svc.Submit(ctx, "d1", 8, 1, "c2", 5,
		delta.Delta{{Kind: delta.KindRetain, Count: 5}, {Kind: delta.KindInsert, Text: "!"}})
	require.NoError(t, err)
}

func TestOpsSince_ReturnsCatchUpWindow(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for i := uint64(0); i < 5; i++ {
		_, err := svc.Submit(ctx, "d1", 7, i, "c1", i+1,
			delta.Delta{{Kind: delta.KindRetain, Count: int(i)}, {Kind: delta.KindInsert, Text: "x"}})
		require.NoError(t, err)
	}

	ops, err := svc.OpsSince(ctx, "d1", 2, 0)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, uint64(3), ops[0].Revision)
	assert.Equal(t, uint64(5), ops[2].Revision)

	limited, err := svc.OpsSince(ctx, "d1", 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := svc.OpsSince(ctx, "unknown", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSeedDocument_LiveStateWins(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	svc.SeedDocument(ctx, "d1", "saved content", 9)
	content, rev, err := svc.LoadDocumentContent(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "saved content", content)
	assert.Equal(t, uint64(9), rev)

	// reseeding an already-live document changes nothing
	svc.SeedDocument(ctx, "d1", "older snapshot", 3)
	content, rev, err = svc.LoadDocumentContent(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "saved content", content)
	assert.Equal(t, uint64(9), rev)
}

func TestCurrentRevision_UnknownDocIsZero(t *testing.T) {
	svc := newTestService()
	rev, err := svc.CurrentRevision(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rev)
}

type fakeSnapshots struct {
	docID   string
	rev     uint64
	content string
	calls   int
}

func (f *fakeSnapshots) SaveDocumentSnapshot(ctx context.Context, docID string, rev uint64, content string) error {
	f.docID, f.rev, f.content = docID, rev, content
	f.calls++
	return nil
}

func TestSaveSnapshot_PersistsCurrentContent(t *testing.T) {
	snaps := &fakeSnapshots{}
	svc := NewInMemoryService(snaps, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "d1", 7, 0, "c1", 1,
		delta.Delta{{Kind: delta.KindInsert, Text: "Hello"}})
	require.NoError(t, err)

	require.NoError(t, svc.SaveSnapshot(ctx, "d1"))
	assert.Equal(t, 1, snaps.calls)
	assert.Equal(t, "d1", snaps.docID)
	assert.Equal(t, uint64(1), snaps.rev)
	assert.Equal(t, "Hello", snaps.content)

	assert.Error(t, svc.SaveSnapshot(ctx, "unknown"))
}
