package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests: need a local Redis, otherwise they skip.
func testClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"127.0.0.1:6379"}})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func testDocID(t *testing.T) string {
	return fmt.Sprintf("test:%s:%d", t.Name(), time.Now().UnixNano())
}

func TestPresence_AddAndListMembers(t *testing.T) {
	rdb := testClient(t)
	p := NewRedisPresence(rdb)
	ctx := context.Background()
	docID := testDocID(t)

	require.NoError(t, p.AddMember(ctx, docID, 1, "alice", time.Minute))
	require.NoError(t, p.AddMember(ctx, docID, 2, "bob", time.Minute))
	// refresh, not duplicate
	require.NoError(t, p.AddMember(ctx, docID, 1, "alice", time.Minute))

	members, err := p.GetAliveMembersWithNames(ctx, docID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	names := map[uint64]string{}
	for _, m := range members {
		names[m.UserID] = m.Username
	}
	assert.Equal(t, "alice", names[1])
	assert.Equal(t, "bob", names[2])

	require.NoError(t, p.RemoveMember(ctx, docID, 1))
	members, err = p.GetAliveMembersWithNames(ctx, docID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, uint64(2), members[0].UserID)
}

func TestPresence_ExpiredMembersAreSwept(t *testing.T) {
	rdb := testClient(t)
	p := NewRedisPresence(rdb)
	ctx := context.Background()
	docID := testDocID(t)

	require.NoError(t, p.AddMember(ctx, docID, 1, "alice", -time.Second))
	require.NoError(t, p.AddMember(ctx, docID, 2, "bob", time.Minute))

	members, err := p.GetAliveMembersWithNames(ctx, docID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, uint64(2), members[0].UserID)

	// the sweep also removed alice's name entry
	exists, err := rdb.HExists(ctx, namesKey(docID), "1").Result()
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPresence_CursorRoundTrip(t *testing.T) {
	rdb := testClient(t)
	p := NewRedisPresence(rdb)
	ctx := context.Background()
	docID := testDocID(t)

	payload := []byte(`{"line":3,"column":14}`)
	require.NoError(t, p.SetCursor(ctx, docID, 1, payload, time.Minute))
	got, err := p.GetCursor(ctx, docID, 1)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRedisLock_ExclusiveHolder(t *testing.T) {
	rdb := testClient(t)
	l := NewRedisLock(rdb)
	ctx := context.Background()
	docID := testDocID(t)

	require.NoError(t, l.Lock(ctx, docID, 1, time.Minute))

	err := l.Lock(ctx, docID, 2, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockHeld))

	// holder can re-lock to refresh the TTL
	require.NoError(t, l.Lock(ctx, docID, 1, time.Minute))

	uid, held, err := l.Holder(ctx, docID)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, uint64(1), uid)

	// non-holder unlock is a no-op
	require.NoError(t, l.Unlock(ctx, docID, 2))
	_, held, err = l.Holder(ctx, docID)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, l.Unlock(ctx, docID, 1))
	_, held, err = l.Holder(ctx, docID)
	require.NoError(t, err)
	assert.False(t, held)
}
