package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("document locked by another user")

// RedisLock implements the exclusive editing lock: one outstanding holder
// per document, enforced with SetNX and a TTL as a liveness bound.
type RedisLock struct {
	rdb redis.UniversalClient
}

func NewRedisLock(rdb redis.UniversalClient) *RedisLock {
	return &RedisLock{rdb: rdb}
}

func (l *RedisLock) Lock(ctx context.Context, docID string, userID uint64, ttl time.Duration) error {
	holder := strconv.FormatUint(userID, 10)
	acquired, err := l.rdb.SetNX(ctx, lockKey(docID), holder, ttl).Result()
	if err != nil {
		return err
	}
	if !acquired {
		// Re-locking by the current holder refreshes the TTL.
		cur, err := l.rdb.Get(ctx, lockKey(docID)).Result()
		if err != nil {
			return err
		}
		if cur != holder {
			return fmt.Errorf("%w (holder=%s)", ErrLockHeld, cur)
		}
		return l.rdb.Expire(ctx, lockKey(docID), ttl).Err()
	}
	return nil
}

// releaseIfHolder deletes the lock only when the caller still holds it.
var releaseIfHolder = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLock) Unlock(ctx context.Context, docID string, userID uint64) error {
	holder := strconv.FormatUint(userID, 10)
	return releaseIfHolder.Run(ctx, l.rdb, []string{lockKey(docID)}, holder).Err()
}

// Holder returns the current lock holder, or (0, false) when unlocked.
func (l *RedisLock) Holder(ctx context.Context, docID string) (uint64, bool, error) {
	raw, err := l.rdb.Get(ctx, lockKey(docID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	uid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return uid, true, nil
}
