package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"time"

	"github.com/redis/go-redis/v9"
)

// acquireScript sets the key with a TTL only when it is absent or
// already held by the same owner (which refreshes the TTL). Returns 1
// when the caller holds the lock afterwards, 0 when a different owner
// does. Running as a script keeps check+set atomic on the server.
var acquireScript = redis.NewScript(`
	local key = KEYS[1]
	local owner = ARGV[1]
	local ttl_ms = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		redis.call('SET', key, owner, 'PX', ttl_ms)
		return 1
	end
	if current == owner then
		redis.call('PEXPIRE', key, ttl_ms)
		return 1
	end
	return 0
`)

// releaseScript deletes the key only when its value equals the owner.
// Returns 1 when the key was deleted or already absent, 0 when a
// different owner holds it.
var releaseScript = redis.NewScript(`
	local key = KEYS[1]
	local owner = ARGV[1]

	local current = redis.call('GET', key)
	if current == false then
		return 1
	end
	if current == owner then
		redis.call('DEL', key)
		return 1
	end
	return 0
`)

// RedisStore implements Store on top of a shared Redis instance. Keys
// are namespaced under a prefix so several deployments can share one
// database.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	retry  RetryConfig
}

// NewRedisStore builds a RedisStore. The client must be non-nil: a
// checkout path without a lock store silently degrades into double
// collisions, so callers should fail startup instead of passing nil.
func NewRedisStore(rdb *redis.Client, prefix string, retry RetryConfig) *RedisStore {
	if rdb == nil {
		panic("lock: nil redis client")
	}
	if prefix == "" {
		prefix = "seatlock"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retry: retry.normalized()}
}

func (s *RedisStore) key(sessionID, seatID uint64) string {
	return fmt.Sprintf("%s:%d:%d", s.prefix, sessionID, seatID)
}

// Acquire implements Store.
func (s *RedisStore) Acquire(ctx context.Context, sessionID, seatID, ownerID uint64, ttl time.Duration) (AcquireResult, error) {
	if ttl <= 0 {
		return AlreadyLocked, fmt.Errorf("lock: non-positive ttl %v", ttl)
	}
	owner := strconv.FormatUint(ownerID, 10)
	var got int64
	err := withRetry(ctx, s.retry, func(ctx context.Context) error {
		v, err := acquireScript.Run(ctx, s.rdb, []string{s.key(sessionID, seatID)}, owner, ttl.Milliseconds()).Int64()
		if err != nil {
			return err
		}
		got = v
		return nil
	})
	if err != nil {
		return AlreadyLocked, fmt.Errorf("%w: acquire: %v", ErrUnavailable, err)
	}
	if got == 1 {
		return Acquired, nil
	}
	return AlreadyLocked, nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, sessionID, seatID, ownerID uint64) (ReleaseResult, error) {
	owner := strconv.FormatUint(ownerID, 10)
	var got int64
	err := withRetry(ctx, s.retry, func(ctx context.Context) error {
		v, err := releaseScript.Run(ctx, s.rdb, []string{s.key(sessionID, seatID)}, owner).Int64()
		if err != nil {
			return err
		}
		got = v
		return nil
	})
	if err != nil {
		return NotOwner, fmt.Errorf("%w: release: %v", ErrUnavailable, err)
	}
	if got == 1 {
		return Released, nil
	}
	return NotOwner, nil
}

// Validate implements Store.
func (s *RedisStore) Validate(ctx context.Context, sessionID, seatID, ownerID uint64) (bool, error) {
	owner := strconv.FormatUint(ownerID, 10)
	var held bool
	err := withRetry(ctx, s.retry, func(ctx context.Context) error {
		v, err := s.rdb.Get(ctx, s.key(sessionID, seatID)).Result()
		if errors.Is(err, redis.Nil) {
			held = false
			return nil
		}
		if err != nil {
			return err
		}
		held = v == owner
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: validate: %v", ErrUnavailable, err)
	}
	return held, nil
}

// ListLocked implements Store using a single MGET over the requested
// seat keys.
func (s *RedisStore) ListLocked(ctx context.Context, sessionID uint64, seatIDs []uint64) (map[uint64]bool, error) {
	locked := make(map[uint64]bool, len(seatIDs))
	if len(seatIDs) == 0 {
		return locked, nil
	}
	keys := make([]string, 0, len(seatIDs))
	for _, sid := range seatIDs {
		keys = append(keys, s.key(sessionID, sid))
	}
	err := withRetry(ctx, s.retry, func(ctx context.Context) error {
		vals, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			if v != nil {
				locked[seatIDs[i]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	return locked, nil
}
