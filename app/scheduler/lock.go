package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProcessingLock arbitrates which worker may run a campaign's send loop.
// The token proves ownership; every mutation of campaign or contact state
// happens under a held token.
type ProcessingLock interface {
	// Acquire takes the lock for campaignID, failing with ErrLockHeld when a
	// live owner exists
	Acquire(ctx context.Context, campaignID uint, owner string) (token string, err error)
	// Steal replaces the current owner unconditionally. Callers must first
	// establish staleness and write an audit reclamation entry.
	Steal(ctx context.Context, campaignID uint, owner string) (token string, err error)
	// Release frees the lock if token still owns it
	Release(ctx context.Context, campaignID uint, token string) error
	// Refresh extends the lock lifetime while a send loop is running
	Refresh(ctx context.Context, campaignID uint, token string) error
}

// IsLockStale reports whether a lock acquired at acquiredAt has outlived the
// staleness threshold, meaning its worker crashed mid-processing
func IsLockStale(acquiredAt *time.Time, now time.Time, staleAfter time.Duration) bool {
	if acquiredAt == nil {
		return false
	}
	return now.Sub(*acquiredAt) > staleAfter
}

// RedisProcessingLock implements ProcessingLock with SET NX tokens. The TTL
// bounds how long a crashed worker can wedge a campaign; Refresh keeps a
// healthy worker's lock alive across long window waits.
type RedisProcessingLock struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisProcessingLock creates a Redis-backed processing lock
func NewRedisProcessingLock(rc *redis.Client, prefix string, ttl time.Duration) *RedisProcessingLock {
	return &RedisProcessingLock{rc: rc, prefix: prefix, ttl: ttl}
}

func (l *RedisProcessingLock) key(campaignID uint) string {
	return fmt.Sprintf("%scampaign:%d:lock", l.prefix, campaignID)
}

// Acquire takes the campaign lock via SET NX
func (l *RedisProcessingLock) Acquire(ctx context.Context, campaignID uint, owner string) (string, error) {
	token := owner + ":" + uuid.NewString()
	ok, err := l.rc.SetNX(ctx, l.key(campaignID), token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("lock acquire for campaign %d: %w", campaignID, err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Steal overwrites the lock regardless of the current owner
func (l *RedisProcessingLock) Steal(ctx context.Context, campaignID uint, owner string) (string, error) {
	token := owner + ":" + uuid.NewString()
	if err := l.rc.Set(ctx, l.key(campaignID), token, l.ttl).Err(); err != nil {
		return "", fmt.Errorf("lock steal for campaign %d: %w", campaignID, err)
	}
	return token, nil
}

// releaseScript deletes the key only when the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release frees the lock held by token
func (l *RedisProcessingLock) Release(ctx context.Context, campaignID uint, token string) error {
	n, err := releaseScript.Run(ctx, l.rc, []string{l.key(campaignID)}, token).Int()
	if err != nil {
		return fmt.Errorf("lock release for campaign %d: %w", campaignID, err)
	}
	if n == 0 {
		return ErrNotLockOwner
	}
	return nil
}

// refreshScript extends the TTL only when the caller still owns the key
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Refresh extends the lock lifetime for token
func (l *RedisProcessingLock) Refresh(ctx context.Context, campaignID uint, token string) error {
	n, err := refreshScript.Run(ctx, l.rc, []string{l.key(campaignID)}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("lock refresh for campaign %d: %w", campaignID, err)
	}
	if n == 0 {
		return ErrNotLockOwner
	}
	return nil
}
