package redlock

import (
	"context"
	"fmt"

	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is a non-blocking distributed lock over a single Redis key. It
// guarantees at most one holder across the whole fleet at any instant.
// TryLock never queues: if the key is held elsewhere it returns false
// immediately, which callers treat as a normal skip rather than an error.
type Locker struct {
	client redis.UniversalClient
	key    string
	value  string // Used for ensuring that only the lock holder can unlock the lock
}

func NewLocker(client redis.UniversalClient, key, value string) *Locker {
	return &Locker{
		client: client,
		key:    key,
		value:  value,
	}
}

// TryLock attempts to acquire the lock without blocking. The ttl bounds how
// long a crashed holder can keep the lock before it expires on its own.
func (l *Locker) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// ExtendLock pushes the lock's expiry out by extension, provided this locker
// still holds it. Long-running holders call this periodically so the TTL stays
// a crash bound instead of an upper bound on run duration.
func (l *Locker) ExtendLock(ctx context.Context, extension time.Duration) error {
	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value, fmt.Sprintf("%d", extension.Milliseconds())).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("lock extension failed for key %s, either lock expired or you're not the holder", l.key)
	}
	return nil
}

// Unlock releases the lock if this locker still holds it. Releasing a lock
// that expired or was taken over is not an error worth propagating, so the
// caller convention is to log failures and move on.
func (l *Locker) Unlock(ctx context.Context) error {
	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("unlock failed, either lock expired or you're not the lock holder for key %s", l.key)
	}
	return nil
}
