package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrInvalidLock       = errors.New("invalid_lock")
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a single-holder Redis lock. Only the holder of the token can
// release it; an expired lock is free for the next caller.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

// Lease identifies one successful acquisition.
type Lease struct {
	Key   string
	Token string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// Enabled reports whether the locker is backed by Redis.
func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// TryAcquire returns ok=false without error when another holder owns key.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if !l.Enabled() {
		return Lease{}, false, ErrLockNotConfigured
	}
	if key == "" || ttl <= 0 {
		return Lease{}, false, ErrInvalidLock
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return Lease{}, false, err
	}
	if !ok {
		return Lease{}, false, nil
	}
	return Lease{Key: key, Token: token}, true, nil
}

// Release drops the lease if it is still held. Releasing a lease that expired
// and was taken over by another holder is a no-op.
func (l *Locker) Release(ctx context.Context, lease Lease) error {
	if !l.Enabled() || lease.Key == "" || lease.Token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err()
}
