package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis lock
// ============================================================================
//
// Acquire: SET key token NX PX ttl
//   - NX keeps it exclusive
//   - the ttl frees the key if the holder dies
//   - token identifies the holder
//
// Release: compare-and-delete in one Lua script, so a holder whose lock
// already expired cannot delete the next holder's key.
//
// ============================================================================

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// DistributedLock is a single named lock owned by one token.
type DistributedLock struct {
	client     redis.Cmdable
	key        string
	token      string
	expiration time.Duration
}

func NewDistributedLock(client redis.Cmdable, key, token string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		token:      token,
		expiration: expiration,
	}
}

// TryLock makes one attempt and reports whether the lock was taken.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
}

// Unlock releases the lock if this token still owns it. It reports whether
// a key was deleted.
func (l *DistributedLock) Unlock(ctx context.Context) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
