package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionLockPrefix = "checkout_session_lock:"

// unlockScript deletes the key only while it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis serializes webhook deliveries that touch the same checkout session.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{Client: client, TTL: ttl}
}

// LockSession takes the lock for sessionID on behalf of owner (the Stripe event id).
// It reports false when another delivery holds it.
func (r *Redis) LockSession(ctx context.Context, sessionID, owner string) (bool, error) {
	return r.Client.SetNX(ctx, sessionLockPrefix+sessionID, owner, r.TTL).Result()
}

// UnlockSession releases the lock only if owner still holds it.
func (r *Redis) UnlockSession(ctx context.Context, sessionID, owner string) error {
	return unlockScript.Run(ctx, r.Client, []string{sessionLockPrefix + sessionID}, owner).Err()
}

// NoopLocker is used when no Redis address is configured.
type NoopLocker struct{}

func (NoopLocker) LockSession(context.Context, string, string) (bool, error) { return true, nil }

func (NoopLocker) UnlockSession(context.Context, string, string) error { return nil }
