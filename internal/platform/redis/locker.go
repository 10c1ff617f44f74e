package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Locker provides short-lived advisory locks keyed by workflow record. A lock
// reduces version-conflict retries when several instances apply actions to the
// same record; correctness still rests on the store's version check.
type Locker struct {
	client *Client
	ttl    time.Duration
}

const (
	lockKeyPrefix   = "procureflow:record-lock:"
	defaultLockTTL  = 5 * time.Second
	lockRetryDelay  = 25 * time.Millisecond
	lockMaxAttempts = 40
)

// NewLocker returns a locker with the given TTL. A zero ttl uses the default.
func NewLocker(client *Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Locker{client: client, ttl: ttl}
}

// releaseScript deletes the lock only when still held by the caller.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Acquire takes the lock for key, polling until acquired or the context ends.
// The returned release function is safe to call after the TTL expired.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := lockKeyPrefix + key

	for attempt := 0; attempt < lockMaxAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire record lock: %w", err)
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire record lock: %w", ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}

	return nil, fmt.Errorf("acquire record lock %s: contended past deadline", key)
}
