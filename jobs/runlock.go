package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/northbook/northbook/internal/gl/shared"
)

// releaseScript deletes the lease only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a redis-backed lease guaranteeing at most one reconciliation run
// per tenant at a time. The TTL covers the crash case: an orphaned lease
// expires instead of blocking the schedule forever.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl}
}

// Acquire takes the lease for the given tenant. It returns a release function
// on success and ErrConcurrentRun when another run holds the lease.
func (l *RunLock) Acquire(ctx context.Context, tenant string) (func(context.Context) error, error) {
	key := lockKey(tenant)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrConcurrentRun
	}
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}

func lockKey(tenant string) string {
	if tenant == "" {
		tenant = "default"
	}
	return "northbook:gl:reconcile:" + tenant
}
