package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// checkAndDelScript releases a lock only when the owner token still
// matches, so a holder whose TTL expired cannot release a successor's
// lock.
var checkAndDelScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Mutex is a Redis-backed lease used by the beat scheduler so that only
// one instance fires a scheduled task per tick.
type Mutex struct {
	rdb *redis.Client
	key string
	ttl time.Duration

	token string
}

// NewMutex returns a mutex on the given key with the given lease TTL.
func (c *Client) NewMutex(key string, ttl time.Duration) *Mutex {
	return &Mutex{rdb: c.rdb, key: key, ttl: ttl}
}

// TryLock attempts to take the lease. It reports false without error when
// another holder owns it.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := m.rdb.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", m.key, err)
	}
	if ok {
		m.token = token
	}
	return ok, nil
}

// Unlock releases the lease if this mutex still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	if m.token == "" {
		return nil
	}
	token := m.token
	m.token = ""
	if err := checkAndDelScript.Run(ctx, m.rdb, []string{m.key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", m.key, err)
	}
	return nil
}
