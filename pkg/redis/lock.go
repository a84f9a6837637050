package redis

import (
	"context"
	"fmt"
	"time"
)

// Locker provides best-effort distributed locks (SET NX with expiry)
// API 서버와 워커가 같은 분석을 동시에 처리하지 않도록 함
type Locker struct {
	client *Client
	prefix string
}

// NewLocker creates a new locker
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// TryLock acquires key for ttl. A disabled client always succeeds.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !l.client.Enabled() {
		return true, nil
	}

	ok, err := l.client.rdb.SetNX(ctx, l.fullKey(key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", key, err)
	}
	return ok, nil
}

// Unlock releases key
func (l *Locker) Unlock(ctx context.Context, key string) error {
	if !l.client.Enabled() {
		return nil
	}
	return l.client.rdb.Del(ctx, l.fullKey(key)).Err()
}

func (l *Locker) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}
