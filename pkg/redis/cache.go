package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTL 단계
const (
	TTLShort = 10 * time.Minute // 처리 락
	TTLLong  = 6 * time.Hour    // 분석 결과
	TTLDaily = 24 * time.Hour   // 일별 외부 피드
)

// Cache stores JSON values under "<prefix>:cache:<key>"
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	ns     string
}

func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, ns: prefix + ":cache:"}
}

// Get decodes the value of key into dest. A miss, or a disabled client, is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	raw, err := c.client.rdb.Get(ctx, c.ns+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set encodes value as JSON; ttl <= 0 uses the client default
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = c.client.DefaultTTL()
	}
	if err := c.client.rdb.Set(ctx, c.ns+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	if err := c.client.rdb.Del(ctx, c.ns+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

func key(parts ...string) string {
	return strings.Join(parts, ":")
}

// AnalysisResultKey is the cache key of a completed analysis result
func AnalysisResultKey(id int64) string {
	return key("analysis", "result", strconv.FormatInt(id, 10))
}

// FeedKey is the cache key of an external feed series
func FeedKey(source, code, from, to string) string {
	return key("feed", source, code, from, to)
}

// LockKey is the key of a processing lock
func LockKey(id int64) string {
	return key("lock", "analysis", strconv.FormatInt(id, 10))
}
