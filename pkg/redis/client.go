package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/factorlab/pkg/config"
)

const dialCheckTimeout = 3 * time.Second

// Client is the shared go-redis connection. A client without a connection is
// disabled and every Cache/Locker built on it is a no-op.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects when REDIS_ENABLED is set and fails if the server does not answer
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return Disabled(), nil
	}

	rdb := redis.NewClient(options(cfg.Redis))
	pingCtx, cancel := context.WithTimeout(ctx, dialCheckTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rdb.Options().Addr, err)
	}
	return &Client{rdb: rdb, ttl: cfg.Redis.TTL}, nil
}

func options(c config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     net.JoinHostPort(c.Host, c.Port),
		Password: c.Password,
		DB:       c.DB,
	}
}

// Disabled returns a client with caching turned off
func Disabled() *Client {
	return &Client{}
}

func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Client) Enabled() bool {
	return c.rdb != nil
}

// DefaultTTL is REDIS_TTL, or TTLLong when unset
func (c *Client) DefaultTTL() time.Duration {
	if c.ttl > 0 {
		return c.ttl
	}
	return TTLLong
}
