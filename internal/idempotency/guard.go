// Package idempotency drops provider webhook retries that were already processed.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Guard reports whether key is being seen for the first time. Forget clears a
// key whose processing failed so the provider's retry is accepted.
type Guard interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Connect returns nil when url is empty or Redis is unreachable; the service runs without dedupe then.
func Connect(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Info().Msg("idempotency: REDIS_URL not set, webhook dedupe disabled")
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency: bad REDIS_URL, webhook dedupe disabled")
		return nil
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("idempotency: redis unreachable, webhook dedupe disabled")
		_ = client.Close()
		return nil
	}
	log.Info().Str("addr", opt.Addr).Msg("idempotency: connected to redis")
	return client
}

// RedisGuard marks keys with SET NX and a TTL. A nil client lets everything through.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

// FirstSeen fails open: on a Redis error it reports true along with the error.
func (g *RedisGuard) FirstSeen(ctx context.Context, key string) (bool, error) {
	if g == nil || g.client == nil || key == "" {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return true, fmt.Errorf("idempotency: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Forget(ctx context.Context, key string) error {
	if g == nil || g.client == nil || key == "" {
		return nil
	}
	return g.client.Del(ctx, g.prefix+key).Err()
}
