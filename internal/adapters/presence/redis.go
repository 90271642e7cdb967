// Package presence mirrors relay membership into Redis so other processes
// can see which peers are online.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultKey     = "voicerelay:peers"
	defaultTimeout = 500 * time.Millisecond
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL refreshes the expiry of the whole set on every join.
	TTL time.Duration
}

// RedisPresence keeps a Redis set of registered peer ids. Failures are
// logged and never propagate to the caller.
type RedisPresence struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	timeout time.Duration
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, opts Options) (*RedisPresence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return New(client, opts.TTL), nil
}

func New(client *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{
		client:  client,
		key:     DefaultKey,
		ttl:     ttl,
		timeout: defaultTimeout,
	}
}

func (p *RedisPresence) Joined(ctx context.Context, id domain.PeerID) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, p.key, string(id))
		if p.ttl > 0 {
			pipe.Expire(ctx, p.key, p.ttl)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "presence").Str("peer_id", string(id)).Msg("mirror join")
	}
}

func (p *RedisPresence) Left(ctx context.Context, id domain.PeerID) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.SRem(ctx, p.key, string(id)).Err(); err != nil {
		log.Warn().Err(err).Str("module", "presence").Str("peer_id", string(id)).Msg("mirror leave")
	}
}

// Members returns the mirrored ids.
func (p *RedisPresence) Members(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, p.key).Result()
}

// Reset drops whatever a previous process left behind.
func (p *RedisPresence) Reset(ctx context.Context) error {
	return p.client.Del(ctx, p.key).Err()
}

func (p *RedisPresence) Close() error {
	return p.client.Close()
}
