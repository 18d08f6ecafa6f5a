package publish

import (
	"context"
	"fmt"
	"time"

	"gapscan/internal/scanner"
	"gapscan/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Client is the part of a redis client the publisher needs.
type Client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Config controls where the watchlist goes. An empty Key or Channel skips it.
type Config struct {
	Key     string
	Channel string
	TTL     time.Duration
}

// Watchlist is the published payload.
type Watchlist struct {
	ScannedAt  time.Time           `json:"scannedAt"`
	Symbols    []string            `json:"symbols"`
	Candidates []scanner.Candidate `json:"candidates"`
}

// NewWatchlist builds the payload of one scan.
func NewWatchlist(at time.Time, candidates []scanner.Candidate) Watchlist {
	symbols := make([]string, len(candidates))
	for i, c := range candidates {
		symbols[i] = c.Symbol
	}
	if candidates == nil {
		candidates = []scanner.Candidate{}
	}
	return Watchlist{
		ScannedAt:  at.UTC(),
		Symbols:    symbols,
		Candidates: candidates,
	}
}

// Publisher writes the latest watchlist to a redis key and announces it on a channel.
type Publisher struct {
	client Client
	cfg    Config
}

// NewRedisClient connects a go-redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// New creates a publisher.
func New(client Client, cfg Config) *Publisher {
	return &Publisher{client: client, cfg: cfg}
}

// Publish stores and announces the watchlist.
func (p *Publisher) Publish(ctx context.Context, w Watchlist) error {
	if p == nil || p.client == nil {
		return exception.ErrNilInstance
	}
	payload, err := sonic.ConfigStd.Marshal(w)
	if err != nil {
		return fmt.Errorf("%w: encode watchlist: %w", exception.ErrPublishFailed, err)
	}

	if p.cfg.Key != "" {
		if err := p.client.Set(ctx, p.cfg.Key, payload, p.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("%w: set %s: %w", exception.ErrPublishFailed, p.cfg.Key, err)
		}
	}
	if p.cfg.Channel != "" {
		if err := p.client.Publish(ctx, p.cfg.Channel, payload).Err(); err != nil {
			return fmt.Errorf("%w: publish %s: %w", exception.ErrPublishFailed, p.cfg.Channel, err)
		}
	}
	return nil
}
