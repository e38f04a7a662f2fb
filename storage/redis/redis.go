// Package redis stores each cart as a JSON string under its own key. Keys
// never expire.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/83west/storefront/core/cart"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	URL          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// Connect parses cfg.URL, applies the timeouts and pings the server.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

type Persister struct {
	client *redis.Client
}

func New(client *redis.Client) *Persister {
	return &Persister{client: client}
}

func key(cartID string) string {
	return fmt.Sprintf("%s:%s", cart.StorageKey, cartID)
}

func (p *Persister) Load(ctx context.Context, cartID string) ([]cart.Line, error) {
	b, err := p.client.Get(ctx, key(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart[%s]: %w", cartID, err)
	}

	return cart.Decode(b)
}

func (p *Persister) Save(ctx context.Context, cartID string, lines []cart.Line) error {
	b, err := cart.Encode(lines)
	if err != nil {
		return err
	}

	if err := p.client.Set(ctx, key(cartID), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set cart[%s]: %w", cartID, err)
	}
	return nil
}
