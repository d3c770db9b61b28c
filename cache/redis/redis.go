package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/cascade/cache"
	"github.com/pitabwire/cascade/dictionary"
)

// Tier is a Redis-backed shared tier.
type Tier struct {
	client *redis.Client
	prefix string
	maxAge time.Duration
}

const connectionTimeout = 5 * time.Second

// New connects to the redis server named by the DSN option.
func New(ctx context.Context, opts ...cache.Option) (*Tier, error) {
	cacheOpts := cache.Apply(opts...)

	redisOpts, err := redis.ParseURL(cacheOpts.DSN)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err = client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Tier{
		client: client,
		prefix: cacheOpts.Prefix,
		maxAge: cacheOpts.MaxAge,
	}, nil
}

// Fetch retrieves the merged dictionary stored for slot.
func (t *Tier) Fetch(ctx context.Context, slot cache.Slot) (dictionary.Tree, bool, error) {
	val, err := t.client.Get(ctx, cache.Key(t.prefix, slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	tree, err := cache.Decode(val)
	if err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

// Store writes the merged dictionary for slot.
func (t *Tier) Store(ctx context.Context, slot cache.Slot, tree dictionary.Tree) error {
	data, err := cache.Encode(tree)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, cache.Key(t.prefix, slot), data, t.maxAge).Err()
}

// Close closes the Redis connection.
func (t *Tier) Close() error {
	return t.client.Close()
}
