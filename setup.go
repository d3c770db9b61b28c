package cascade

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/cascade/blob"
	"github.com/pitabwire/cascade/cache"
	"github.com/pitabwire/cascade/cache/redis"
	"github.com/pitabwire/cascade/cache/valkey"
	"github.com/pitabwire/cascade/config"
	"github.com/pitabwire/cascade/workerpool"
)

var ErrUnsupportedTier = errors.New("cascade: unsupported shared cache scheme")

// Config is the configuration FromConfig wires an engine from.
type Config interface {
	config.ConfigurationSource
	config.ConfigurationSelection
	config.ConfigurationCache
	config.ConfigurationWorkerPool
	config.ConfigurationTraceRequests
}

// FromConfig builds an engine with the store, caches and worker pool named
// by cfg. The engine owns them; Close releases them. opts are applied after
// the configured ones.
func FromConfig(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	var cleanups []func(ctx context.Context) error
	release := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i](ctx)
		}
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		cleanups = append(cleanups, closeStore)
	}

	configured := []Option{
		WithLanguage(cfg.DefaultLanguage()),
		WithPersona(cfg.DefaultPersona()),
		WithMode(cfg.DefaultMode()),
		WithUserType(cfg.DefaultUserType()),
		WithModuleCache(cache.NewModules(cfg.GetCacheMaxEntries())),
	}

	if dsn := cfg.GetSharedCacheURI(); dsn != "" {
		tier, tierErr := OpenSharedTier(ctx, dsn, cfg.GetSharedCacheTTL())
		if tierErr != nil {
			release()
			return nil, tierErr
		}
		cleanups = append(cleanups, func(context.Context) error { return tier.Close() })
		configured = append(configured, WithSharedTier(tier))
	}

	pool, err := workerpool.New(ctx, cfg, workerpool.WithPoolPanicHandler(func(p any) {
		util.Log(ctx).WithField("panic", p).Error("translation preload task panicked")
	}))
	if err != nil {
		release()
		return nil, fmt.Errorf("cascade: worker pool: %w", err)
	}
	cleanups = append(cleanups, func(context.Context) error {
		pool.Shutdown()
		return nil
	})
	configured = append(configured, WithWorkerPool(pool))

	e := New(ctx, store, append(configured, opts...)...)
	for _, cleanup := range cleanups {
		e.AddCleanupMethod(cleanup)
	}
	return e, nil
}

func openStore(ctx context.Context, cfg config.ConfigurationSource) (blob.Store, func(context.Context) error, error) {
	if base := cfg.GetHTTPBaseURL(); base != "" {
		httpOpts := []blob.HTTPOption{blob.WithHTTPTimeout(cfg.GetHTTPTimeout())}
		if tr, ok := cfg.(config.ConfigurationTraceRequests); ok && tr.TraceReq() {
			httpOpts = append(httpOpts, blob.WithHTTPTraceRequests())
		}
		return blob.NewHTTPStore(base, httpOpts...), nil, nil
	}

	bucket, err := blob.OpenBucket(ctx, cfg.GetBucketURL(), cfg.GetBucketPrefix())
	if err != nil {
		return nil, nil, err
	}
	return bucket, func(ctx context.Context) error {
		util.CloseAndLogOnError(ctx, bucket, "could not close translation bucket")
		return nil
	}, nil
}

// OpenSharedTier connects to the shared tier named by dsn. The scheme picks
// the backend: mem for an in process tier, valkey or valkeys for valkey-go,
// redis or rediss for go-redis. Entries expire after ttl when it is positive.
func OpenSharedTier(ctx context.Context, dsn string, ttl time.Duration) (cache.Tier, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("cascade: shared cache uri: %w", err)
	}

	opts := []cache.Option{cache.WithDSN(dsn), cache.WithMaxAge(ttl)}

	switch u.Scheme {
	case "mem":
		return cache.NewMemoryTier(opts...), nil
	case "valkey", "valkeys":
		tier, tierErr := valkey.New(ctx, opts...)
		if tierErr != nil {
			return nil, tierErr
		}
		return tier, nil
	case "redis", "rediss":
		tier, tierErr := redis.New(ctx, opts...)
		if tierErr != nil {
			return nil, tierErr
		}
		return tier, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTier, u.Scheme)
	}
}
