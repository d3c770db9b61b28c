package cascade

import (
	"context"

	"github.com/pitabwire/cascade/cache"
	"github.com/pitabwire/cascade/telemetry"
	"github.com/pitabwire/cascade/workerpool"
)

// Option configures an Engine.
type Option func(ctx context.Context, e *Engine)

// WithLanguage sets the language the engine starts with.
func WithLanguage(language string) Option {
	return func(_ context.Context, e *Engine) {
		e.initial.Language = language
	}
}

// WithPersona sets the persona the engine starts with.
func WithPersona(persona string) Option {
	return func(_ context.Context, e *Engine) {
		e.initial.Persona = persona
	}
}

// WithMode sets the mode the engine starts with.
func WithMode(mode string) Option {
	return func(_ context.Context, e *Engine) {
		e.initial.Mode = mode
	}
}

// WithUserType sets the user type the engine starts with.
func WithUserType(userType string) Option {
	return func(_ context.Context, e *Engine) {
		e.initial.UserType = userType
	}
}

// WithModuleCache replaces the default unbounded module cache.
func WithModuleCache(modules *cache.Modules) Option {
	return func(_ context.Context, e *Engine) {
		e.modules = modules
	}
}

// WithSharedTier lets engines share merged dictionaries through tier.
// The caller keeps ownership of tier.
func WithSharedTier(tier cache.Tier) Option {
	return func(_ context.Context, e *Engine) {
		e.shared = tier
	}
}

// WithWorkerPool runs Preload on pool. The caller keeps ownership of pool.
func WithWorkerPool(pool workerpool.WorkerPool) Option {
	return func(_ context.Context, e *Engine) {
		e.pool = pool
	}
}

// WithTelemetry records engine activity on m.
func WithTelemetry(m *telemetry.Metrics) Option {
	return func(_ context.Context, e *Engine) {
		e.metrics = m
	}
}

// WithFallbackOptions sets what Options reports when no manifest is available.
func WithFallbackOptions(available Available) Option {
	return func(_ context.Context, e *Engine) {
		e.fallback = available
	}
}
