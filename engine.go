// Package cascade resolves localized strings from layered translation files.
//
// An Engine loads a manifest once, then for each requested module merges the
// base file with the userType, persona and mode patches the manifest allows,
// caching one merged dictionary per language, module and context.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pitabwire/util"
	"golang.org/x/sync/singleflight"

	"github.com/pitabwire/cascade/blob"
	"github.com/pitabwire/cascade/cache"
	"github.com/pitabwire/cascade/manifest"
	"github.com/pitabwire/cascade/telemetry"
	"github.com/pitabwire/cascade/workerpool"
)

// DefaultSelector is the persona, mode and userType value that requests no
// override layer.
const DefaultSelector = "default"

// ErrManifestUnavailable marks an engine that initialised without a manifest
// and only serves default values.
var ErrManifestUnavailable = errors.New("cascade: manifest unavailable")

// Status reports how far initialisation got.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusDegraded:
		return "degraded"
	default:
		return "pending"
	}
}

// InitResult is the settled outcome of initialisation. Err is set when the
// manifest could not be loaded, or when the caller stopped waiting.
type InitResult struct {
	Status Status
	Err    error
}

// Engine resolves translations. It is safe for concurrent use.
type Engine struct {
	store blob.Store

	initOnce   sync.Once
	initDone   chan struct{}
	initResult InitResult
	manifest   *manifest.Manifest

	mu        sync.RWMutex
	selection Selection
	loaded    map[string]struct{}

	initial  Selection
	fallback Available

	modules *cache.Modules
	shared  cache.Tier
	pool    workerpool.WorkerPool
	metrics *telemetry.Metrics

	flights singleflight.Group

	cleanupMu sync.Mutex
	cleanups  []func(ctx context.Context) error
}

// New creates an engine reading translation files from store.
func New(ctx context.Context, store blob.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		initDone: make(chan struct{}),
		loaded:   map[string]struct{}{},
		initial: Selection{
			Language: "en",
			Persona:  DefaultSelector,
			Mode:     DefaultSelector,
			UserType: DefaultSelector,
		},
		fallback: defaultFallback(),
	}

	for _, opt := range opts {
		opt(ctx, e)
	}

	if e.modules == nil {
		e.modules = cache.NewModules(0)
	}
	if e.metrics == nil {
		e.metrics = telemetry.NewMetrics(nil, nil)
	}

	e.initial = e.initial.normalise(e.initial)
	e.selection = e.initial

	return e
}

// Init starts the manifest load if it has not started yet and waits for it
// to settle. Concurrent callers share one load. The load itself is not tied
// to ctx; if ctx ends first the result is StatusPending with ctx's error.
func (e *Engine) Init(ctx context.Context) InitResult {
	e.initOnce.Do(func() {
		go e.loadManifest(context.WithoutCancel(ctx))
	})

	select {
	case <-e.initDone:
		return e.initResult
	case <-ctx.Done():
		return InitResult{Status: StatusPending, Err: ctx.Err()}
	}
}

func (e *Engine) loadManifest(ctx context.Context) {
	defer close(e.initDone)

	tracer := e.metrics.Tracer()
	ctx, span := tracer.Start(ctx, "manifest")

	m, err := manifest.Load(ctx, e.store)
	tracer.End(ctx, span, err)

	if err != nil {
		e.metrics.RecordFetch(ctx, telemetry.KindManifest, fetchStatus(err))
		util.Log(ctx).WithError(err).Error("translation manifest unavailable, serving default values only")

		e.initResult = InitResult{
			Status: StatusDegraded,
			Err:    fmt.Errorf("%w: %w", ErrManifestUnavailable, err),
		}
		return
	}

	e.metrics.RecordFetch(ctx, telemetry.KindManifest, telemetry.StatusOK)
	e.manifest = m
	e.initResult = InitResult{Status: StatusReady}

	util.Log(ctx).WithField("languages", m.Languages()).Info("translation manifest loaded")
}

// Status reports the initialisation state without waiting.
func (e *Engine) Status() Status {
	select {
	case <-e.initDone:
		return e.initResult.Status
	default:
		return StatusPending
	}
}

// Manifest returns the loaded manifest. It reports false while
// initialisation is pending or after it failed.
func (e *Engine) Manifest() (*manifest.Manifest, bool) {
	select {
	case <-e.initDone:
		return e.manifest, e.manifest != nil
	default:
		return nil, false
	}
}

// AddCleanupMethod registers f to run on Close, last registered first.
func (e *Engine) AddCleanupMethod(f func(ctx context.Context) error) {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	e.cleanups = append(e.cleanups, f)
}

// Close releases the resources the engine was configured to own.
func (e *Engine) Close(ctx context.Context) error {
	e.cleanupMu.Lock()
	cleanups := e.cleanups
	e.cleanups = nil
	e.cleanupMu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func fetchStatus(err error) string {
	if errors.Is(err, blob.ErrNotFound) {
		return telemetry.StatusMissing
	}
	return telemetry.StatusError
}
