package cascade

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/pitabwire/cascade/localization"
	"github.com/pitabwire/cascade/telemetry"
	"github.com/pitabwire/cascade/workerpool"
)

// Lookup resolves the dot separated keyPath in module for the active
// selection. It initialises the engine and loads the module as needed, and
// returns defaultValue when the key is absent, is not a string, or the
// engine has no manifest.
func (e *Engine) Lookup(ctx context.Context, module, keyPath, defaultValue string) string {
	if res := e.Init(ctx); res.Status != StatusReady {
		e.metrics.RecordLookup(ctx, telemetry.StatusDefault)
		return defaultValue
	}

	tree := e.ensureLoaded(ctx, module)

	value, ok := tree.String(keyPath)
	if !ok {
		e.metrics.RecordLookup(ctx, telemetry.StatusDefault)
		return defaultValue
	}

	e.metrics.RecordLookup(ctx, telemetry.StatusHit)
	return value
}

// T resolves keyPath in module, falling back to the key itself.
func (e *Engine) T(ctx context.Context, module, keyPath string) string {
	return e.Lookup(ctx, module, keyPath, keyPath)
}

// Tf resolves keyPath like Lookup and renders the result as a template with
// data. A template that fails to render is returned unrendered.
func (e *Engine) Tf(ctx context.Context, module, keyPath, defaultValue string, data map[string]any) string {
	text := e.Lookup(ctx, module, keyPath, defaultValue)

	rendered, err := localization.Render(e.Context().Language, module+"."+keyPath, text, data)
	if err != nil {
		util.Log(ctx).
			WithError(err).
			WithField("module", module).
			WithField("key", keyPath).
			Warn("could not render translation template")
		return text
	}
	return rendered
}

// Preload loads modules for the active selection in parallel on the worker
// pool. With no modules named, every module the manifest lists for the
// active language is loaded.
func (e *Engine) Preload(ctx context.Context, modules ...string) error {
	if res := e.Init(ctx); res.Status != StatusReady {
		return res.Err
	}

	if len(modules) == 0 {
		lang, _ := e.manifest.Language(e.Context().Language)
		modules = lang.Modules()
	}

	tasks := make([]func(context.Context) error, 0, len(modules))
	for _, module := range modules {
		tasks = append(tasks, func(taskCtx context.Context) error {
			e.ensureLoaded(taskCtx, module)
			return taskCtx.Err()
		})
	}

	return workerpool.Run(ctx, e.pool, tasks...)
}
