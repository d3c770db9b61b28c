package cascade

import (
	"context"
	"errors"

	"github.com/pitabwire/util"

	"github.com/pitabwire/cascade/blob"
	"github.com/pitabwire/cascade/dictionary"
	"github.com/pitabwire/cascade/telemetry"
)

// ensureLoaded returns the merged dictionary of module for the active
// selection, loading it when the module is not fresh for that selection.
// It returns nil only when ctx ends before a load settles.
func (e *Engine) ensureLoaded(ctx context.Context, module string) dictionary.Tree {
	e.mu.RLock()
	sel := e.selection
	_, fresh := e.loaded[module]
	e.mu.RUnlock()

	if fresh {
		if tree, ok := e.modules.Get(sel.slot(module)); ok {
			return tree
		}
	}

	return e.load(ctx, module, sel)
}

func (e *Engine) isFresh(module string, sel Selection) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.selection != sel {
		return false
	}
	_, ok := e.loaded[module]
	return ok
}

// load merges module for sel. Callers asking for the same slot while a load
// is in flight share its result.
func (e *Engine) load(ctx context.Context, module string, sel Selection) dictionary.Tree {
	slot := sel.slot(module)

	flight := e.flights.DoChan(slot.String(), func() (any, error) {
		if e.isFresh(module, sel) {
			if tree, ok := e.modules.Get(slot); ok {
				return tree, nil
			}
		}
		return e.loadModule(context.WithoutCancel(ctx), module, sel), nil
	})

	select {
	case res := <-flight:
		tree, _ := res.Val.(dictionary.Tree)
		return tree
	case <-ctx.Done():
		return nil
	}
}

// loadModule fetches and merges the layers of module in precedence order:
// base, userType patch, persona patch, mode patch. Every fetch failure is
// soft and contributes an empty layer, but a merge missing a layer that
// failed for any reason other than absence is kept out of the shared tier.
func (e *Engine) loadModule(ctx context.Context, module string, sel Selection) dictionary.Tree {
	tracer := e.metrics.Tracer()
	ctx, span := tracer.Start(ctx, "load")

	slot := sel.slot(module)
	log := util.Log(ctx).
		WithField("language", sel.Language).
		WithField("module", module).
		WithField("context", slot.ContextKey)

	if e.shared != nil {
		tree, found, err := e.shared.Fetch(ctx, slot)
		switch {
		case err != nil:
			log.WithError(err).Warn("shared translation cache unavailable")
		case found:
			log.Debug("module served from shared translation cache")
			e.publish(ctx, module, sel, tree, telemetry.StatusShared)
			tracer.End(ctx, span, nil)
			return tree
		}
	}

	log.Debug("loading translation module")

	lang, _ := e.manifest.Language(sel.Language)

	merged, complete := e.fetchLayer(ctx, log, telemetry.KindBase, sel.Language, module)

	merge := func(kind, file string) {
		patch, ok := e.fetchLayer(ctx, log, kind, sel.Language, file)
		merged = dictionary.Merge(merged, patch)
		complete = complete && ok
	}

	if sel.UserType != DefaultSelector {
		merge(telemetry.KindUserType, module+"_userType_"+sel.UserType)
	}

	if sel.Persona != DefaultSelector && lang.HasPersonaPatch(module, sel.Persona) {
		merge(telemetry.KindPersona, module+"_"+sel.Persona)
	}

	if sel.Mode != DefaultSelector && lang.HasTonePatch(sel.Mode, module) {
		merge(telemetry.KindMode, module+"_"+sel.Mode)
	}

	if e.shared != nil {
		if !complete {
			log.Debug("merged translation module has failed layers, not sharing it")
		} else if err := e.shared.Store(ctx, slot, merged); err != nil {
			log.WithError(err).Warn("could not share merged translation module")
		}
	}

	e.publish(ctx, module, sel, merged, telemetry.StatusOK)
	tracer.End(ctx, span, nil)

	log.Debug("finished loading translation module")
	return merged
}

// publish caches tree and marks module fresh when sel is still active.
func (e *Engine) publish(ctx context.Context, module string, sel Selection, tree dictionary.Tree, status string) {
	e.modules.Put(sel.slot(module), tree)

	e.mu.Lock()
	current := e.selection == sel
	if current {
		e.loaded[module] = struct{}{}
	}
	e.mu.Unlock()

	if !current {
		status = telemetry.StatusDiscard
	}
	e.metrics.RecordLoad(ctx, status)
}

// fetchLayer downloads and decodes {language}/{file}.json. A missing or
// unreadable file yields an empty tree; ok is false unless the file decoded
// or was simply absent.
func (e *Engine) fetchLayer(
	ctx context.Context,
	log *util.LogEntry,
	kind, language, file string,
) (dictionary.Tree, bool) {
	path := blob.ModulePath(language, file)
	log = log.WithField("path", path)

	data, err := e.store.Download(ctx, path)
	if err != nil {
		e.metrics.RecordFetch(ctx, kind, fetchStatus(err))
		missing := errors.Is(err, blob.ErrNotFound)
		if kind != telemetry.KindBase && missing {
			log.Debug("optional translation patch not present")
		} else {
			log.WithError(err).Warn("could not fetch translation file")
		}
		return dictionary.Tree{}, missing
	}

	tree, err := dictionary.Decode(data)
	if err != nil {
		e.metrics.RecordFetch(ctx, kind, telemetry.StatusError)
		log.WithError(err).Warn("could not parse translation file")
		return dictionary.Tree{}, false
	}

	e.metrics.RecordFetch(ctx, kind, telemetry.StatusOK)
	return tree, true
}
