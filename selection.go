package cascade

import (
	"cmp"
	"context"
	"slices"

	"github.com/pitabwire/util"

	"github.com/pitabwire/cascade/cache"
	"github.com/pitabwire/cascade/localization"
)

// Selection is the set of selectors that decide which layers a module is
// merged from.
type Selection struct {
	Language string `json:"language"`
	Persona  string `json:"persona"`
	Mode     string `json:"mode"`
	UserType string `json:"user_type"`
}

// ContextKey is the cache discriminator of the selection within a language.
func (s Selection) ContextKey() string {
	return cache.ContextKey(s.UserType, s.Persona, s.Mode)
}

func (s Selection) slot(module string) cache.Slot {
	return cache.Slot{Language: s.Language, Module: module, ContextKey: s.ContextKey()}
}

// normalise fills empty selectors: the language from base, the rest with
// DefaultSelector.
func (s Selection) normalise(base Selection) Selection {
	if s.Language == "" {
		s.Language = base.Language
	}
	if s.Persona == "" {
		s.Persona = DefaultSelector
	}
	if s.Mode == "" {
		s.Mode = DefaultSelector
	}
	if s.UserType == "" {
		s.UserType = DefaultSelector
	}
	return s
}

// Available lists the selector values a manifest offers.
type Available struct {
	Languages []string `json:"languages"`
	Personas  []string `json:"personas"`
	Modes     []string `json:"modes"`
}

func defaultFallback() Available {
	return Available{
		Languages: []string{"en"},
		Personas:  []string{DefaultSelector, "student", "professional"},
		Modes:     []string{DefaultSelector, "zen", "roast", "bro"},
	}
}

// SetContext switches the active selectors once initialisation has settled.
// Empty persona, mode and userType mean DefaultSelector; an empty language
// keeps the initial one. Any change marks every module for reload.
func (e *Engine) SetContext(ctx context.Context, language, persona, mode, userType string) error {
	return e.SetSelection(ctx, Selection{
		Language: language,
		Persona:  persona,
		Mode:     mode,
		UserType: userType,
	})
}

// SetSelection is SetContext taking a Selection.
func (e *Engine) SetSelection(ctx context.Context, next Selection) error {
	if res := e.Init(ctx); res.Status == StatusPending {
		return res.Err
	}

	next = next.normalise(e.initial)

	e.mu.Lock()
	defer e.mu.Unlock()

	if next == e.selection {
		return nil
	}

	util.Log(ctx).
		WithField("from", e.selection).
		WithField("to", next).
		Debug("translation context changed")

	e.selection = next
	clear(e.loaded)
	return nil
}

// Context returns the active selectors.
func (e *Engine) Context() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selection
}

// Options waits for initialisation and lists the languages, personas and
// modes the manifest offers. Personas and modes come from the first
// language. Without a manifest the fallback lists are returned.
func (e *Engine) Options(ctx context.Context) Available {
	e.Init(ctx)

	m, ok := e.Manifest()
	if !ok {
		return Available{
			Languages: slices.Clone(e.fallback.Languages),
			Personas:  slices.Clone(e.fallback.Personas),
			Modes:     slices.Clone(e.fallback.Modes),
		}
	}

	available := Available{Languages: m.Languages()}
	if len(available.Languages) == 0 {
		return available
	}

	first, _ := m.Language(available.Languages[0])
	available.Personas = first.Personas()
	available.Modes = first.Modes()
	return available
}

// NegotiateLanguage picks the offered language that best serves accept, or
// the preferences stored with localization.ToContext when accept is empty.
// Regional variants resolve to their base language, so en-GB selects en.
func (e *Engine) NegotiateLanguage(ctx context.Context, accept ...string) string {
	if len(accept) == 0 {
		accept = localization.FromContext(ctx)
	}
	return cmp.Or(localization.Negotiate(e.Options(ctx).Languages, accept...), e.initial.Language)
}

// Choose reconciles preferred selectors with what the manifest offers.
// The language is negotiated against the manifest languages, falling back to
// the first of them; a preferred persona or mode is kept only when offered,
// otherwise the initial selector is used. An empty preferred language uses
// the preferences stored in ctx. Without a manifest the initial selection is
// returned.
func (e *Engine) Choose(ctx context.Context, prefs Selection) Selection {
	available := e.Options(ctx)
	if _, ok := e.Manifest(); !ok {
		return e.initial
	}

	chosen := Selection{
		Language: e.initial.Language,
		Persona:  e.initial.Persona,
		Mode:     e.initial.Mode,
		UserType: cmp.Or(prefs.UserType, e.initial.UserType),
	}

	accept := localization.FromContext(ctx)
	if prefs.Language != "" {
		accept = []string{prefs.Language}
	}
	if lang := localization.Negotiate(available.Languages, accept...); lang != "" {
		chosen.Language = lang
	}

	if prefs.Persona != "" && slices.Contains(available.Personas, prefs.Persona) {
		chosen.Persona = prefs.Persona
	}
	if prefs.Mode != "" && slices.Contains(available.Modes, prefs.Mode) {
		chosen.Mode = prefs.Mode
	}

	return chosen.normalise(e.initial)
}
