// Package manifest describes which optional patch files exist per language,
// module, persona and mode, and loads that description from the blob store.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/pitabwire/cascade/blob"
)

// TonesKey is the reserved language manifest entry listing mode patches.
const TonesKey = "_tones"

var (
	ErrEmptyManifest = errors.New("manifest: no manifest data received")
	ErrNotAnObject   = errors.New("manifest: expected a JSON object")
)

// Manifest maps language codes to their Language manifest.
// Languages keep the order in which the document lists them.
type Manifest struct {
	order     []string
	languages map[string]*Language
}

// Language lists, for one language, the personas with a patch per module and
// the modules with a patch per mode.
type Language struct {
	moduleOrder []string
	personas    map[string][]string

	modeOrder []string
	tones     map[string][]string
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyManifest
	}

	m := &Manifest{}
	if err := json.Unmarshal(trimmed, m); err != nil {
		return nil, fmt.Errorf("manifest: parse: %w", err)
	}
	return m, nil
}

// Load fetches and parses the manifest from store.
func Load(ctx context.Context, store blob.Store) (*Manifest, error) {
	data, err := store.Download(ctx, blob.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: load: %w", err)
	}
	return Parse(data)
}

// UnmarshalJSON decodes the language map, keeping document order.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	m.order = nil
	m.languages = map[string]*Language{}

	return decodeObject(data, func(key string, raw json.RawMessage) error {
		lang := &Language{}
		if err := json.Unmarshal(raw, lang); err != nil {
			return fmt.Errorf("language %q: %w", key, err)
		}
		if _, seen := m.languages[key]; !seen {
			m.order = append(m.order, key)
		}
		m.languages[key] = lang
		return nil
	})
}

// Languages returns the language codes in document order.
func (m *Manifest) Languages() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.order)
}

// Language returns the manifest of a single language.
func (m *Manifest) Language(code string) (*Language, bool) {
	if m == nil {
		return nil, false
	}
	lang, ok := m.languages[code]
	return lang, ok
}

// UnmarshalJSON decodes module persona lists and the reserved _tones entry.
// Module entries that are not lists of strings carry no persona patches.
func (l *Language) UnmarshalJSON(data []byte) error {
	l.moduleOrder = nil
	l.personas = map[string][]string{}
	l.modeOrder = nil
	l.tones = map[string][]string{}

	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		if key == TonesKey {
			return l.decodeTones(raw)
		}

		if _, seen := l.personas[key]; !seen {
			l.moduleOrder = append(l.moduleOrder, key)
		}

		var personas []string
		if err := json.Unmarshal(raw, &personas); err != nil {
			l.personas[key] = nil
			return nil //nolint:nilerr // non list module entries are tolerated
		}
		l.personas[key] = personas
		return nil
	})
	if errors.Is(err, ErrNotAnObject) {
		// a language without an object body offers no patches
		return nil
	}
	return err
}

func (l *Language) decodeTones(raw json.RawMessage) error {
	err := decodeObject(raw, func(mode string, modules json.RawMessage) error {
		var list []string
		if err := json.Unmarshal(modules, &list); err != nil {
			return nil //nolint:nilerr // a malformed mode entry offers no patches
		}
		if _, seen := l.tones[mode]; !seen {
			l.modeOrder = append(l.modeOrder, mode)
		}
		l.tones[mode] = list
		return nil
	})
	if errors.Is(err, ErrNotAnObject) {
		return nil
	}
	return err
}

// Modules returns the module names listed for the language, in document order.
func (l *Language) Modules() []string {
	if l == nil {
		return nil
	}
	return slices.Clone(l.moduleOrder)
}

// PersonasFor returns the personas with a patch file for module.
func (l *Language) PersonasFor(module string) []string {
	if l == nil {
		return nil
	}
	return slices.Clone(l.personas[module])
}

// HasPersonaPatch reports whether a persona patch exists for module.
func (l *Language) HasPersonaPatch(module, persona string) bool {
	if l == nil {
		return false
	}
	return slices.Contains(l.personas[module], persona)
}

// TonedModules returns the modules with a patch file for mode.
func (l *Language) TonedModules(mode string) []string {
	if l == nil {
		return nil
	}
	return slices.Clone(l.tones[mode])
}

// HasTonePatch reports whether a mode patch exists for module.
func (l *Language) HasTonePatch(mode, module string) bool {
	if l == nil {
		return false
	}
	return slices.Contains(l.tones[mode], module)
}

// Personas returns every persona offered by any module, first seen first.
func (l *Language) Personas() []string {
	if l == nil {
		return nil
	}

	var out []string
	for _, module := range l.moduleOrder {
		for _, persona := range l.personas[module] {
			if !slices.Contains(out, persona) {
				out = append(out, persona)
			}
		}
	}
	return out
}

// Modes returns the modes listed under _tones, in document order.
func (l *Language) Modes() []string {
	if l == nil {
		return nil
	}
	return slices.Clone(l.modeOrder)
}

// decodeObject streams the members of a JSON object to fn in document order.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotAnObject
	}

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("manifest: unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return err
		}

		if err = fn(key, raw); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}
