package cache

import (
	"net/url"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pitabwire/cascade/dictionary"
)

// ContextKeySeparator joins the selectors of a context key.
const ContextKeySeparator = "_"

// ContextKey derives the innermost cache discriminator from the selectors.
// Language is not part of it; it is the outermost cache dimension.
func ContextKey(userType, persona, mode string) string {
	return userType + ContextKeySeparator + persona + ContextKeySeparator + mode
}

// Slot addresses one merged dictionary in the cache.
type Slot struct {
	Language   string
	Module     string
	ContextKey string
}

// String renders the slot as language/module/contextKey with each part path
// escaped, so distinct slots never render alike.
func (s Slot) String() string {
	return url.PathEscape(s.Language) + "/" + url.PathEscape(s.Module) + "/" + url.PathEscape(s.ContextKey)
}

// Modules is the in process module cache:
// language -> module -> context key -> merged dictionary.
//
// Without a bound it only grows. With a bound the least recently used slots
// are evicted once the number of stored slots exceeds maxEntries.
type Modules struct {
	mu      sync.RWMutex
	entries map[string]map[string]map[string]dictionary.Tree
	count   int

	maxEntries int
	recency    *lru.Cache[Slot, struct{}]
}

// NewModules creates a module cache. maxEntries <= 0 disables eviction.
func NewModules(maxEntries int) *Modules {
	m := &Modules{
		entries:    map[string]map[string]map[string]dictionary.Tree{},
		maxEntries: maxEntries,
	}

	if maxEntries > 0 {
		// only fails for a non positive size
		m.recency, _ = lru.New[Slot, struct{}](maxEntries)
	}

	return m
}

// Get returns the merged dictionary stored for slot.
func (m *Modules) Get(slot Slot) (dictionary.Tree, bool) {
	m.mu.RLock()
	tree, ok := m.entries[slot.Language][slot.Module][slot.ContextKey]
	m.mu.RUnlock()

	if ok && m.recency != nil {
		m.recency.Get(slot)
	}
	return tree, ok
}

// Put stores tree for slot, superseding any previous entry.
func (m *Modules) Put(slot Slot, tree dictionary.Tree) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byModule, ok := m.entries[slot.Language]
	if !ok {
		byModule = map[string]map[string]dictionary.Tree{}
		m.entries[slot.Language] = byModule
	}

	byContext, ok := byModule[slot.Module]
	if !ok {
		byContext = map[string]dictionary.Tree{}
		byModule[slot.Module] = byContext
	}

	if _, exists := byContext[slot.ContextKey]; !exists {
		m.count++
	}
	byContext[slot.ContextKey] = tree

	if m.recency == nil {
		return
	}

	if !m.recency.Contains(slot) && m.recency.Len() >= m.maxEntries {
		if oldest, _, evicted := m.recency.RemoveOldest(); evicted {
			m.remove(oldest)
		}
	}
	m.recency.Add(slot, struct{}{})
}

// remove drops slot; callers hold the write lock.
func (m *Modules) remove(slot Slot) {
	byContext, ok := m.entries[slot.Language][slot.Module]
	if !ok {
		return
	}
	if _, exists := byContext[slot.ContextKey]; !exists {
		return
	}

	delete(byContext, slot.ContextKey)
	m.count--

	if len(byContext) == 0 {
		delete(m.entries[slot.Language], slot.Module)
	}
	if len(m.entries[slot.Language]) == 0 {
		delete(m.entries, slot.Language)
	}
}

// Len reports the number of stored slots.
func (m *Modules) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// Contexts lists the context keys cached for a language and module.
func (m *Modules) Contexts(language, module string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byContext := m.entries[language][module]
	out := make([]string, 0, len(byContext))
	for key := range byContext {
		out = append(out, key)
	}
	return out
}
