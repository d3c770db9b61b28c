// Package cache stores merged translation dictionaries: in process through
// Modules, and optionally in a Tier shared between processes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pitabwire/cascade/dictionary"
)

const DefaultKeyPrefix = "cascade:"

// Tier is a second level store of merged dictionaries that outlives a single
// process, so a fleet of engines can share the result of a merge.
type Tier interface {
	Fetch(ctx context.Context, slot Slot) (dictionary.Tree, bool, error)
	Store(ctx context.Context, slot Slot, tree dictionary.Tree) error
	Close() error
}

// Key renders the storage key of slot under prefix.
func Key(prefix string, slot Slot) string {
	return prefix + slot.String()
}

// Encode serialises a merged dictionary for a tier.
func Encode(tree dictionary.Tree) ([]byte, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	return data, nil
}

// Decode restores a merged dictionary stored by a tier.
func Decode(data []byte) (dictionary.Tree, error) {
	tree, err := dictionary.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("cache: decode: %w", err)
	}
	return tree, nil
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

func (i *memoryItem) isExpired() bool {
	if i.expiration.IsZero() {
		return false
	}
	return time.Now().After(i.expiration)
}

// MemoryTier is an in process Tier. Entries are stored encoded so callers
// never share mutable trees with it.
type MemoryTier struct {
	items  sync.Map // map[string]*memoryItem
	prefix string
	maxAge time.Duration
}

// NewMemoryTier creates an in process tier.
func NewMemoryTier(opts ...Option) *MemoryTier {
	o := newOptions(opts...)
	return &MemoryTier{
		prefix: o.Prefix,
		maxAge: o.MaxAge,
	}
}

func (t *MemoryTier) Fetch(_ context.Context, slot Slot) (dictionary.Tree, bool, error) {
	key := Key(t.prefix, slot)
	value, ok := t.items.Load(key)
	if !ok {
		return nil, false, nil
	}

	item, ok := value.(*memoryItem)
	if !ok || item.isExpired() {
		t.items.Delete(key)
		return nil, false, nil
	}

	tree, err := Decode(item.value)
	if err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

func (t *MemoryTier) Store(_ context.Context, slot Slot, tree dictionary.Tree) error {
	data, err := Encode(tree)
	if err != nil {
		return err
	}

	item := &memoryItem{value: data}
	if t.maxAge > 0 {
		item.expiration = time.Now().Add(t.maxAge)
	}

	t.items.Store(Key(t.prefix, slot), item)
	return nil
}

func (t *MemoryTier) Close() error {
	t.items.Clear()
	return nil
}
