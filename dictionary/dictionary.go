// Package dictionary holds the merged translation tree and the operations
// used to build and read it: decoding a JSON document into a tree, layering
// one tree over another, and walking a dot separated key path.
package dictionary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PathSeparator splits a lookup key into tree segments, e.g. "goals.create.title".
const PathSeparator = "."

var ErrNotAnObject = errors.New("dictionary: document is not a JSON object")

// Tree is a nested translation dictionary. Leaves are usually strings,
// internal nodes are Tree values.
type Tree map[string]any

// Decode parses a JSON document into a Tree. Nested objects are converted
// to Tree so that later merges and lookups see a single node type.
// A literal null decodes to an empty tree.
func Decode(data []byte) (Tree, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Tree{}, nil
	}

	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("dictionary: decode: %w", err)
	}

	if raw == nil {
		return Tree{}, nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}

	return normalize(obj), nil
}

func normalize(obj map[string]any) Tree {
	out := make(Tree, len(obj))
	for k, v := range obj {
		if child, ok := asObject(v); ok {
			out[k] = normalize(child)
			continue
		}
		out[k] = v
	}
	return out
}

// asObject reports whether v is an object shaped node.
// Arrays, strings and other scalars are leaves.
func asObject(v any) (map[string]any, bool) {
	switch node := v.(type) {
	case Tree:
		return node, node != nil
	case map[string]any:
		return node, node != nil
	default:
		return nil, false
	}
}

// Clone returns a deep copy of the tree's object nodes. Leaf values are shared.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	return normalize(t)
}

// Merge layers source over target and returns the result as a new tree.
// For every key in source: object nodes are merged recursively against the
// target's node at that key, anything else replaces the target's value.
// Keys only present in target are kept. Neither input is modified.
func Merge(target, source Tree) Tree {
	out := make(Tree, len(target)+len(source))
	for k, v := range target {
		if child, ok := asObject(v); ok {
			out[k] = normalize(child)
			continue
		}
		out[k] = v
	}

	for k, v := range source {
		srcChild, ok := asObject(v)
		if !ok {
			out[k] = v
			continue
		}

		dstChild, ok := asObject(out[k])
		if !ok {
			out[k] = normalize(srcChild)
			continue
		}

		out[k] = Merge(dstChild, srcChild)
	}

	return out
}

// Walk follows path segment by segment and returns the node found at the end.
func (t Tree) Walk(path string) (any, bool) {
	var node any = t
	for _, part := range strings.Split(path, PathSeparator) {
		obj, ok := asObject(node)
		if !ok {
			return nil, false
		}

		node, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// String resolves path to a string leaf.
func (t Tree) String(path string) (string, bool) {
	node, ok := t.Walk(path)
	if !ok {
		return "", false
	}
	s, ok := node.(string)
	return s, ok
}

// Lookup resolves path to a string leaf, returning defaultValue when any
// segment is missing or the final node is not a string.
func (t Tree) Lookup(path, defaultValue string) string {
	if s, ok := t.String(path); ok {
		return s
	}
	return defaultValue
}
