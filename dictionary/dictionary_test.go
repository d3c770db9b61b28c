package dictionary_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/cascade/dictionary"
)

type DictionaryTestSuite struct {
	suite.Suite
}

func TestDictionaryTestSuite(t *testing.T) {
	suite.Run(t, new(DictionaryTestSuite))
}

func (s *DictionaryTestSuite) TestDecode() {
	testCases := []struct {
		name    string
		payload string
		wantErr bool
		check   func(tree dictionary.Tree)
	}{
		{
			name:    "nested object",
			payload: `{"goals":{"create":{"title":"New goal"}},"count":3}`,
			check: func(tree dictionary.Tree) {
				child, ok := tree["goals"].(dictionary.Tree)
				s.Require().True(ok, "nested objects decode as Tree")
				s.Contains(child, "create")
				s.InDelta(3.0, tree["count"], 0)
			},
		},
		{
			name:    "null document",
			payload: `null`,
			check: func(tree dictionary.Tree) {
				s.Empty(tree)
			},
		},
		{
			name:    "empty payload",
			payload: "  ",
			check: func(tree dictionary.Tree) {
				s.Empty(tree)
			},
		},
		{name: "array document", payload: `["a"]`, wantErr: true},
		{name: "malformed", payload: `{"a":`, wantErr: true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			tree, err := dictionary.Decode([]byte(tc.payload))
			if tc.wantErr {
				s.Require().Error(err)
				return
			}
			s.Require().NoError(err)
			tc.check(tree)
		})
	}
}

func (s *DictionaryTestSuite) TestMergeKeepsUniqueKeysAndPrefersSource() {
	a := dictionary.Tree{
		"title": "Goals",
		"only":  "a",
		"nested": dictionary.Tree{
			"keep":  "from a",
			"clash": "a",
		},
	}
	b := dictionary.Tree{
		"title":   "My Goals",
		"extra":   "b",
		"nested":  dictionary.Tree{"clash": "b", "added": "b"},
		"created": dictionary.Tree{"deep": "b"},
	}

	merged := dictionary.Merge(a, b)

	s.Equal("My Goals", merged.Lookup("title", ""))
	s.Equal("a", merged.Lookup("only", ""))
	s.Equal("b", merged.Lookup("extra", ""))
	s.Equal("from a", merged.Lookup("nested.keep", ""))
	s.Equal("b", merged.Lookup("nested.clash", ""))
	s.Equal("b", merged.Lookup("nested.added", ""))
	s.Equal("b", merged.Lookup("created.deep", ""))
}

func (s *DictionaryTestSuite) TestMergeIsNotCommutative() {
	a := dictionary.Tree{"title": "A"}
	b := dictionary.Tree{"title": "B"}

	s.Equal("B", dictionary.Merge(a, b).Lookup("title", ""))
	s.Equal("A", dictionary.Merge(b, a).Lookup("title", ""))
}

func (s *DictionaryTestSuite) TestMergeReplacesNonObjectValues() {
	a := dictionary.Tree{
		"list":   []any{"x", "y"},
		"scalar": "text",
		"obj":    dictionary.Tree{"k": "v"},
	}
	b := dictionary.Tree{
		"list":   []any{"z"},
		"scalar": dictionary.Tree{"now": "object"},
		"obj":    "flattened",
	}

	merged := dictionary.Merge(a, b)

	s.Equal([]any{"z"}, merged["list"])
	s.Equal("object", merged.Lookup("scalar.now", ""))
	s.Equal("flattened", merged.Lookup("obj", ""))
}

func (s *DictionaryTestSuite) TestMergeDoesNotMutateInputs() {
	a := dictionary.Tree{"nested": dictionary.Tree{"k": "a"}}
	b := dictionary.Tree{"nested": dictionary.Tree{"k": "b"}, "fresh": dictionary.Tree{"x": "b"}}

	merged := dictionary.Merge(a, b)
	merged["nested"].(dictionary.Tree)["k"] = "changed"
	merged["fresh"].(dictionary.Tree)["x"] = "changed"

	s.Equal("a", a.Lookup("nested.k", ""))
	s.Equal("b", b.Lookup("nested.k", ""))
	s.Equal("b", b.Lookup("fresh.x", ""))
}

func (s *DictionaryTestSuite) TestLookup() {
	tree := dictionary.Tree{
		"goals": dictionary.Tree{
			"create": dictionary.Tree{"title": "Create goal"},
			"count":  2.0,
			"tags":   []any{"a"},
		},
		"plain": "text",
	}

	testCases := []struct {
		name string
		path string
		want string
	}{
		{"nested string", "goals.create.title", "Create goal"},
		{"top level string", "plain", "text"},
		{"missing segment", "goals.missing.title", "fallback"},
		{"nonexistent path", "nonexistent.path", "fallback"},
		{"walk through a string", "plain.more", "fallback"},
		{"object terminal", "goals.create", "fallback"},
		{"number terminal", "goals.count", "fallback"},
		{"array terminal", "goals.tags", "fallback"},
		{"empty path", "", "fallback"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, tree.Lookup(tc.path, "fallback"))
		})
	}
}

func (s *DictionaryTestSuite) TestLookupOnNilTree() {
	var tree dictionary.Tree
	s.Equal("fallback", tree.Lookup("a.b", "fallback"))
}

func (s *DictionaryTestSuite) TestClone() {
	tree := dictionary.Tree{"a": dictionary.Tree{"b": "c"}}
	cloned := tree.Clone()
	cloned["a"].(dictionary.Tree)["b"] = "changed"

	s.Equal("c", tree.Lookup("a.b", ""))
	s.Nil(dictionary.Tree(nil).Clone())
}
