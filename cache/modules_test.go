package cache_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/cascade/cache"
	"github.com/pitabwire/cascade/dictionary"
)

type ModulesTestSuite struct {
	suite.Suite
}

func TestModulesTestSuite(t *testing.T) {
	suite.Run(t, new(ModulesTestSuite))
}

func slot(language, module, key string) cache.Slot {
	return cache.Slot{Language: language, Module: module, ContextKey: key}
}

func (s *ModulesTestSuite) TestContextKey() {
	testCases := []struct {
		name                    string
		userType, persona, mode string
		want                    string
	}{
		{"defaults", "default", "default", "default", "default_default_default"},
		{"selected", "premium", "student", "zen", "premium_student_zen"},
		{"empty selectors", "", "", "", "__"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, cache.ContextKey(tc.userType, tc.persona, tc.mode))
		})
	}
}

func (s *ModulesTestSuite) TestSlotString() {
	s.Equal("en/goals/default_default_default", slot("en", "goals", "default_default_default").String())
	s.Equal("en/a%2Fb/k", slot("en", "a/b", "k").String())
	s.NotEqual(slot("en", "a/b", "k").String(), slot("en/a", "b", "k").String())
	s.NotEqual(slot("en", "goals", "x/y").String(), slot("en", "goals/x", "y").String())
}

func (s *ModulesTestSuite) TestSlotsAreIndependent() {
	m := cache.NewModules(0)
	key := cache.ContextKey("default", "default", "default")

	m.Put(slot("en", "goals", key), dictionary.Tree{"title": "Goals"})
	m.Put(slot("ta", "goals", key), dictionary.Tree{"title": "இலக்குகள்"})
	m.Put(slot("en", "goals", "default_student_default"), dictionary.Tree{"title": "Study goals"})

	en, ok := m.Get(slot("en", "goals", key))
	s.Require().True(ok)
	s.Equal("Goals", en.Lookup("title", ""))

	ta, ok := m.Get(slot("ta", "goals", key))
	s.Require().True(ok)
	s.Equal("இலக்குகள்", ta.Lookup("title", ""))

	_, ok = m.Get(slot("fr", "goals", key))
	s.False(ok)

	s.Equal(3, m.Len())
	s.ElementsMatch([]string{key, "default_student_default"}, m.Contexts("en", "goals"))
}

func (s *ModulesTestSuite) TestPutSupersedes() {
	m := cache.NewModules(0)
	sl := slot("en", "goals", "default_default_default")

	m.Put(sl, dictionary.Tree{"title": "Old"})
	m.Put(sl, dictionary.Tree{"title": "New"})

	tree, ok := m.Get(sl)
	s.Require().True(ok)
	s.Equal("New", tree.Lookup("title", ""))
	s.Equal(1, m.Len())
}

func (s *ModulesTestSuite) TestBoundEvictsLeastRecentlyUsed() {
	m := cache.NewModules(2)

	first := slot("en", "goals", "a")
	second := slot("en", "goals", "b")
	third := slot("en", "tasks", "a")

	m.Put(first, dictionary.Tree{})
	m.Put(second, dictionary.Tree{})

	// touch first so second becomes the oldest
	_, ok := m.Get(first)
	s.Require().True(ok)

	m.Put(third, dictionary.Tree{})

	s.Equal(2, m.Len())
	_, ok = m.Get(second)
	s.False(ok)
	_, ok = m.Get(first)
	s.True(ok)
	_, ok = m.Get(third)
	s.True(ok)
}

func (s *ModulesTestSuite) TestUnboundedNeverEvicts() {
	m := cache.NewModules(0)
	for i := range 100 {
		m.Put(slot("en", fmt.Sprintf("module%d", i), "k"), dictionary.Tree{})
	}
	s.Equal(100, m.Len())
}

func (s *ModulesTestSuite) TestConcurrentAccess() {
	m := cache.NewModules(8)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sl := slot("en", fmt.Sprintf("module%d", n%4), "k")
			m.Put(sl, dictionary.Tree{"n": "x"})
			m.Get(sl)
		}(i)
	}
	wg.Wait()

	s.LessOrEqual(m.Len(), 8)
}
