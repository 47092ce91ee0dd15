package reconcile

import (
	"errors"
	"fmt"
	"sync"

	"market_board/internal/items"
)

var ErrMalformedUpdate = errors.New("malformed item update")

// Store holds the authoritative item collection and the snapshot taken just
// before the last full refresh.
type Store struct {
	mu       sync.RWMutex
	items    []items.Item
	index    map[string]int
	previous map[string]items.Item
}

// Summary describes the outcome of a full snapshot.
type Summary struct {
	Count    int
	Previous int
	Empty    bool
}

// Change describes the outcome of an incremental update.
type Change struct {
	Name    string
	Added   bool
	Changed bool
}

func NewStore() *Store {
	return &Store{
		index:    make(map[string]int),
		previous: make(map[string]items.Item),
	}
}

// ApplyFullSnapshot replaces the whole collection. The current collection
// becomes the previous snapshot used for change detection.
func (s *Store) ApplyFullSnapshot(newItems []items.Item) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := make(map[string]items.Item, len(s.items))
	for _, it := range s.items {
		previous[it.Name] = it
	}

	next := make([]items.Item, 0, len(newItems))
	index := make(map[string]int, len(newItems))
	for _, it := range newItems {
		if it.Name == "" {
			continue
		}
		if i, ok := index[it.Name]; ok {
			next[i] = it
			continue
		}
		index[it.Name] = len(next)
		next = append(next, it)
	}

	s.previous = previous
	s.items = next
	s.index = index

	return Summary{Count: len(next), Previous: len(previous), Empty: len(next) == 0}
}

// ApplyIncrementalUpdate merges a single pushed record. Fields present in the
// patch win; absent fields keep their current value. Unknown names are appended.
func (s *Store) ApplyIncrementalUpdate(p items.Patch) (Change, error) {
	if p.Name == "" {
		return Change{}, fmt.Errorf("%w: %w", ErrMalformedUpdate, items.ErrMissingName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[p.Name]
	if !ok {
		s.index[p.Name] = len(s.items)
		s.items = append(s.items, p.Item())
		return Change{Name: p.Name, Added: true, Changed: true}, nil
	}

	before := s.items[i]
	p.ApplyTo(&s.items[i])
	return Change{Name: p.Name, Changed: valueChanged(before, s.items[i])}, nil
}

// DiffAgainstPrevious reports whether the item differs from the previous
// snapshot. Items missing from the snapshot count as changed.
func (s *Store) DiffAgainstPrevious(it items.Item) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	old, ok := s.previous[it.Name]
	if !ok {
		return true
	}
	return valueChanged(old, it)
}

// Previous returns the item as it was in the previous snapshot.
func (s *Store) Previous(name string) (items.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.previous[name]
	return it, ok
}

// Changed returns the names of items that differ from the previous snapshot,
// in collection order.
func (s *Store) Changed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for _, it := range s.items {
		old, ok := s.previous[it.Name]
		if !ok || valueChanged(old, it) {
			names = append(names, it.Name)
		}
	}
	return names
}

// Items returns a copy of the collection in its current order.
func (s *Store) Items() []items.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]items.Item(nil), s.items...)
}

func (s *Store) Get(name string) (items.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[name]
	if !ok {
		return items.Item{}, false
	}
	return s.items[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func valueChanged(a, b items.Item) bool {
	return a.Price != b.Price || a.UpdateTime != b.UpdateTime
}
