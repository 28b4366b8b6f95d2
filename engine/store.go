package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/hazyhaar/pagesync/section"
)

// ErrDuplicateID is returned by Append when the id is already stored.
var ErrDuplicateID = errors.New("engine: duplicate section id")

// Store is the host's ordered section list, the single source of truth.
// Safe for concurrent use. Readers get copies.
type Store struct {
	mu       sync.RWMutex
	sections []section.Section
	version  uint64
	changed  chan struct{}
}

// NewStore creates a store holding a copy of sections.
func NewStore(sections []section.Section) *Store {
	return &Store{sections: section.Clone(sections), changed: make(chan struct{})}
}

// Changed returns a channel closed at the next mutation. Call again after
// it fires to wait for the following one.
func (s *Store) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// notify must be called with mu held for writing.
func (s *Store) notify() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Version increases by one on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Sections returns a copy of the ordered list.
func (s *Store) Sections() []section.Section {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return section.Clone(s.sections)
}

// Get returns the section with the given id.
func (s *Store) Get(id string) (section.Section, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := section.Index(s.sections, id); i >= 0 {
		return s.sections[i], true
	}
	return section.Section{}, false
}

// Position returns the index of id, or -1.
func (s *Store) Position(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return section.Index(s.sections, id)
}

// Replace swaps the whole list. Identical content is not a mutation and
// reports false.
func (s *Store) Replace(sections []section.Section) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Equal(s.sections, sections) {
		return false
	}
	s.sections = section.Clone(sections)
	s.notify()
	return true
}

// Append adds a section at the end. IDs must be unique.
func (s *Store) Append(sec section.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sec.ID == "" {
		return fmt.Errorf("engine: append: empty section id")
	}
	if section.Index(s.sections, sec.ID) >= 0 {
		return fmt.Errorf("%w %q", ErrDuplicateID, sec.ID)
	}
	s.sections = append(s.sections, sec)
	s.notify()
	return nil
}

// Upsert replaces the section with sec.ID in place or appends it.
// Reports whether anything changed.
func (s *Store) Upsert(sec section.Section) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := section.Index(s.sections, sec.ID)
	switch {
	case i < 0:
		s.sections = append(s.sections, sec)
	case s.sections[i] == sec:
		return false
	default:
		s.sections[i] = sec
	}
	s.notify()
	return true
}

// Commit sets the content of an existing section. Returns false when the
// id is unknown; committing identical content is accepted silently.
func (s *Store) Commit(id, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := section.Index(s.sections, id)
	if i < 0 {
		return false
	}
	if s.sections[i].Content != content {
		s.sections[i].Content = content
		s.notify()
	}
	return true
}

// Remove deletes a section. Reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := section.Index(s.sections, id)
	if i < 0 {
		return false
	}
	s.sections = slices.Delete(s.sections, i, i+1)
	s.notify()
	return true
}
