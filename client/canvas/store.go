package canvas

import (
	"sync"

	"satupapan/internal/board/model"
)

// Store is the client-side reconciling cache of a board's elements. The
// interaction machine mutates it optimistically; the sync bridge merges
// remote events into it. All apply operations are idempotent so echoed-back
// and replayed events are harmless.
type Store struct {
	mu       sync.RWMutex
	elements []model.Element
}

func NewStore() *Store {
	return &Store{elements: []model.Element{}}
}

// Elements returns a deep copy of the current element array.
func (s *Store) Elements() []model.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneElements(s.elements)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Get returns a copy of the element with the given id.
func (s *Store) Get(id string) (model.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.elements {
		if s.elements[i].ID == id {
			return cloneElement(s.elements[i]), true
		}
	}
	return model.Element{}, false
}

// Add appends the element only if its id is not already present. Guards
// against the server echoing back our own optimistic create.
func (s *Store) Add(el model.Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.elements {
		if s.elements[i].ID == el.ID {
			return false
		}
	}
	s.elements = append(s.elements, cloneElement(el))
	return true
}

// Update merges the incoming element onto the stored one by id; unknown ids
// are ignored.
func (s *Store) Update(el model.Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.elements {
		if s.elements[i].ID == el.ID {
			s.elements[i].Merge(el)
			if el.LastModifiedBy != "" {
				s.elements[i].LastModifiedBy = el.LastModifiedBy
			}
			if !el.UpdatedAt.IsZero() {
				s.elements[i].UpdatedAt = el.UpdatedAt
			}
			return true
		}
	}
	return false
}

// Replace swaps the stored element in place without merge semantics. Used by
// the interaction machine, which owns the full local copy it is editing.
func (s *Store) Replace(el model.Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.elements {
		if s.elements[i].ID == el.ID {
			s.elements[i] = cloneElement(el)
			return true
		}
	}
	return false
}

// Remove deletes by id. Removing an absent id is a no-op, so applying the
// same element-deleted twice converges on the same state.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.elements {
		if s.elements[i].ID == id {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceAll swaps in a whole new element array (batch updates, board-joined,
// undo/redo restores).
func (s *Store) ReplaceAll(elements []model.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = cloneElements(elements)
}

func cloneElement(el model.Element) model.Element {
	out := el
	if el.Points != nil {
		out.Points = make([]model.Point, len(el.Points))
		copy(out.Points, el.Points)
	}
	return out
}

func cloneElements(elements []model.Element) []model.Element {
	out := make([]model.Element, len(elements))
	for i := range elements {
		out[i] = cloneElement(elements[i])
	}
	return out
}
