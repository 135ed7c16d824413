package primitives

import (
	"iter"
	"maps"
	"slices"
)

// Store is a sparse map from lattice positions to values of type T.
//
// Iteration order of Values and Entries is unspecified.
type Store[T any] struct {
	cells map[Position]T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{cells: make(map[Position]T)}
}

func (s *Store[T]) Has(pos Position) bool {
	_, ok := s.cells[pos]
	return ok
}

func (s *Store[T]) Get(pos Position) (T, bool) {
	v, ok := s.cells[pos]
	return v, ok
}

func (s *Store[T]) Set(pos Position, v T) {
	s.cells[pos] = v
}

func (s *Store[T]) Delete(pos Position) {
	delete(s.cells, pos)
}

func (s *Store[T]) Len() int {
	return len(s.cells)
}

func (s *Store[T]) Values() iter.Seq[T] {
	return maps.Values(s.cells)
}

func (s *Store[T]) Entries() iter.Seq2[Position, T] {
	return maps.All(s.cells)
}

// SortedPositions returns every occupied position in Compare order.
func (s *Store[T]) SortedPositions() []Position {
	return slices.SortedFunc(maps.Keys(s.cells), Position.Compare)
}
