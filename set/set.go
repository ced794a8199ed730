package set

import (
	"cmp"
	"slices"
)

// Set is a minimal unordered set. The zero value is ready to use.
type Set[T comparable] struct {
	set map[T]struct{}
}

// Of returns a set holding items.
func Of[T comparable](items ...T) *Set[T] {
	s := &Set[T]{}
	for _, item := range items {
		s.Insert(item)
	}
	return s
}

func (s *Set[T]) Insert(k T) {
	if s.set == nil {
		s.set = make(map[T]struct{})
	}
	s.set[k] = struct{}{}
}

func (s *Set[T]) Contains(k T) bool {
	_, ok := s.set[k]
	return ok
}

func (s *Set[T]) Len() int {
	return len(s.set)
}

// Sorted returns the members of s in ascending order.
func Sorted[T cmp.Ordered](s *Set[T]) []T {
	out := make([]T, 0, s.Len())
	for k := range s.set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
