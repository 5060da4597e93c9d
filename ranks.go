package pst

import (
	"cmp"
	"slices"
)

// Ranks maps values onto dense ranks 1..Len() by sorted order, so trees can
// be indexed by rank whatever the value type or range.
type Ranks[T cmp.Ordered] struct {
	sorted []T
}

// NewRanks returns the ranks of the distinct values given.
func NewRanks[T cmp.Ordered](values []T) *Ranks[T] {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return &Ranks[T]{sorted: slices.Compact(sorted)}
}

// Len returns the number of distinct values.
func (r *Ranks[T]) Len() int {
	return len(r.sorted)
}

// Rank returns the 1-based rank of v, if v is one of the values.
func (r *Ranks[T]) Rank(v T) (int, bool) {
	i, found := slices.BinarySearch(r.sorted, v)
	if !found {
		return 0, false
	}
	return i + 1, true
}

// Floor returns how many distinct values are <= v, which is the rank of the
// largest value not above v, or 0.
func (r *Ranks[T]) Floor(v T) int {
	i, found := slices.BinarySearch(r.sorted, v)
	if found {
		return i + 1
	}
	return i
}

// Ceil returns the rank of the smallest value >= v, or Len()+1 if none.
func (r *Ranks[T]) Ceil(v T) int {
	i, _ := slices.BinarySearch(r.sorted, v)
	return i + 1
}

// Value returns the value with the given rank.
func (r *Ranks[T]) Value(rank int) (T, error) {
	if rank < 1 || rank > len(r.sorted) {
		var zero T
		return zero, outOfRange("rank", rank, rank, 1, len(r.sorted))
	}
	return r.sorted[rank-1], nil
}
