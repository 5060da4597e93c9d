package pst

import (
	"cmp"
	"fmt"
)

// PrefixIndex answers order statistics over arbitrary subarrays of a fixed
// array. It keeps one count tree per prefix: version i counts the ranks of
// the first i values, and version i shares all but O(log n) nodes with
// version i-1.
type PrefixIndex[T cmp.Ordered] struct {
	values   int
	ranks    *Ranks[T]
	tree     *Tree[int64]
	versions *Versions[int]
}

// NewPrefixIndex builds the per-prefix versions of values, in order, on an
// arena sized exactly for them. config may be nil.
func NewPrefixIndex[T cmp.Ordered](values []T, config *Config[int64]) (*PrefixIndex[T], error) {
	return NewPrefixIndexOn(nil, values, config)
}

// PrefixIndexCapacity returns the nodes NewPrefixIndexOn allocates for
// values.
func PrefixIndexCapacity[T cmp.Ordered](values []T) int {
	return len(values) * (depth(NewRanks(values).Len()) + 1)
}

// NewPrefixIndexOn is NewPrefixIndex allocating from the given arena. A nil
// arena gets one of PrefixIndexCapacity nodes.
func NewPrefixIndexOn[T cmp.Ordered](arena *Arena[int64], values []T, config *Config[int64]) (*PrefixIndex[T], error) {
	ranks := NewRanks(values)
	if ranks.Len() == 0 {
		return nil, fmt.Errorf("prefix index: %w", ErrInvalidDomain)
	}
	if arena == nil {
		arena = NewArena[int64](len(values) * (depth(ranks.Len()) + 1))
	}
	tree, err := NewTree(arena, ranks.Len(), SumInt64(), config)
	if err != nil {
		return nil, fmt.Errorf("prefix index: %w", err)
	}
	p := &PrefixIndex[T]{
		values:   len(values),
		ranks:    ranks,
		tree:     tree,
		versions: NewVersions[int](),
	}
	root := tree.Empty()
	if err := p.versions.Record(0, root); err != nil {
		return nil, err
	}
	for i, v := range values {
		rank, _ := ranks.Rank(v)
		root, err = tree.Update(root, rank, 1)
		if err != nil {
			return nil, fmt.Errorf("prefix %d: %w", i+1, err)
		}
		if err := p.versions.Record(i+1, root); err != nil {
			return nil, err
		}
	}
	tree.logger.Debug("built prefix index", "values", len(values), "distinct", ranks.Len(), "nodes", arena.Len())
	return p, nil
}

// Len returns the number of indexed values.
func (p *PrefixIndex[T]) Len() int {
	return p.values
}

// Tree returns the count tree over ranks.
func (p *PrefixIndex[T]) Tree() *Tree[int64] {
	return p.tree
}

// Ranks returns the discretization of the indexed values.
func (p *PrefixIndex[T]) Ranks() *Ranks[T] {
	return p.ranks
}

// VersionForPrefix returns the version counting the first i values; version
// 0 is empty.
func (p *PrefixIndex[T]) VersionForPrefix(i int) (Root, error) {
	root, ok := p.versions.Root(i)
	if !ok {
		return Root{}, outOfRange("prefix", i, i, 0, p.values)
	}
	return root, nil
}

func (p *PrefixIndex[T]) bounds(l, r int) (Root, Root, error) {
	if l < 1 || r > p.values || l > r {
		return Root{}, Root{}, outOfRange("subarray", l, r, 1, p.values)
	}
	lo, err := p.VersionForPrefix(l - 1)
	if err != nil {
		return Root{}, Root{}, err
	}
	hi, err := p.VersionForPrefix(r)
	if err != nil {
		return Root{}, Root{}, err
	}
	return lo, hi, nil
}

// Kth returns the k-th smallest value among values[l..r], 1-based and
// inclusive.
func (p *PrefixIndex[T]) Kth(l, r, k int) (T, error) {
	var zero T
	lo, hi, err := p.bounds(l, r)
	if err != nil {
		return zero, fmt.Errorf("kth: %w", err)
	}
	rank, err := Kth(p.tree, lo, hi, int64(k))
	if err != nil {
		return zero, fmt.Errorf("kth in [%d, %d]: %w", l, r, err)
	}
	return p.ranks.Value(rank)
}

// CountBetween returns how many of values[l..r] lie within [lo, hi].
func (p *PrefixIndex[T]) CountBetween(l, r int, lo, hi T) (int64, error) {
	before, after, err := p.bounds(l, r)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	a, b := p.ranks.Ceil(lo), p.ranks.Floor(hi)
	if a > b {
		return 0, nil
	}
	total, err := p.tree.Query(after, a, b)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	prior, err := p.tree.Query(before, a, b)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return total - prior, nil
}
