package pst

import "reflect"

// Number is the set of aggregate types that support order statistics.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Monoid describes how aggregates combine.
type Monoid[V any] struct {
	// Identity is the aggregate of an absent subtree.
	Identity V

	// Combine aggregates a left and a right sibling. It must be associative
	// with Identity as its neutral element.
	Combine func(left, right V) V

	// Add folds a delta into a leaf; it is used by Update and, for the two
	// leaves at the same index, by the merges. Nil means Combine.
	Add func(leaf, delta V) V

	// Equal reports whether two aggregates are the same. Nil means
	// reflect.DeepEqual.
	Equal func(a, b V) bool

	// Lazy enables RangeAdd. Trees using it cannot be merged or searched
	// with Kth.
	Lazy *Lazy[V]
}

// Lazy holds the operations for range tags that are kept on the node they
// were applied to, instead of being pushed to children. Tags must commute,
// since the order of tags on different levels of a path is not recorded.
type Lazy[V any] struct {
	// Apply returns the aggregate of a range of the given length after every
	// leaf in it received tag.
	Apply func(agg, tag V, length int) V
	// Compose returns a tag equivalent to applying outer after inner.
	Compose func(inner, outer V) V
}

func (m *Monoid[V]) add(leaf, delta V) V {
	if m.Add != nil {
		return m.Add(leaf, delta)
	}
	return m.Combine(leaf, delta)
}

func (m *Monoid[V]) equal(a, b V) bool {
	if m.Equal != nil {
		return m.Equal(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// Sum is the additive monoid, used for counts and sums.
func Sum[V Number]() Monoid[V] {
	return Monoid[V]{
		Combine: func(a, b V) V { return a + b },
		Equal:   func(a, b V) bool { return a == b },
	}
}

// SumInt64 is Sum over int64, the default width for occurrence counts.
func SumInt64() Monoid[int64] {
	return Sum[int64]()
}

// RangeSum is Sum with range-add support.
func RangeSum[V Number]() Monoid[V] {
	m := Sum[V]()
	m.Lazy = &Lazy[V]{
		Apply:   func(agg, tag V, length int) V { return agg + tag*V(length) },
		Compose: func(inner, outer V) V { return inner + outer },
	}
	return m
}

// Max is the maximum monoid. floor is the identity and should be no greater
// than any value stored in the tree. Update replaces a leaf with the larger
// of its value and the delta.
func Max[V Number](floor V) Monoid[V] {
	return Monoid[V]{
		Identity: floor,
		Combine: func(a, b V) V {
			if a >= b {
				return a
			}
			return b
		},
		Equal: func(a, b V) bool { return a == b },
	}
}

// Min is the minimum monoid; ceiling is the identity.
func Min[V Number](ceiling V) Monoid[V] {
	return Monoid[V]{
		Identity: ceiling,
		Combine: func(a, b V) V {
			if a <= b {
				return a
			}
			return b
		},
		Equal: func(a, b V) bool { return a == b },
	}
}
