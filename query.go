package pst

import "fmt"

// Query returns the aggregate over [ql, qr] as of root. An inverted range
// yields the identity without looking at the tree. Query never allocates.
func (t *Tree[V]) Query(root Root, ql, qr int) (V, error) {
	if err := t.checkRoot(root); err != nil {
		return t.monoid.Identity, fmt.Errorf("query: %w", err)
	}
	if ql > qr {
		return t.monoid.Identity, nil
	}
	if ql < 1 || qr > t.n {
		return t.monoid.Identity, fmt.Errorf("query: %w", outOfRange("range", ql, qr, 1, t.n))
	}
	var none V
	return t.query(root.ref, 1, t.n, ql, qr, none, false), nil
}

// query descends carrying acc, the combined tags of ref's ancestors.
func (t *Tree[V]) query(ref NodeRef, l, r, ql, qr int, acc V, tagged bool) V {
	if qr < l || r < ql {
		return t.monoid.Identity
	}
	if ql <= l && r <= qr {
		agg := t.agg(ref)
		if tagged {
			agg = t.monoid.Lazy.Apply(agg, acc, r-l+1)
		}
		return agg
	}
	if ref == Nil && !tagged {
		return t.monoid.Identity
	}
	left, right := t.arena.children(ref)
	if tag, ok := t.arena.pendingTag(ref); ok {
		if tagged {
			acc = t.monoid.Lazy.Compose(acc, tag)
		} else {
			acc, tagged = tag, true
		}
	}
	mid := l + (r-l)/2
	return t.monoid.Combine(
		t.query(left, l, mid, ql, qr, acc, tagged),
		t.query(right, mid+1, r, ql, qr, acc, tagged))
}

// Get returns the value of the leaf at index as of root.
func (t *Tree[V]) Get(root Root, index int) (V, error) {
	if index < 1 || index > t.n {
		return t.monoid.Identity, fmt.Errorf("get: %w", outOfRange("index", index, index, 1, t.n))
	}
	return t.Query(root, index, index)
}

// Kth returns the index of the k-th smallest element counted by hi but not
// by lo, where hi and lo are count trees and lo's counts are a subset of
// hi's (typically the versions after inserting prefixes r and l-1 of an
// array of ranks). Both trees are walked down the same path at once,
// subtracting left-half counts, so no difference tree is ever built.
func Kth[V Number](t *Tree[V], lo, hi Root, k V) (int, error) {
	if t.monoid.Lazy != nil {
		return 0, fmt.Errorf("kth: %w", ErrLazyUnsupported)
	}
	if err := t.checkRoot(lo); err != nil {
		return 0, fmt.Errorf("kth: %w", err)
	}
	if err := t.checkRoot(hi); err != nil {
		return 0, fmt.Errorf("kth: %w", err)
	}
	total := t.agg(hi.ref) - t.agg(lo.ref)
	if k < 1 || k > total {
		return 0, fmt.Errorf("kth: %w", outOfRange("rank", int(k), int(k), 1, int(total)))
	}
	a, b := lo.ref, hi.ref
	l, r := 1, t.n
	for l < r {
		mid := l + (r-l)/2
		al, ar := t.arena.children(a)
		bl, br := t.arena.children(b)
		count := t.agg(bl) - t.agg(al)
		if k <= count {
			a, b = al, bl
			r = mid
		} else {
			k -= count
			a, b = ar, br
			l = mid + 1
		}
	}
	return l, nil
}
