package pst

import "fmt"

// Update returns a new version equal to src except that the leaf at index
// has delta folded into it with Monoid.Add. Only the nodes on the path to
// index are copied; src stays valid.
func (t *Tree[V]) Update(src Root, index int, delta V) (Root, error) {
	if err := t.checkRoot(src); err != nil {
		return Root{}, fmt.Errorf("update: %w", err)
	}
	if index < 1 || index > t.n {
		return Root{}, fmt.Errorf("update: %w", outOfRange("index", index, index, 1, t.n))
	}
	ref, err := t.update(src.ref, 1, t.n, index, delta)
	if err != nil {
		return Root{}, fmt.Errorf("update %d: %w", index, err)
	}
	t.logger.Debug("updated", "index", index, "from", src.ref, "to", ref)
	return t.root(ref), nil
}

func (t *Tree[V]) update(ref NodeRef, l, r, index int, delta V) (NodeRef, error) {
	n, err := t.arena.clone(ref, t.monoid.Identity)
	if err != nil {
		return Nil, err
	}
	if l == r {
		t.arena.setAgg(n, t.monoid.add(t.agg(ref), delta))
		return n, nil
	}
	mid := l + (r-l)/2
	left, right := t.arena.children(n)
	if index <= mid {
		left, err = t.update(left, l, mid, index, delta)
	} else {
		right, err = t.update(right, mid+1, r, index, delta)
	}
	if err != nil {
		return Nil, err
	}
	t.arena.setChildren(n, left, right)
	t.pull(n, l, r)
	return n, nil
}

// Assign returns a new version equal to src except that the leaf at index
// is replaced by value. Range tags met on the way down are pushed onto
// copies of the children, so the assigned value is exact.
func (t *Tree[V]) Assign(src Root, index int, value V) (Root, error) {
	if err := t.checkRoot(src); err != nil {
		return Root{}, fmt.Errorf("assign: %w", err)
	}
	if index < 1 || index > t.n {
		return Root{}, fmt.Errorf("assign: %w", outOfRange("index", index, index, 1, t.n))
	}
	ref, err := t.assign(src.ref, 1, t.n, index, value)
	if err != nil {
		return Root{}, fmt.Errorf("assign %d: %w", index, err)
	}
	t.logger.Debug("assigned", "index", index, "from", src.ref, "to", ref)
	return t.root(ref), nil
}

func (t *Tree[V]) assign(ref NodeRef, l, r, index int, value V) (NodeRef, error) {
	n, err := t.arena.clone(ref, t.monoid.Identity)
	if err != nil {
		return Nil, err
	}
	if l == r {
		t.arena.setAgg(n, value)
		t.arena.clearTag(n)
		return n, nil
	}
	mid := l + (r-l)/2
	left, right := t.arena.children(n)
	if tag, ok := t.arena.pendingTag(n); ok {
		left, err = t.withTag(left, l, mid, tag)
		if err != nil {
			return Nil, err
		}
		right, err = t.withTag(right, mid+1, r, tag)
		if err != nil {
			return Nil, err
		}
		t.arena.clearTag(n)
	}
	if index <= mid {
		left, err = t.assign(left, l, mid, index, value)
	} else {
		right, err = t.assign(right, mid+1, r, index, value)
	}
	if err != nil {
		return Nil, err
	}
	t.arena.setChildren(n, left, right)
	t.pull(n, l, r)
	return n, nil
}

// withTag returns a copy of ref with tag applied to its whole range.
func (t *Tree[V]) withTag(ref NodeRef, l, r int, tag V) (NodeRef, error) {
	n, err := t.arena.clone(ref, t.monoid.Identity)
	if err != nil {
		return Nil, err
	}
	if old, ok := t.arena.pendingTag(n); ok {
		t.arena.setTag(n, t.monoid.Lazy.Compose(old, tag))
	} else {
		t.arena.setTag(n, tag)
	}
	t.arena.setAgg(n, t.monoid.Lazy.Apply(t.arena.agg[n], tag, r-l+1))
	return n, nil
}

// RangeAdd returns a new version in which every leaf in [ql, qr] received
// delta. It requires Monoid.Lazy. Fully covered nodes keep the tag instead
// of passing it down, so no existing node is modified. An inverted range
// returns src.
func (t *Tree[V]) RangeAdd(src Root, ql, qr int, delta V) (Root, error) {
	if t.monoid.Lazy == nil {
		return Root{}, fmt.Errorf("range add: %w", ErrNoLazy)
	}
	if err := t.checkRoot(src); err != nil {
		return Root{}, fmt.Errorf("range add: %w", err)
	}
	if ql > qr {
		return src, nil
	}
	if ql < 1 || qr > t.n {
		return Root{}, fmt.Errorf("range add: %w", outOfRange("range", ql, qr, 1, t.n))
	}
	ref, err := t.rangeAdd(src.ref, 1, t.n, ql, qr, delta)
	if err != nil {
		return Root{}, fmt.Errorf("range add [%d, %d]: %w", ql, qr, err)
	}
	t.logger.Debug("range added", "ql", ql, "qr", qr, "from", src.ref, "to", ref)
	return t.root(ref), nil
}

func (t *Tree[V]) rangeAdd(ref NodeRef, l, r, ql, qr int, delta V) (NodeRef, error) {
	if qr < l || r < ql {
		return ref, nil
	}
	if ql <= l && r <= qr {
		return t.withTag(ref, l, r, delta)
	}
	n, err := t.arena.clone(ref, t.monoid.Identity)
	if err != nil {
		return Nil, err
	}
	mid := l + (r-l)/2
	left, right := t.arena.children(n)
	left, err = t.rangeAdd(left, l, mid, ql, qr, delta)
	if err != nil {
		return Nil, err
	}
	right, err = t.rangeAdd(right, mid+1, r, ql, qr, delta)
	if err != nil {
		return Nil, err
	}
	t.arena.setChildren(n, left, right)
	t.pull(n, l, r)
	return n, nil
}
