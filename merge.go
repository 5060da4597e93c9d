package pst

import "fmt"

// Merge combines two trees over the same domain so that every leaf of the
// result is Monoid.Add of the corresponding leaves of a and b. Where only
// one side has a subtree, that subtree is reused as is.
//
// Merge is destructive: it rewrites a's nodes in place and absorbs b's, so
// neither a nor b, nor any other version sharing their nodes, may be used
// afterwards. In exchange it never allocates, and merging every child into
// its parent over a whole rooted tree costs O(total nodes) overall. Use
// MergeCopy when the inputs must survive.
func (t *Tree[V]) Merge(a, b Root) (Root, error) {
	if err := t.checkMerge(a, b); err != nil {
		return Root{}, fmt.Errorf("merge: %w", err)
	}
	ref := t.merge(a.ref, b.ref, 1, t.n)
	t.logger.Debug("merged", "a", a.ref, "b", b.ref, "into", ref)
	return t.root(ref), nil
}

func (t *Tree[V]) merge(a, b NodeRef, l, r int) NodeRef {
	if a == Nil {
		return b
	}
	if b == Nil {
		return a
	}
	// a is about to change, so any name it was persisted under is stale
	if link, ok := t.arena.links[a]; ok {
		delete(t.arena.links, a)
		if t.nodeCache != nil {
			t.nodeCache.Remove(cacheKey(link, l, r))
		}
	}
	if l == r {
		t.arena.setAgg(a, t.monoid.add(t.agg(a), t.agg(b)))
		return a
	}
	mid := l + (r-l)/2
	al, ar := t.arena.children(a)
	bl, br := t.arena.children(b)
	t.arena.setChildren(a,
		t.merge(al, bl, l, mid),
		t.merge(ar, br, mid+1, r))
	t.pull(a, l, r)
	return a
}

// MergeCopy is Merge without destroying its inputs: wherever both sides
// have a node a new node is allocated, and subtrees present on one side
// only are shared with the result.
func (t *Tree[V]) MergeCopy(a, b Root) (Root, error) {
	if err := t.checkMerge(a, b); err != nil {
		return Root{}, fmt.Errorf("merge copy: %w", err)
	}
	ref, err := t.mergeCopy(a.ref, b.ref, 1, t.n)
	if err != nil {
		return Root{}, fmt.Errorf("merge copy: %w", err)
	}
	t.logger.Debug("merged copy", "a", a.ref, "b", b.ref, "into", ref)
	return t.root(ref), nil
}

func (t *Tree[V]) mergeCopy(a, b NodeRef, l, r int) (NodeRef, error) {
	if a == Nil {
		return b, nil
	}
	if b == Nil {
		return a, nil
	}
	n, err := t.arena.clone(a, t.monoid.Identity)
	if err != nil {
		return Nil, err
	}
	if l == r {
		t.arena.setAgg(n, t.monoid.add(t.agg(a), t.agg(b)))
		return n, nil
	}
	mid := l + (r-l)/2
	al, ar := t.arena.children(a)
	bl, br := t.arena.children(b)
	left, err := t.mergeCopy(al, bl, l, mid)
	if err != nil {
		return Nil, err
	}
	right, err := t.mergeCopy(ar, br, mid+1, r)
	if err != nil {
		return Nil, err
	}
	t.arena.setChildren(n, left, right)
	t.pull(n, l, r)
	return n, nil
}

func (t *Tree[V]) checkMerge(a, b Root) error {
	if t.monoid.Lazy != nil {
		return ErrLazyUnsupported
	}
	if a.arena != b.arena || a.n != b.n {
		return &DomainMismatchError{A: a.n, B: b.n, SameArena: a.arena == b.arena}
	}
	return t.checkRoot(a)
}
