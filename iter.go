package pst

import "fmt"

type iterItem[V any] struct {
	ref    NodeRef
	l, r   int
	acc    V
	tagged bool
}

// descend returns ref's children together with the tags their ancestors
// impose on them.
func (t *Tree[V]) descend(ref NodeRef, acc V, tagged bool) (NodeRef, NodeRef, V, bool) {
	left, right := t.arena.children(ref)
	if tag, ok := t.arena.pendingTag(ref); ok {
		if tagged {
			acc = t.monoid.Lazy.Compose(acc, tag)
		} else {
			acc, tagged = tag, true
		}
	}
	return left, right, acc, tagged
}

// leafValue returns the value of a leaf given its ancestors' tags.
func (t *Tree[V]) leafValue(ref NodeRef, acc V, tagged bool) V {
	v := t.agg(ref)
	if tagged {
		v = t.monoid.Lazy.Apply(v, acc, 1)
	}
	return v
}

// Iter invokes f for every leaf of root that is backed by a node, or that
// lies under a range tag, in index order. Leaves inside absent untagged
// subtrees hold the identity and are skipped. Iteration stops at the first
// error returned by f.
func (t *Tree[V]) Iter(root Root, f func(index int, value V) error) error {
	if err := t.checkRoot(root); err != nil {
		return fmt.Errorf("iter: %w", err)
	}
	var none V
	stack := []iterItem[V]{{ref: root.ref, l: 1, r: t.n, acc: none}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.ref == Nil && !it.tagged {
			continue
		}
		if it.l == it.r {
			if err := f(it.l, t.leafValue(it.ref, it.acc, it.tagged)); err != nil {
				return err
			}
			continue
		}
		mid := it.l + (it.r-it.l)/2
		left, right, acc, tagged := t.descend(it.ref, it.acc, it.tagged)
		stack = append(stack,
			iterItem[V]{ref: right, l: mid + 1, r: it.r, acc: acc, tagged: tagged},
			iterItem[V]{ref: left, l: it.l, r: mid, acc: acc, tagged: tagged})
	}
	return nil
}
