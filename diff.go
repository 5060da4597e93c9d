package pst

import "fmt"

type diffItem[V any] struct {
	old, new iterItem[V]
}

// DiffIter invokes the given callback for every index whose value differs
// between oldRoot and newRoot, in index order. Subtrees that both versions
// share, under the same tags, are skipped without being visited, so
// diffing a version against its source after k point updates costs
// O(k log n). The iteration will stop if the callback returns
// keepGoing==false or an error.
func (t *Tree[V]) DiffIter(
	oldRoot, newRoot Root,
	f func(index int, oldValue, newValue V) (keepGoing bool, err error),
) error {
	if err := t.checkRoot(oldRoot); err != nil {
		return fmt.Errorf("diff old: %w", err)
	}
	if err := t.checkRoot(newRoot); err != nil {
		return fmt.Errorf("diff new: %w", err)
	}
	var none V
	stack := []diffItem[V]{{
		old: iterItem[V]{ref: oldRoot.ref, l: 1, r: t.n, acc: none},
		new: iterItem[V]{ref: newRoot.ref, l: 1, r: t.n, acc: none},
	}}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.sameSubtree(d.old, d.new) {
			continue
		}
		l, r := d.new.l, d.new.r
		if l == r {
			oldValue := t.leafValue(d.old.ref, d.old.acc, d.old.tagged)
			newValue := t.leafValue(d.new.ref, d.new.acc, d.new.tagged)
			if t.monoid.equal(oldValue, newValue) {
				continue
			}
			keepGoing, err := f(l, oldValue, newValue)
			if err != nil {
				return fmt.Errorf("callback: %w", err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}
		mid := l + (r-l)/2
		ol, or, oacc, otagged := t.descend(d.old.ref, d.old.acc, d.old.tagged)
		nl, nr, nacc, ntagged := t.descend(d.new.ref, d.new.acc, d.new.tagged)
		stack = append(stack,
			diffItem[V]{
				old: iterItem[V]{ref: or, l: mid + 1, r: r, acc: oacc, tagged: otagged},
				new: iterItem[V]{ref: nr, l: mid + 1, r: r, acc: nacc, tagged: ntagged},
			},
			diffItem[V]{
				old: iterItem[V]{ref: ol, l: l, r: mid, acc: oacc, tagged: otagged},
				new: iterItem[V]{ref: nl, l: l, r: mid, acc: nacc, tagged: ntagged},
			})
	}
	return nil
}

func (t *Tree[V]) sameSubtree(a, b iterItem[V]) bool {
	if a.ref != b.ref || a.tagged != b.tagged {
		return false
	}
	return !a.tagged || t.monoid.equal(a.acc, b.acc)
}
