package pst

import (
	"fmt"
	"log/slog"
)

// DefaultStoreConcurrency is how many node stores Save keeps in flight.
const DefaultStoreConcurrency = 40

// Config controls logging and how versions are persisted and loaded.
type Config[V any] struct {
	// Logger receives debug traces of tree operations. Nil discards them.
	Logger *slog.Logger

	// StoreImmutablePartsWith is used to store and load serialized nodes.
	StoreImmutablePartsWith Persist

	// Marshal function for aggregates, defaults to JSON.
	Marshal func(V) ([]byte, error)

	// Unmarshal function for aggregates, defaults to JSON.
	Unmarshal func([]byte, *V) error

	// NodeCache remembers which nodes were already persisted or loaded. It
	// belongs to the arena of the tree it is given to.
	NodeCache NodeCache

	// StoreConcurrency bounds concurrent Persist.Store calls during Save.
	// 0 means DefaultStoreConcurrency.
	StoreConcurrency int
}

// Root identifies one version of a tree: a node of an arena together with
// the domain it covers. Roots are plain values and never change.
type Root struct {
	arena uint64
	ref   NodeRef
	n     int
}

// Ref returns the root node.
func (r Root) Ref() NodeRef {
	return r.ref
}

// Size returns n for a root over [1, n].
func (r Root) Size() int {
	return r.n
}

// IsEmpty signifies a version whose leaves are all the identity and which
// owns no nodes.
func (r Root) IsEmpty() bool {
	return r.ref == Nil
}

// Tree is a view of an arena as segment trees over the fixed domain [1, n].
// All of its versions are Roots; a Tree holds no "current" version itself.
type Tree[V any] struct {
	arena            *Arena[V]
	monoid           Monoid[V]
	n                int
	logger           *slog.Logger
	persist          Persist
	marshal          func(V) ([]byte, error)
	unmarshal        func([]byte, *V) error
	nodeCache        NodeCache
	storeConcurrency int
}

// New returns a tree over [1, n] on its own unbounded arena.
func New[V any](n int, monoid Monoid[V]) (*Tree[V], error) {
	return NewTree(NewArena[V](0), n, monoid, nil)
}

// NewTree returns a tree over [1, n] allocating from the given arena. Several
// trees, even over different domains, may share an arena.
func NewTree[V any](arena *Arena[V], n int, monoid Monoid[V], config *Config[V]) (*Tree[V], error) {
	if n < 1 {
		return nil, fmt.Errorf("new tree over [1, %d]: %w", n, ErrInvalidDomain)
	}
	if monoid.Combine == nil {
		return nil, fmt.Errorf("new tree: monoid has no Combine")
	}
	if monoid.Lazy != nil && (monoid.Lazy.Apply == nil || monoid.Lazy.Compose == nil) {
		return nil, fmt.Errorf("new tree: incomplete lazy operations")
	}
	if config == nil {
		config = &Config[V]{}
	}
	t := &Tree[V]{
		arena:            arena,
		monoid:           monoid,
		n:                n,
		logger:           config.Logger,
		persist:          config.StoreImmutablePartsWith,
		marshal:          config.Marshal,
		unmarshal:        config.Unmarshal,
		nodeCache:        config.NodeCache,
		storeConcurrency: config.StoreConcurrency,
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	if t.marshal == nil {
		t.marshal = defaultMarshal[V]
	}
	if t.unmarshal == nil {
		t.unmarshal = defaultUnmarshal[V]
	}
	if t.storeConcurrency <= 0 {
		t.storeConcurrency = DefaultStoreConcurrency
	}
	return t, nil
}

// Arena returns the arena the tree allocates from.
func (t *Tree[V]) Arena() *Arena[V] {
	return t.arena
}

// Size returns n for a tree over [1, n].
func (t *Tree[V]) Size() int {
	return t.n
}

// Monoid returns the aggregate algebra of the tree.
func (t *Tree[V]) Monoid() Monoid[V] {
	return t.monoid
}

// Empty returns the version in which every leaf is the identity. It
// allocates nothing.
func (t *Tree[V]) Empty() Root {
	return t.root(Nil)
}

// Build allocates a complete tree whose leaves are the given values;
// values[i-1] becomes leaf i.
func (t *Tree[V]) Build(values []V) (Root, error) {
	if len(values) != t.n {
		return Root{}, fmt.Errorf("build from %d values: %w", len(values),
			&DomainMismatchError{A: t.n, B: len(values), SameArena: true})
	}
	ref, err := t.build(values, 1, t.n)
	if err != nil {
		return Root{}, fmt.Errorf("build: %w", err)
	}
	t.logger.Debug("built version", "n", t.n, "root", ref, "nodes", t.arena.Len())
	return t.root(ref), nil
}

func (t *Tree[V]) build(values []V, l, r int) (NodeRef, error) {
	ref, err := t.arena.allocate()
	if err != nil {
		return Nil, err
	}
	if l == r {
		t.arena.setAgg(ref, values[l-1])
		return ref, nil
	}
	mid := l + (r-l)/2
	left, err := t.build(values, l, mid)
	if err != nil {
		return Nil, err
	}
	right, err := t.build(values, mid+1, r)
	if err != nil {
		return Nil, err
	}
	t.arena.setChildren(ref, left, right)
	t.arena.setAgg(ref, t.monoid.Combine(t.agg(left), t.agg(right)))
	return ref, nil
}

// Single returns a fresh tree holding value at index and the identity
// everywhere else.
func (t *Tree[V]) Single(index int, value V) (Root, error) {
	return t.Update(t.Empty(), index, value)
}

// Total returns the aggregate over the whole domain.
func (t *Tree[V]) Total(root Root) (V, error) {
	if err := t.checkRoot(root); err != nil {
		return t.monoid.Identity, err
	}
	return t.agg(root.ref), nil
}

func (t *Tree[V]) root(ref NodeRef) Root {
	return Root{arena: t.arena.id, ref: ref, n: t.n}
}

func (t *Tree[V]) checkRoot(r Root) error {
	if r.arena != t.arena.id {
		return &DomainMismatchError{A: t.n, B: r.n}
	}
	if r.n != t.n {
		return &DomainMismatchError{A: t.n, B: r.n, SameArena: true}
	}
	return nil
}

// agg returns the aggregate of a subtree, ignoring tags of its ancestors.
func (t *Tree[V]) agg(ref NodeRef) V {
	if ref == Nil {
		return t.monoid.Identity
	}
	return t.arena.agg[ref]
}

// pull recomputes ref's aggregate from its children and its own tag.
func (t *Tree[V]) pull(ref NodeRef, l, r int) {
	left, right := t.arena.children(ref)
	agg := t.monoid.Combine(t.agg(left), t.agg(right))
	if tag, ok := t.arena.pendingTag(ref); ok {
		agg = t.monoid.Lazy.Apply(agg, tag, r-l+1)
	}
	t.arena.setAgg(ref, agg)
}
