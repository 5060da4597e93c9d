package pst

import (
	"math/bits"
	"sync/atomic"
)

// NodeRef addresses a node slot in an Arena.
type NodeRef int32

// Nil is the absent subtree. Every leaf beneath it holds the identity.
const Nil NodeRef = 0

var arenaIDs atomic.Uint64

// Arena is append-only storage for tree nodes, laid out as parallel slices
// indexed by NodeRef. Slot 0 is reserved for Nil. Nodes are never freed, so
// every version built on the arena stays queryable for the arena's lifetime.
type Arena[V any] struct {
	id       uint64
	capacity int
	left     []NodeRef
	right    []NodeRef
	agg      []V
	tag      []V
	tagged   []bool
	// links names the nodes known to be persisted, for every tree on the
	// arena.
	links map[NodeRef]string
}

// NewArena returns an arena holding at most capacity nodes (not counting
// Nil). A capacity <= 0 lets the arena grow without bound.
func NewArena[V any](capacity int) *Arena[V] {
	size := 1
	if capacity > 0 {
		size += capacity
	}
	a := &Arena[V]{
		id:       arenaIDs.Add(1),
		capacity: capacity,
		left:     make([]NodeRef, 1, size),
		right:    make([]NodeRef, 1, size),
		agg:      make([]V, 1, size),
		tag:      make([]V, 1, size),
		tagged:   make([]bool, 1, size),
		links:    map[NodeRef]string{},
	}
	return a
}

// CapacityFor returns a node budget sufficient for one full build over
// [1, n] followed by the given number of point updates.
func CapacityFor(n, updates int) int {
	if n < 1 {
		return 0
	}
	return 2*n + updates*PathLen(n)
}

// PathLen returns the number of nodes on a root-to-leaf path over [1, n],
// which is what each point update allocates.
func PathLen(n int) int {
	return depth(n) + 1
}

// depth is ceil(log2(n)), the number of edges from root to the deepest leaf.
func depth(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Len returns the number of allocated nodes, not counting Nil.
func (a *Arena[V]) Len() int {
	return len(a.left) - 1
}

// Cap returns the node capacity, or 0 if unbounded.
func (a *Arena[V]) Cap() int {
	if a.capacity <= 0 {
		return 0
	}
	return a.capacity
}

// allocate appends a zeroed node.
func (a *Arena[V]) allocate() (NodeRef, error) {
	if a.capacity > 0 && a.Len() >= a.capacity {
		return Nil, &ArenaExhaustedError{Capacity: a.capacity}
	}
	var zero V
	ref := NodeRef(len(a.left))
	a.left = append(a.left, Nil)
	a.right = append(a.right, Nil)
	a.agg = append(a.agg, zero)
	a.tag = append(a.tag, zero)
	a.tagged = append(a.tagged, false)
	return ref, nil
}

// clone allocates a copy of src. Cloning Nil yields a node with Nil children
// and the given identity aggregate.
func (a *Arena[V]) clone(src NodeRef, identity V) (NodeRef, error) {
	ref, err := a.allocate()
	if err != nil {
		return Nil, err
	}
	if src == Nil {
		a.agg[ref] = identity
		return ref, nil
	}
	a.left[ref] = a.left[src]
	a.right[ref] = a.right[src]
	a.agg[ref] = a.agg[src]
	a.tag[ref] = a.tag[src]
	a.tagged[ref] = a.tagged[src]
	return ref, nil
}

func (a *Arena[V]) children(ref NodeRef) (NodeRef, NodeRef) {
	return a.left[ref], a.right[ref]
}

func (a *Arena[V]) setChildren(ref, left, right NodeRef) {
	a.left[ref] = left
	a.right[ref] = right
}

func (a *Arena[V]) setAgg(ref NodeRef, v V) {
	a.agg[ref] = v
}

func (a *Arena[V]) setTag(ref NodeRef, v V) {
	a.tag[ref] = v
	a.tagged[ref] = true
}

// pendingTag returns the node's range tag, if any.
func (a *Arena[V]) pendingTag(ref NodeRef) (V, bool) {
	return a.tag[ref], a.tagged[ref]
}

func (a *Arena[V]) clearTag(ref NodeRef) {
	var zero V
	a.tag[ref] = zero
	a.tagged[ref] = false
}
