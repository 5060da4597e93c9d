package pst

import "fmt"

// RootedTree is a tree over nodes 1..n with a designated root.
type RootedTree struct {
	root     int
	parent   []int
	children [][]int
}

// NewRootedTree orients an undirected edge list away from root. It fails
// unless the edges form a single tree spanning 1..n.
func NewRootedTree(n int, edges [][2]int, root int) (*RootedTree, error) {
	if n < 1 {
		return nil, fmt.Errorf("%d nodes: %w", n, ErrInvalidTree)
	}
	if root < 1 || root > n {
		return nil, fmt.Errorf("root: %w", outOfRange("node", root, root, 1, n))
	}
	if len(edges) != n-1 {
		return nil, fmt.Errorf("%d edges for %d nodes: %w", len(edges), n, ErrInvalidTree)
	}
	adjacent := make([][]int, n+1)
	for _, e := range edges {
		for _, u := range e {
			if u < 1 || u > n {
				return nil, fmt.Errorf("edge %v: %w", e, outOfRange("node", u, u, 1, n))
			}
		}
		adjacent[e[0]] = append(adjacent[e[0]], e[1])
		adjacent[e[1]] = append(adjacent[e[1]], e[0])
	}
	g := &RootedTree{
		root:     root,
		parent:   make([]int, n+1),
		children: make([][]int, n+1),
	}
	seen := make([]bool, n+1)
	seen[root] = true
	queue := []int{root}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adjacent[u] {
			if seen[v] {
				continue
			}
			seen[v] = true
			g.parent[v] = u
			g.children[u] = append(g.children[u], v)
			queue = append(queue, v)
		}
	}
	for u := 1; u <= n; u++ {
		if !seen[u] {
			return nil, fmt.Errorf("node %d unreachable from %d: %w", u, root, ErrInvalidTree)
		}
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *RootedTree) Len() int {
	return len(g.parent) - 1
}

// Root returns the root node.
func (g *RootedTree) Root() int {
	return g.root
}

// Parent returns the parent of u, or 0 for the root.
func (g *RootedTree) Parent(u int) int {
	return g.parent[u]
}

// Children returns the children of u.
func (g *RootedTree) Children(u int) []int {
	return g.children[u]
}

// PostOrder lists the nodes so that every node follows all its
// descendants. It uses an explicit stack, so path-shaped trees of any
// depth are fine.
func (g *RootedTree) PostOrder() []int {
	order := make([]int, 0, g.Len())
	type frame struct {
		node, next int
	}
	stack := []frame{{node: g.root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(g.children[top.node]) {
			child := g.children[top.node][top.next]
			top.next++
			stack = append(stack, frame{node: child})
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// SubtreeOptions controls SubtreeVersions.
type SubtreeOptions struct {
	// Persistent merges with MergeCopy so that every node's version stays
	// valid and is recorded. Otherwise the destructive Merge is used and
	// only the root's version outlives the traversal.
	Persistent bool
}

// SubtreeVersions computes, for every node u of g, the tree of u's subtree:
// seed(u) merged with the versions of all of u's children. Nodes are
// processed in post-order and visit is called with u's version as soon as
// it is complete, before any parent consumes it. visit may be nil.
//
// The returned table maps nodes to their versions; without
// SubtreeOptions.Persistent it only holds the root.
func (t *Tree[V]) SubtreeVersions(
	g *RootedTree,
	seed func(u int) (Root, error),
	visit func(u int, root Root) error,
	options SubtreeOptions,
) (*Versions[int], error) {
	merge := t.Merge
	if options.Persistent {
		merge = t.MergeCopy
	}
	versions := NewVersions[int]()
	roots := make([]Root, g.Len()+1)
	for _, u := range g.PostOrder() {
		root, err := seed(u)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", u, err)
		}
		for _, c := range g.children[u] {
			root, err = merge(root, roots[c])
			if err != nil {
				return nil, fmt.Errorf("merge child %d into %d: %w", c, u, err)
			}
			if !options.Persistent {
				roots[c] = Root{}
			}
		}
		roots[u] = root
		if options.Persistent || u == g.root {
			if err := versions.Record(u, root); err != nil {
				return nil, err
			}
		}
		if visit != nil {
			if err := visit(u, root); err != nil {
				return nil, fmt.Errorf("visit %d: %w", u, err)
			}
		}
	}
	t.logger.Debug("built subtree versions", "nodes", g.Len(), "persistent", options.Persistent, "arena", t.arena.Len())
	return versions, nil
}
