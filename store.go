package pst

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/minio/blake2b-simd"
	"golang.org/x/sync/errgroup"
)

// Persist is the interface for loading and storing (serialized) tree nodes.
// The given string identity corresponds to the content, which is immutable
// (never modified).
type Persist interface {
	// Store makes the given bytes accessible by the given name.
	Store(context.Context, string, []byte) error
	// Load retrieves the previously-stored bytes by the given name.
	Load(context.Context, string) ([]byte, error)
}

// SavedRoot identifies a version whose nodes are accessible in the
// persistent store.
type SavedRoot struct {
	// Link names the root node; empty for the empty version.
	Link string `json:"link,omitempty"`
	// Size is n for a version over [1, n].
	Size int `json:"size"`
}

var errNoPersist = errors.New("no persistence mechanism set; set Config.StoreImmutablePartsWith")

// Save writes every node reachable from root that is not known to be stored
// yet, each under the hash of its encoding, and returns the name of the
// root. Versions sharing nodes share stored objects too.
//
// Stores run concurrently, so a parent may land in the Persist before its
// children do. A reader of the store only sees a complete version once Save
// has returned its SavedRoot; a failed Save may leave objects naming
// children that were never stored.
func (t *Tree[V]) Save(ctx context.Context, root Root) (*SavedRoot, error) {
	if t.persist == nil {
		return nil, errNoPersist
	}
	if err := t.checkRoot(root); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.storeConcurrency)
	fresh := map[NodeRef]storedNode{}
	link, err := t.storeNode(gctx, g, root.ref, 1, t.n, fresh)
	waitErr := g.Wait()
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("save: %w", waitErr)
	}
	for ref, stored := range fresh {
		t.arena.links[ref] = stored.link
		if t.nodeCache != nil {
			t.nodeCache.Add(stored.key, ref)
		}
	}
	t.logger.Debug("saved version", "root", root.ref, "link", link, "new nodes", len(fresh))
	return &SavedRoot{Link: link, Size: t.n}, nil
}

// storedNode is a node written by the Save in progress.
type storedNode struct {
	link, key string
}

func (t *Tree[V]) storeNode(ctx context.Context, g *errgroup.Group, ref NodeRef, l, r int, fresh map[NodeRef]storedNode) (string, error) {
	if ref == Nil {
		return "", nil
	}
	if link, ok := t.arena.links[ref]; ok {
		return link, nil
	}
	if stored, ok := fresh[ref]; ok {
		return stored.link, nil
	}
	mid := l + (r-l)/2
	left, right := t.arena.children(ref)
	leftLink, err := t.storeNode(ctx, g, left, l, mid, fresh)
	if err != nil {
		return "", err
	}
	rightLink, err := t.storeNode(ctx, g, right, mid+1, r, fresh)
	if err != nil {
		return "", err
	}
	node := wireNode{left: leftLink, right: rightLink}
	node.agg, err = t.marshal(t.arena.agg[ref])
	if err != nil {
		return "", fmt.Errorf("marshal aggregate: %w", err)
	}
	if tag, ok := t.arena.pendingTag(ref); ok {
		node.tagged = true
		node.tag, err = t.marshal(tag)
		if err != nil {
			return "", fmt.Errorf("marshal tag: %w", err)
		}
	}
	encoded := marshalNode(node)
	hash := blake2b.Sum256(encoded)
	link := base64.RawURLEncoding.EncodeToString(hash[:])
	key := cacheKey(link, l, r)
	fresh[ref] = storedNode{link: link, key: key}
	if t.nodeCache != nil && t.nodeCache.Contains(key) {
		return link, nil
	}
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.persist.Store(ctx, link, encoded); err != nil {
			return fmt.Errorf("persist store %s: %w", link, err)
		}
		return nil
	})
	return link, nil
}

// Load materializes a saved version into the tree's arena. A node already
// materialized at the same position, earlier in this load or as found in
// the NodeCache, is shared instead of allocated again. Equal subtrees at
// different positions always get their own nodes.
func (t *Tree[V]) Load(ctx context.Context, saved *SavedRoot) (Root, error) {
	if t.persist == nil {
		return Root{}, errNoPersist
	}
	if saved.Size != t.n {
		return Root{}, fmt.Errorf("load: %w", &DomainMismatchError{A: t.n, B: saved.Size, SameArena: true})
	}
	loaded := map[NodeRef]string{}
	ref, err := t.loadNode(ctx, saved.Link, 1, t.n, loaded)
	if err != nil {
		return Root{}, fmt.Errorf("load %s: %w", saved.Link, err)
	}
	for r, l := range loaded {
		t.arena.links[r] = l
	}
	t.logger.Debug("loaded version", "link", saved.Link, "root", ref, "nodes", len(loaded))
	return t.root(ref), nil
}

func (t *Tree[V]) loadNode(ctx context.Context, link string, l, r int, loaded map[NodeRef]string) (NodeRef, error) {
	if link == "" {
		return Nil, nil
	}
	key := cacheKey(link, l, r)
	if t.nodeCache != nil {
		if v, ok := t.nodeCache.Get(key); ok {
			if ref, ok := v.(NodeRef); ok && ref != Nil && int(ref) <= t.arena.Len() {
				loaded[ref] = link
				return ref, nil
			}
		}
	}
	b, err := t.persist.Load(ctx, link)
	if err != nil {
		return Nil, fmt.Errorf("persist load %s: %w", link, err)
	}
	node, err := unmarshalNode(b)
	if err != nil {
		return Nil, fmt.Errorf("unmarshaling %s: %w", link, err)
	}
	mid := l + (r-l)/2
	left, err := t.loadNode(ctx, node.left, l, mid, loaded)
	if err != nil {
		return Nil, err
	}
	right, err := t.loadNode(ctx, node.right, mid+1, r, loaded)
	if err != nil {
		return Nil, err
	}
	var agg V
	if err := t.unmarshal(node.agg, &agg); err != nil {
		return Nil, fmt.Errorf("cannot unmarshal aggregate in %s: %w", link, err)
	}
	ref, err := t.arena.allocate()
	if err != nil {
		return Nil, err
	}
	t.arena.setChildren(ref, left, right)
	t.arena.setAgg(ref, agg)
	if node.tagged {
		var tag V
		if err := t.unmarshal(node.tag, &tag); err != nil {
			return Nil, fmt.Errorf("cannot unmarshal tag in %s: %w", link, err)
		}
		t.arena.setTag(ref, tag)
	}
	loaded[ref] = link
	if t.nodeCache != nil {
		t.nodeCache.Add(key, ref)
	}
	return ref, nil
}
