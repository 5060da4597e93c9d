package pst

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru"
)

// NodeCache remembers the nodes of one arena by the name they are persisted
// under and the range they cover, so Save can skip nodes that were already
// stored and Load can reuse nodes that were already materialized at the
// same position. Care should be taken to switch or
// invalidate the cache when the Persist is changed.
type NodeCache interface {
	// Add records that the node ref is persisted under key.
	Add(key, value interface{})
	// Contains indicates the node with the given key has already been persisted.
	Contains(key interface{}) bool
	// Get retrieves the node ref persisted under key, if cached.
	Get(key interface{}) (value interface{}, ok bool)
	// Remove forgets key, after its node was rewritten by a destructive merge.
	Remove(key interface{})
}

// NewNodeCache creates a new ARC-based node cache of the given size.
func NewNodeCache(size int) NodeCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}
	return cache
}

// cacheKey names the node persisted as link covering [l, r]. Equal subtrees
// at different positions get different keys, so they never share a slot
// that a destructive merge could rewrite.
func cacheKey(link string, l, r int) string {
	return link + "@" + strconv.Itoa(l) + ":" + strconv.Itoa(r)
}
