package pst

import "fmt"

// Versions maps external keys (timestamps, prefix lengths, tree nodes) to
// the roots recorded for them. Each key is recorded once and never
// overwritten.
type Versions[K comparable] struct {
	roots map[K]Root
	keys  []K
}

// NewVersions returns an empty version table.
func NewVersions[K comparable]() *Versions[K] {
	return &Versions[K]{roots: map[K]Root{}}
}

// Record makes root addressable as key.
func (v *Versions[K]) Record(key K, root Root) error {
	if _, ok := v.roots[key]; ok {
		return fmt.Errorf("record %v: %w", key, ErrVersionExists)
	}
	v.roots[key] = root
	v.keys = append(v.keys, key)
	return nil
}

// Root returns the root recorded for key.
func (v *Versions[K]) Root(key K) (Root, bool) {
	root, ok := v.roots[key]
	return root, ok
}

// Len returns the number of recorded versions.
func (v *Versions[K]) Len() int {
	return len(v.keys)
}

// Keys returns the recorded keys in the order they were recorded.
func (v *Versions[K]) Keys() []K {
	return append([]K(nil), v.keys...)
}
