package pst

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNodeNotFound is returned by the in-memory store for unknown names.
var ErrNodeNotFound = errors.New("node not found")

type inMemoryStore struct {
	entries map[string][]byte
	l       sync.Mutex
}

// NewInMemoryStore provides a Persist that keeps serialized nodes in a map,
// usually for testing.
func NewInMemoryStore() Persist {
	return &inMemoryStore{entries: map[string][]byte{}}
}

func (ims *inMemoryStore) Store(_ context.Context, name string, value []byte) error {
	ims.l.Lock()
	defer ims.l.Unlock()
	ims.entries[name] = append([]byte(nil), value...)
	return nil
}

func (ims *inMemoryStore) Load(_ context.Context, name string) ([]byte, error) {
	ims.l.Lock()
	value, ok := ims.entries[name]
	ims.l.Unlock()
	if !ok {
		return nil, fmt.Errorf("in-memory store %s: %w", name, ErrNodeNotFound)
	}
	return value, nil
}

// Len returns how many distinct nodes are stored.
func (ims *inMemoryStore) Len() int {
	ims.l.Lock()
	defer ims.l.Unlock()
	return len(ims.entries)
}
