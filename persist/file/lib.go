package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Persist implements the pst.Persist interface for storing and loading
// tree nodes from files.
type Persist struct {
	basepath string
}

// Load loads the bytes persisted in the named file.
func (p Persist) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(p.basepath, name))
	if err != nil {
		return nil, fmt.Errorf("load node: %w", err)
	}
	return b, nil
}

// Store persists the given bytes in a file of the given name, if it
// doesn't exist already. Names are content hashes, so an existing file
// already holds the same bytes.
func (p Persist) Store(ctx context.Context, name string, bytes []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(p.basepath, name)
	_, err := os.Stat(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	tmp, err := os.CreateTemp(p.basepath, "."+name+".*")
	if err != nil {
		return fmt.Errorf("store node: %w", err)
	}
	if _, err := tmp.Write(bytes); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store node: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store node: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store node: %w", err)
	}
	return nil
}

// NewPersistForPath returns a Persist that loads and stores nodes as
// files in the directory at the given path, creating it if needed.
//
//	p, err := NewPersistForPath("/var/db/versions")
//	blob, err := p.Load(ctx, "mD0Jf4XJ8y3t4qv1ld1L2pX2uD9Y7ZsCgoEwdqo3v0c")
func NewPersistForPath(path string) (Persist, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Persist{}, fmt.Errorf("node directory: %w", err)
	}
	return Persist{path}, nil
}
