// Package jobs runs the workloads of the pstree command: order statistics
// over subarrays and dominant-colour sums over subtrees.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/jrhy/pst"
	"github.com/jrhy/pst/internal/metrics"
)

// ErrInvalidJob is returned for job files that cannot be run.
var ErrInvalidJob = errors.New("invalid job")

// Env carries what jobs need from the command's configuration.
type Env struct {
	Logger *slog.Logger
	// Persist receives saved versions; nil disables saving.
	Persist pst.Persist
	// CacheSize sizes the node cache used while saving; 0 disables it.
	CacheSize int
	// StoreConcurrency bounds concurrent node stores.
	StoreConcurrency int
	// ArenaCapacity overrides the node budget jobs derive themselves.
	ArenaCapacity int
	// Metrics, if set, receives arena and operation statistics.
	Metrics *metrics.Metrics
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func (e Env) observe(op string) {
	if e.Metrics != nil {
		e.Metrics.Observe(op)
	}
}

func (e Env) capacity(derived int) int {
	if e.ArenaCapacity > 0 {
		return e.ArenaCapacity
	}
	return derived
}

func treeConfig[V any](env Env) *pst.Config[V] {
	config := &pst.Config[V]{
		Logger:                  env.logger(),
		StoreImmutablePartsWith: env.Persist,
		StoreConcurrency:        env.StoreConcurrency,
	}
	if env.CacheSize > 0 {
		config.NodeCache = pst.NewNodeCache(env.CacheSize)
	}
	return config
}

func decode(r io.Reader, job any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	return nil
}

// SavedVersion names one saved version in a job result.
type SavedVersion struct {
	Key  int    `yaml:"key"`
	Link string `yaml:"link"`
}

func saveVersion[V any](ctx context.Context, tree *pst.Tree[V], key int, root pst.Root) (SavedVersion, error) {
	saved, err := tree.Save(ctx, root)
	if err != nil {
		return SavedVersion{}, fmt.Errorf("save version %d: %w", key, err)
	}
	return SavedVersion{Key: key, Link: saved.Link}, nil
}
