package jobs

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/jrhy/pst"
)

// KthJob asks for order statistics over subarrays of Values.
type KthJob struct {
	Values  []int64    `yaml:"values"`
	Queries []KthQuery `yaml:"queries"`
}

// KthQuery asks for the K-th smallest of Values[L..R], 1-based and
// inclusive. Count, if set, instead asks how many of Values[L..R] lie in
// [Count.Lo, Count.Hi].
type KthQuery struct {
	L     int       `yaml:"l"`
	R     int       `yaml:"r"`
	K     int       `yaml:"k,omitempty"`
	Count *Interval `yaml:"count,omitempty"`
}

// Interval is a closed value interval.
type Interval struct {
	Lo int64 `yaml:"lo"`
	Hi int64 `yaml:"hi"`
}

// KthResult holds one answer per query, and the saved prefix versions.
type KthResult struct {
	Answers []int64        `yaml:"answers"`
	Saved   []SavedVersion `yaml:"saved,omitempty"`
}

// LoadKth decodes a KthJob from YAML.
func LoadKth(r io.Reader) (*KthJob, error) {
	var job KthJob
	if err := decode(r, &job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks that every query addresses a subarray of Values.
func (j *KthJob) Validate() error {
	if len(j.Values) == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidJob)
	}
	for i, q := range j.Queries {
		if q.L < 1 || q.R > len(j.Values) || q.L > q.R {
			return fmt.Errorf("%w: query %d: subarray [%d, %d] of %d values", ErrInvalidJob, i+1, q.L, q.R, len(j.Values))
		}
		if q.Count == nil && (q.K < 1 || q.K > q.R-q.L+1) {
			return fmt.Errorf("%w: query %d: k=%d for %d values", ErrInvalidJob, i+1, q.K, q.R-q.L+1)
		}
	}
	return nil
}

// RunKth answers the queries of job on a prefix index. With save set, every
// prefix version is saved through env.Persist; the versions share nodes, so
// each node is stored once.
func RunKth(ctx context.Context, job *KthJob, env Env, save bool) (*KthResult, error) {
	log := env.logger()
	arena := pst.NewArena[int64](env.capacity(pst.PrefixIndexCapacity(job.Values)))
	if env.Metrics != nil {
		if err := env.Metrics.WatchArena("prefix", arena); err != nil {
			return nil, err
		}
	}
	index, err := pst.NewPrefixIndexOn(arena, job.Values, treeConfig[int64](env))
	if err != nil {
		return nil, err
	}
	log.Info("indexed prefixes",
		"values", len(job.Values),
		"distinct", index.Ranks().Len(),
		"nodes", humanize.Comma(int64(arena.Len())))

	res := &KthResult{Answers: make([]int64, 0, len(job.Queries))}
	for i, q := range job.Queries {
		var answer int64
		if q.Count != nil {
			answer, err = index.CountBetween(q.L, q.R, q.Count.Lo, q.Count.Hi)
			env.observe("count")
		} else {
			answer, err = index.Kth(q.L, q.R, q.K)
			env.observe("kth")
		}
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i+1, err)
		}
		res.Answers = append(res.Answers, answer)
	}

	if env.Metrics != nil {
		env.Metrics.SetVersions(index.Len() + 1)
	}
	if !save {
		return res, nil
	}
	for i := 0; i <= index.Len(); i++ {
		root, err := index.VersionForPrefix(i)
		if err != nil {
			return nil, err
		}
		saved, err := saveVersion(ctx, index.Tree(), i, root)
		if err != nil {
			return nil, err
		}
		res.Saved = append(res.Saved, saved)
		env.observe("save")
	}
	log.Info("saved prefix versions", "versions", len(res.Saved))
	return res, nil
}
