package jobs

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/jrhy/pst"
)

// SubtreeJob asks, for every node of a rooted tree with coloured nodes,
// for the sum of the colours occurring most often in the node's subtree.
type SubtreeJob struct {
	// Colors[u-1] is the colour of node u.
	Colors []int64  `yaml:"colors"`
	Edges  [][2]int `yaml:"edges"`
	Root   int      `yaml:"root"`

	// Persistent keeps every subtree's version, at the cost of copying.
	Persistent bool `yaml:"persistent"`
}

// SubtreeResult holds the dominant-colour sum of every node's subtree, in
// node order, and the saved root version.
type SubtreeResult struct {
	Dominant []int64       `yaml:"dominant"`
	Saved    *SavedVersion `yaml:"saved,omitempty"`
}

// Dominance is the aggregate of a colour-count tree: the highest count of
// any colour in a range, and the sum of the colours having that count.
type Dominance struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum"`
}

// DominanceMonoid combines ranges by keeping the larger count and summing
// the colours of equal counts. Add counts one more occurrence of the
// leaf's colour.
func DominanceMonoid() pst.Monoid[Dominance] {
	return pst.Monoid[Dominance]{
		Combine: func(a, b Dominance) Dominance {
			switch {
			case a.Count > b.Count:
				return a
			case b.Count > a.Count:
				return b
			default:
				return Dominance{Count: a.Count, Sum: a.Sum + b.Sum}
			}
		},
		Add: func(leaf, delta Dominance) Dominance {
			sum := leaf.Sum
			if leaf.Count == 0 {
				sum = delta.Sum
			}
			return Dominance{Count: leaf.Count + delta.Count, Sum: sum}
		},
		Equal: func(a, b Dominance) bool { return a == b },
	}
}

// LoadSubtree decodes a SubtreeJob from YAML.
func LoadSubtree(r io.Reader) (*SubtreeJob, error) {
	job := SubtreeJob{Root: 1}
	if err := decode(r, &job); err != nil {
		return nil, err
	}
	if len(job.Colors) == 0 {
		return nil, fmt.Errorf("%w: no colours", ErrInvalidJob)
	}
	return &job, nil
}

// RunSubtree merges colour-count trees bottom-up over the rooted tree. With
// save set, the root's version is saved through env.Persist.
func RunSubtree(ctx context.Context, job *SubtreeJob, env Env, save bool) (*SubtreeResult, error) {
	log := env.logger()
	n := len(job.Colors)
	g, err := pst.NewRootedTree(n, job.Edges, job.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	ranks := pst.NewRanks(job.Colors)

	// Seeds allocate one path each and destructive merges allocate nothing.
	derived := n * pst.PathLen(ranks.Len())
	if job.Persistent {
		derived = 0
	}
	arena := pst.NewArena[Dominance](env.capacity(derived))
	if env.Metrics != nil {
		if err := env.Metrics.WatchArena("subtree", arena); err != nil {
			return nil, err
		}
	}
	tree, err := pst.NewTree(arena, ranks.Len(), DominanceMonoid(), treeConfig[Dominance](env))
	if err != nil {
		return nil, err
	}

	res := &SubtreeResult{Dominant: make([]int64, n)}
	seed := func(u int) (pst.Root, error) {
		color := job.Colors[u-1]
		rank, _ := ranks.Rank(color)
		env.observe("seed")
		return tree.Single(rank, Dominance{Count: 1, Sum: color})
	}
	visit := func(u int, root pst.Root) error {
		total, err := tree.Total(root)
		if err != nil {
			return err
		}
		res.Dominant[u-1] = total.Sum
		env.observe("merge")
		return nil
	}
	versions, err := tree.SubtreeVersions(g, seed, visit, pst.SubtreeOptions{Persistent: job.Persistent})
	if err != nil {
		return nil, err
	}
	log.Info("merged subtrees",
		"nodes", n,
		"colours", ranks.Len(),
		"arena", humanize.Comma(int64(arena.Len())),
		"persistent", job.Persistent)
	if env.Metrics != nil {
		env.Metrics.SetVersions(versions.Len())
	}

	if !save {
		return res, nil
	}
	root, _ := versions.Root(g.Root())
	saved, err := saveVersion(ctx, tree, g.Root(), root)
	if err != nil {
		return nil, err
	}
	res.Saved = &saved
	env.observe("save")
	return res, nil
}
