package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhy/pst"
	"github.com/jrhy/pst/internal/metrics"
)

var ctx = context.Background()

func TestKthJob(t *testing.T) {
	t.Parallel()

	job, err := LoadKth(strings.NewReader(`
values: [5, 2, 6, 1]
queries:
  - {l: 1, r: 4, k: 2}
  - {l: 2, r: 3, k: 2}
  - {l: 1, r: 1, k: 1}
  - {l: 1, r: 4, count: {lo: 2, hi: 5}}
`))
	require.NoError(t, err)

	res, err := RunKth(ctx, job, Env{}, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 6, 5, 2}, res.Answers)
	assert.Empty(t, res.Saved)
}

func TestKthJobSave(t *testing.T) {
	t.Parallel()

	store := pst.NewInMemoryStore()
	m := metrics.New()
	job := &KthJob{
		Values:  []int64{3, 1, 4, 1, 5, 9, 2, 6},
		Queries: []KthQuery{{L: 2, R: 7, K: 3}},
	}
	res, err := RunKth(ctx, job, Env{Persist: store, CacheSize: 64, Metrics: m}, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.Answers)
	require.Len(t, res.Saved, len(job.Values)+1)
	assert.Empty(t, res.Saved[0].Link, "empty prefix has no nodes")
	for _, s := range res.Saved[1:] {
		assert.NotEmpty(t, s.Link)
	}

	// every prefix version adds one path of new nodes, and shared nodes are
	// stored once
	distinct := pst.NewRanks(job.Values).Len()
	assert.LessOrEqual(t, store.(interface{ Len() int }).Len(), len(job.Values)*pst.PathLen(distinct))
}

func TestKthJobSaveWithoutPersist(t *testing.T) {
	t.Parallel()

	job := &KthJob{Values: []int64{1}, Queries: []KthQuery{{L: 1, R: 1, K: 1}}}
	_, err := RunKth(ctx, job, Env{}, true)
	require.Error(t, err)
}

func TestKthJobInvalid(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		"values: []\n",
		"values: [1, 2]\nqueries: [{l: 0, r: 2, k: 1}]\n",
		"values: [1, 2]\nqueries: [{l: 1, r: 2, k: 3}]\n",
		"values: [1, 2]\nqueries: [{l: 2, r: 1, k: 1}]\n",
	} {
		_, err := LoadKth(strings.NewReader(body))
		assert.ErrorIs(t, err, ErrInvalidJob, body)
	}

	_, err := LoadKth(strings.NewReader("values: [1]\nextra: true\n"))
	require.Error(t, err, "unknown fields are rejected")
}

func TestKthJobArenaCapacity(t *testing.T) {
	t.Parallel()

	job := &KthJob{Values: []int64{1, 2, 3, 4}}
	_, err := RunKth(ctx, job, Env{ArenaCapacity: 2}, false)
	require.True(t, errors.Is(err, pst.ErrArenaExhausted), err)
}

const colouredTree = `
colors: [1, 2, 3, 4]
edges: [[1, 2], [2, 3], [2, 4]]
`

func TestSubtreeJob(t *testing.T) {
	t.Parallel()

	for _, persistent := range []bool{false, true} {
		job, err := LoadSubtree(strings.NewReader(colouredTree))
		require.NoError(t, err)
		job.Persistent = persistent

		res, err := RunSubtree(ctx, job, Env{}, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 9, 3, 4}, res.Dominant, "persistent=%v", persistent)
	}
}

func TestSubtreeJobDominantCounts(t *testing.T) {
	t.Parallel()

	// 1 -> {2, 3, 4}, 2 -> {5, 6}; colours repeat under 2
	job := &SubtreeJob{
		Colors: []int64{7, 3, 3, 7, 3, 8},
		Edges:  [][2]int{{1, 2}, {1, 3}, {1, 4}, {2, 5}, {2, 6}},
		Root:   1,
	}
	res, err := RunSubtree(ctx, job, Env{}, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 3, 3, 7, 3, 8}, res.Dominant)
}

func TestSubtreeJobSave(t *testing.T) {
	t.Parallel()

	store := pst.NewInMemoryStore()
	job, err := LoadSubtree(strings.NewReader(colouredTree))
	require.NoError(t, err)

	res, err := RunSubtree(ctx, job, Env{Persist: store}, true)
	require.NoError(t, err)
	require.NotNil(t, res.Saved)
	assert.Equal(t, 1, res.Saved.Key)

	tree, err := pst.NewTree(pst.NewArena[Dominance](0), 4, DominanceMonoid(), &pst.Config[Dominance]{StoreImmutablePartsWith: store})
	require.NoError(t, err)
	root, err := tree.Load(ctx, &pst.SavedRoot{Link: res.Saved.Link, Size: 4})
	require.NoError(t, err)
	total, err := tree.Total(root)
	require.NoError(t, err)
	assert.Equal(t, Dominance{Count: 1, Sum: 10}, total)
}

func TestSubtreeJobInvalidTree(t *testing.T) {
	t.Parallel()

	job := &SubtreeJob{Colors: []int64{1, 2, 3}, Edges: [][2]int{{1, 2}}, Root: 1}
	_, err := RunSubtree(ctx, job, Env{}, false)
	require.ErrorIs(t, err, ErrInvalidJob)
	require.ErrorIs(t, err, pst.ErrInvalidTree)
}

func TestDominanceMonoid(t *testing.T) {
	t.Parallel()

	m := DominanceMonoid()
	a := Dominance{Count: 2, Sum: 5}
	b := Dominance{Count: 2, Sum: 7}
	c := Dominance{Count: 3, Sum: 1}
	assert.Equal(t, Dominance{Count: 2, Sum: 12}, m.Combine(a, b))
	assert.Equal(t, c, m.Combine(a, c))
	assert.Equal(t, c, m.Combine(c, b))
	assert.Equal(t, a, m.Combine(m.Identity, a))
	assert.Equal(t, Dominance{Count: 5, Sum: 5}, m.Add(a, Dominance{Count: 3, Sum: 5}))
	assert.Equal(t, Dominance{Count: 1, Sum: 9}, m.Add(m.Identity, Dominance{Count: 1, Sum: 9}))
}
