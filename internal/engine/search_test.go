package engine

import (
	"context"
	"testing"

	"github.com/nvandessel/lhvsim/internal/inequality"
	"github.com/nvandessel/lhvsim/internal/lhv"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBatch  = 100
	testVerify = 5000
)

func restrictedSpace() SearchSpace {
	return SearchSpace{
		A1: []float64{0},
		A2: []float64{45},
		B1: []float64{5, 10},
		B2: []float64{-10, -5},
	}
}

// scripted returns fixed batch and verification statistics per B angle
// pair, ignoring seeds.
func scripted(batch, verify map[[2]float64]float64) evalFunc {
	return func(_ *Engine, angles models.Angles, _ int64, trials int) float64 {
		key := [2]float64{angles.B[0], angles.B[1]}
		if trials == testVerify {
			return verify[key]
		}
		return batch[key]
	}
}

func newSearcher(t *testing.T, space SearchSpace, opts SearchOptions, eval evalFunc) *searcher {
	t.Helper()
	e, err := New(testSettings(models.AngleModeRandom), lhv.Null{}, inequality.CH{}, DefaultOptions())
	require.NoError(t, err)
	opts.BatchTrials = testBatch
	opts.VerifyTrials = testVerify
	return &searcher{base: e, space: space, opts: opts.withDefaults(), eval: eval}
}

func TestSearchPicksVerifiedWinner(t *testing.T) {
	batch := map[[2]float64]float64{
		{5, -10}:  10, // best batch, noise
		{5, -5}:   8,
		{10, -10}: 5,
		{10, -5}:  -1, // never verified
	}
	verify := map[[2]float64]float64{
		{5, -10}:  1,
		{5, -5}:   6,
		{10, -10}: 3,
	}

	for _, workers := range []int{1, 3} {
		s := newSearcher(t, restrictedSpace(), SearchOptions{Workers: workers}, scripted(batch, verify))
		res, err := s.run(context.Background())
		require.NoError(t, err)

		assert.True(t, res.Found)
		assert.Equal(t, models.Angles{A: [2]float64{0, 45}, B: [2]float64{5, -5}}, res.Best)
		assert.Equal(t, 6.0, res.Statistic)
		assert.Equal(t, 8.0, res.BatchStatistic)
		assert.Equal(t, 4, res.Candidates)
		assert.Equal(t, 3, res.Broken)
		assert.Equal(t, 3, res.Verified)
		assert.False(t, res.Interrupted)
	}
}

func TestSearchTopKBoundsVerification(t *testing.T) {
	batch := map[[2]float64]float64{{5, -10}: 10, {5, -5}: 8, {10, -10}: 5}
	verify := map[[2]float64]float64{{5, -10}: 1, {5, -5}: 6, {10, -10}: 3}

	s := newSearcher(t, restrictedSpace(), SearchOptions{VerifyTopK: 1}, scripted(batch, verify))
	res, err := s.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Verified)
	assert.Equal(t, models.Angles{A: [2]float64{0, 45}, B: [2]float64{5, -10}}, res.Best)
	assert.Equal(t, 1.0, res.Statistic)
}

func TestSearchRejectsUnverifiedViolations(t *testing.T) {
	batch := map[[2]float64]float64{{5, -10}: 10, {5, -5}: 8}
	verify := map[[2]float64]float64{{5, -10}: -2, {5, -5}: 0}

	s := newSearcher(t, restrictedSpace(), SearchOptions{}, scripted(batch, verify))
	res, err := s.run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, 2, res.Verified)
}

func TestSearchTiesUseEnumerationOrder(t *testing.T) {
	batch := map[[2]float64]float64{{5, -10}: 4, {5, -5}: 4, {10, -10}: 4, {10, -5}: 4}
	verify := map[[2]float64]float64{{5, -10}: 2, {5, -5}: 7, {10, -10}: 7, {10, -5}: 7}

	s := newSearcher(t, restrictedSpace(), SearchOptions{Workers: 2}, scripted(batch, verify))
	res, err := s.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.Angles{A: [2]float64{0, 45}, B: [2]float64{5, -5}}, res.Best)
}

func TestSearchSkipsCoincidingAngles(t *testing.T) {
	space := SearchSpace{
		A1: []float64{0, 10},
		A2: []float64{10},
		B1: []float64{0, 20},
		B2: []float64{-5},
	}
	var seen []models.Angles
	eval := func(_ *Engine, angles models.Angles, _ int64, _ int) float64 {
		seen = append(seen, angles)
		return 0
	}

	s := newSearcher(t, space, SearchOptions{}, eval)
	res, err := s.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Candidates)
	require.Len(t, seen, 1)
	assert.Equal(t, models.Angles{A: [2]float64{0, 10}, B: [2]float64{20, -5}}, seen[0])
}

func TestSearchParallelMatchesSequential(t *testing.T) {
	settings := models.Settings{
		Angles:                 inequality.Guistina2015{}.PreferredAngles(),
		EntanglementEfficiency: 0.6,
		Seed:                   42,
		Trials:                 1000,
		Mode:                   models.AngleModeRandom,
	}
	model, err := lhv.New("wang", settings, lhv.Options{})
	require.NoError(t, err)

	space := SearchSpace{
		A1: []float64{0, 1},
		A2: []float64{1, 2, 3},
		B1: []float64{2, 3},
		B2: []float64{-39, -38},
	}
	opts := SearchOptions{BatchTrials: 300, VerifyTrials: 1500, VerifyTopK: 4}

	run := func(workers int) SearchResult {
		e, err := New(settings, model, inequality.Guistina2015{}, DefaultOptions())
		require.NoError(t, err)
		o := opts
		o.Workers = workers
		res, err := e.Search(context.Background(), space, o)
		require.NoError(t, err)
		return res
	}

	sequential := run(1)
	assert.Equal(t, sequential, run(4))
	assert.Equal(t, sequential, run(7))
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newSearcher(t, restrictedSpace(), SearchOptions{}, scripted(nil, nil))
	res, err := s.run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Zero(t, res.Candidates)
	assert.False(t, res.Found)
}

func TestSearchSpace(t *testing.T) {
	def := DefaultSearchSpace()
	assert.Equal(t, 90*89*45*90, def.Size())
	assert.Equal(t, models.Angles{A: [2]float64{0, 1}, B: [2]float64{0, -45}}, def.At(0))
	assert.Equal(t, models.Angles{A: [2]float64{89, 89}, B: [2]float64{44, 44}}, def.At(def.Size()-1))

	s := restrictedSpace()
	assert.Equal(t, 4, s.Size())
	assert.Equal(t, models.Angles{A: [2]float64{0, 45}, B: [2]float64{10, -10}}, s.At(2))

	_, err := newSearcher(t, SearchSpace{}, SearchOptions{}, nil).run(context.Background())
	assert.Error(t, err)
}

func TestPoolOrdering(t *testing.T) {
	p := pool{k: 3}
	assert.True(t, p.offer(candidate{index: 5, statistic: 1}))
	assert.True(t, p.offer(candidate{index: 2, statistic: 3}))
	assert.False(t, p.offer(candidate{index: 9, statistic: 2}))
	assert.False(t, p.offer(candidate{index: 1, statistic: 0.5}), "full pool drops worse candidates")
	assert.True(t, p.offer(candidate{index: 1, statistic: 3}), "ties go to the earlier index")

	var got []int
	for _, c := range p.items {
		got = append(got, c.index)
	}
	assert.Equal(t, []int{1, 2, 9}, got)
}
