package engine

import (
	"context"
	"testing"

	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplicate(t *testing.T) {
	s := testSettings(models.AngleModeRandom)
	e := newTestEngine(t, s, DefaultOptions())

	reps, err := e.Replicate(context.Background(), ReplicateOptions{Runs: 5, Trials: 400})
	require.NoError(t, err)
	require.Len(t, reps, 5)

	for i, r := range reps {
		assert.Equal(t, s.Seed+int64(i), r.Seed)

		fresh := newTestEngine(t, s.WithSeed(r.Seed), DefaultOptions())
		want := fresh.Run(400, nil, false)
		assert.Equal(t, want.Statistic, r.Statistic, "seed %d", r.Seed)
		assert.Equal(t, 400, r.SettingCounts[0]+r.SettingCounts[1]+r.SettingCounts[2]+r.SettingCounts[3])
	}

	// The base engine is untouched.
	assert.Zero(t, e.Counts().TotalTrials())
}

func TestReplicateParallelMatchesSequential(t *testing.T) {
	s := testSettings(models.AngleModeIterate)
	e := newTestEngine(t, s, DefaultOptions())

	seq, err := e.Replicate(context.Background(), ReplicateOptions{Runs: 6, Trials: 300, Workers: 1})
	require.NoError(t, err)
	par, err := e.Replicate(context.Background(), ReplicateOptions{Runs: 6, Trials: 300, Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

func TestReplicateDefaultsAndErrors(t *testing.T) {
	s := testSettings(models.AngleModeRandom)
	s.Trials = 50
	e := newTestEngine(t, s, DefaultOptions())

	reps, err := e.Replicate(context.Background(), ReplicateOptions{Runs: 1})
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, 50, reps[0].SettingCounts[0]+reps[0].SettingCounts[1]+reps[0].SettingCounts[2]+reps[0].SettingCounts[3])

	_, err = e.Replicate(context.Background(), ReplicateOptions{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reps, err = e.Replicate(ctx, ReplicateOptions{Runs: 3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reps)
}
