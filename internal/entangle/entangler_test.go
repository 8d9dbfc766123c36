package entangle

import (
	"testing"

	"github.com/nvandessel/lhvsim/internal/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdSchedule(t *testing.T) {
	e := New(Config{Enabled: true, Efficiency: 1.0, Factor: 2.0}, rng.NewUniform(1))

	tests := []struct {
		per  float64
		want float64
	}{
		{0, 0.25},
		{27.9, 0.25},
		{28, 0.5},
		{51.9, 0.5},
		{52, 1.0},
		{72.9, 1.0},
		{73, 0.5},
		{100, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, e.Threshold(tt.per), 1e-12, "per=%v", tt.per)
	}
}

func TestAttemptPairReproducible(t *testing.T) {
	const trials = 5000
	run := func() []bool {
		src := rng.NewUniform(1234)
		e := New(DefaultConfig(), src)
		e.SetTrialCount(trials)
		out := make([]bool, trials)
		for i := range out {
			out[i] = e.AttemptPair()
		}
		return out
	}

	first := run()
	second := run()
	require.Equal(t, first, second)

	// Reset via SetTrialCount on the same entangler replays the sequence
	// once the source is reseeded too.
	src := rng.NewUniform(1234)
	e := New(DefaultConfig(), src)
	e.SetTrialCount(trials)
	for i := 0; i < trials; i++ {
		e.AttemptPair()
	}
	assert.Equal(t, trials, e.Counter())

	src.Seed(1234)
	e.SetTrialCount(trials)
	for i := 0; i < trials; i++ {
		require.Equal(t, first[i], e.AttemptPair(), "trial %d", i)
	}
}

func TestAttemptPairPhaseRates(t *testing.T) {
	const trials = 200000
	e := New(DefaultConfig(), rng.NewUniform(99))
	e.SetTrialCount(trials)

	var accepted [4]int
	var total [4]int
	for i := 1; i <= trials; i++ {
		per := float64(i) * 100 / trials
		phase := 3
		switch {
		case per < 28:
			phase = 0
		case per < 52:
			phase = 1
		case per < 73:
			phase = 2
		}
		if e.AttemptPair() {
			accepted[phase]++
		}
		total[phase]++
	}

	f := 1.9
	want := [4]float64{1 / f / f, 1 / f, 1, 1 / f}
	for p := range want {
		assert.InDelta(t, want[p], float64(accepted[p])/float64(total[p]), 0.01, "phase %d", p)
	}
}

func TestDisabledAcceptsWithoutDrawing(t *testing.T) {
	src := rng.NewUniform(5)
	ref := rng.NewUniform(5)

	e := New(Config{Enabled: false}, src)
	e.SetTrialCount(10)
	for i := 0; i < 10; i++ {
		require.True(t, e.AttemptPair())
	}
	assert.Equal(t, ref.Float64(), src.Float64(), "disabled entangler must not consume draws")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Efficiency: 1.2, Factor: 2}.Validate())
	assert.Error(t, Config{Efficiency: 0.5, Factor: 0.5}.Validate())
}
