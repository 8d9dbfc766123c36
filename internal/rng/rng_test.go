package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformDeterministic(t *testing.T) {
	a := NewUniform(1234)
	b := NewUniform(1234)
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Float64(), b.Float64(), "draw %d diverged", i)
	}

	a.Seed(99)
	b.Seed(99)
	assert.Equal(t, a.Range(0, 180), b.Range(0, 180))
}

func TestUniformRangeBounds(t *testing.T) {
	u := NewUniform(7)
	for i := 0; i < 10000; i++ {
		v := u.Range(-45, 45)
		require.GreaterOrEqual(t, v, -45.0)
		require.Less(t, v, 45.0)
	}
}

func TestUniformBitFollowsFloat(t *testing.T) {
	a := NewUniform(42)
	b := NewUniform(42)
	for i := 0; i < 1000; i++ {
		want := 0
		if b.Float64() > 0.5 {
			want = 1
		}
		require.Equal(t, want, a.Bit())
	}
}

func TestUniformStateRoundTrip(t *testing.T) {
	u := NewUniform(5)
	for i := 0; i < 17; i++ {
		u.Float64()
	}
	state, err := u.MarshalBinary()
	require.NoError(t, err)

	want := u.Float64()

	restored := NewUniform(0)
	require.NoError(t, restored.UnmarshalBinary(state))
	assert.Equal(t, want, restored.Float64())
}

func TestSkewedPhaseBoundaries(t *testing.T) {
	// With bias 0.5 the biased phases are deterministic: phase two always
	// yields 1 and phase three always yields 0.
	s := NewSkewed(1, 0.5)
	s.SetTrialCount(100) // 200 bit draws

	bits := make([]int, 200)
	for i := range bits {
		bits[i] = s.Bit()
	}

	for i := 56; i < 104; i++ {
		require.Equal(t, 1, bits[i], "draw %d should be in the 1-biased phase", i)
	}
	for i := 104; i < 146; i++ {
		require.Equal(t, 0, bits[i], "draw %d should be in the 0-biased phase", i)
	}

	// Reset restarts the schedule.
	s.SetTrialCount(100)
	assert.Equal(t, 0.0, s.Position())
}

func TestSkewedPhaseFrequencies(t *testing.T) {
	const trials = 100000
	s := NewSkewed(1234, 0.16)
	s.SetTrialCount(trials)

	var ones, total [4]int
	for i := 0; i < 2*trials; i++ {
		per := s.Position()
		phase := 3
		switch {
		case per < 28:
			phase = 0
		case per < 52:
			phase = 1
		case per < 73:
			phase = 2
		}
		ones[phase] += s.Bit()
		total[phase]++
	}

	want := [4]float64{0.5, 0.66, 0.34, 0.5}
	for p := range want {
		got := float64(ones[p]) / float64(total[p])
		assert.InDelta(t, want[p], got, 0.02, "phase %d", p)
	}
}

func TestSkewedStateRoundTrip(t *testing.T) {
	s := NewSkewed(3, 0.2)
	s.SetTrialCount(50)
	for i := 0; i < 30; i++ {
		s.Bit()
	}
	state, err := s.MarshalBinary()
	require.NoError(t, err)

	restored := NewSkewed(0, 0.2)
	require.NoError(t, restored.UnmarshalBinary(state))
	assert.Equal(t, s.Position(), restored.Position())
	for i := 0; i < 40; i++ {
		require.Equal(t, s.Bit(), restored.Bit())
	}

	assert.Error(t, restored.UnmarshalBinary([]byte{1, 2}))
}

func TestNew(t *testing.T) {
	src, err := New(Config{Kind: KindSkewed, Bias: 0.1}, 1)
	require.NoError(t, err)
	_, ok := src.(*Skewed)
	assert.True(t, ok)

	src, err = New(Config{}, 1)
	require.NoError(t, err)
	_, ok = src.(*Uniform)
	assert.True(t, ok)

	_, err = New(Config{Kind: "gaussian"}, 1)
	assert.Error(t, err)
	_, err = New(Config{Kind: KindSkewed, Bias: 0.7}, 1)
	assert.Error(t, err)
}

func TestDeriveSeed(t *testing.T) {
	seen := make(map[int64]bool)
	for i := uint64(0); i < 1000; i++ {
		s := DeriveSeed(1234, i)
		require.False(t, seen[s], "collision at index %d", i)
		seen[s] = true
	}
	assert.Equal(t, DeriveSeed(1, 2), DeriveSeed(1, 2))
	assert.NotEqual(t, DeriveSeed(1, 2), DeriveSeed(2, 2))
}
