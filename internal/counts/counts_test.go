package counts

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBuckets(t *testing.T) {
	tests := []struct {
		name       string
		outA, outB models.Outcome
		check      func(t *testing.T, c *Counts)
	}{
		{"neither", models.NoDetection, models.NoDetection, func(t *testing.T, c *Counts) {
			assert.Equal(t, 1, c.Neither(0, 1))
			assert.Zero(t, c.BothDetected(0, 1))
		}},
		{"only A", models.Plus, models.NoDetection, func(t *testing.T, c *Counts) {
			assert.Equal(t, 1, c.OnlyA(0, 1))
			assert.Equal(t, 1, c.SingleA(0))
			assert.Zero(t, c.Neither(0, 1))
		}},
		{"only B", models.NoDetection, models.Zero, func(t *testing.T, c *Counts) {
			assert.Equal(t, 1, c.OnlyB(0, 1))
			assert.Zero(t, c.SingleB(1), "zero outcome is not a single")
		}},
		{"plus plus", models.Plus, models.Plus, func(t *testing.T, c *Counts) {
			assert.Equal(t, 1, c.BothDetected(0, 1))
			assert.Equal(t, 1, c.SameOutcome(0, 1))
			assert.Equal(t, 1, c.PlusPlus(0, 1))
			assert.Equal(t, 1, c.SingleA(0))
			assert.Equal(t, 1, c.SingleB(1))
		}},
		{"plus zero", models.Plus, models.Zero, func(t *testing.T, c *Counts) {
			assert.Equal(t, 1, c.PlusZero(0, 1))
			assert.Zero(t, c.SameOutcome(0, 1))
		}},
		{"zero plus", models.Zero, models.Plus, func(t *testing.T, c *Counts) {
			assert.Equal(t, 1, c.ZeroPlus(0, 1))
		}},
		{"zero zero", models.Zero, models.Zero, func(t *testing.T, c *Counts) {
			assert.Equal(t, 1, c.SameOutcome(0, 1))
			assert.Zero(t, c.PlusPlus(0, 1)+c.PlusZero(0, 1)+c.ZeroPlus(0, 1))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Record(0, 1, tt.outA, tt.outB)
			assert.Equal(t, 1, c.TotalTrials())
			assert.Equal(t, 1, c.Trials(0, 1))
			tt.check(t, c)
		})
	}
}

func TestRecordInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	outcomes := []models.Outcome{models.NoDetection, models.Zero, models.Plus}

	c := New()
	const n = 5000
	for i := 0; i < n; i++ {
		c.Record(r.IntN(2), r.IntN(2), outcomes[r.IntN(3)], outcomes[r.IntN(3)])
	}

	require.Equal(t, n, c.TotalTrials())
	sumTrials, sumBoth := 0, 0
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			both := c.BothDetected(a, b)
			assert.GreaterOrEqual(t, both, c.SameOutcome(a, b))
			assert.GreaterOrEqual(t, c.SameOutcome(a, b), 0)
			assert.GreaterOrEqual(t, both, c.PlusPlus(a, b)+c.PlusZero(a, b)+c.ZeroPlus(a, b))
			assert.GreaterOrEqual(t, c.Neither(a, b), 0)
			assert.Equal(t, c.Trials(a, b), both+c.OnlyA(a, b)+c.OnlyB(a, b)+c.Neither(a, b))
			sumTrials += c.Trials(a, b)
			sumBoth += both
		}
	}
	assert.Equal(t, c.TotalTrials(), sumTrials)
	assert.Equal(t, c.BothDetectedTotal(), sumBoth)
	assert.Equal(t, c.SingleA(0)+c.SingleA(1), c.SingleATotal())
	assert.Equal(t, c.SingleB(0)+c.SingleB(1), c.SingleBTotal())
	require.NoError(t, c.State().Validate())
}

func TestEmptyCountsYieldNaN(t *testing.T) {
	c := New()
	assert.True(t, math.IsNaN(c.PercentBothDetected()))
	assert.True(t, math.IsNaN(c.PercentSingleA()))
	assert.True(t, math.IsNaN(c.Corr(1, 1)))

	c.Record(0, 0, models.Plus, models.NoDetection)
	assert.InDelta(t, 100.0, c.PercentSingleA(), 1e-12)
	assert.InDelta(t, 0.0, c.PercentBothDetected(), 1e-12)
	assert.True(t, math.IsNaN(c.Corr(0, 0)), "no both-detected trials")
}

func TestCorrAndPercent(t *testing.T) {
	c := New()
	c.Record(1, 0, models.Plus, models.Plus)
	c.Record(1, 0, models.Zero, models.Zero)
	c.Record(1, 0, models.Zero, models.Plus)
	c.Record(1, 0, models.NoDetection, models.Plus)

	assert.InDelta(t, 2.0/3.0, c.Corr(1, 0), 1e-12)
	assert.InDelta(t, 75.0, c.PercentBothDetected(), 1e-12)
	assert.InDelta(t, 50.0, c.CoincidencePercent(1, 0), 1e-12)
	assert.InDelta(t, 25.0, c.PlusPlusPercent(1, 0), 1e-12)
	assert.InDelta(t, 75.0, c.PercentSingleB(), 1e-12)
}

func TestResetReusesStorage(t *testing.T) {
	c := New()
	c.Record(1, 1, models.Plus, models.Plus)
	before := c

	c.Reset()
	assert.Same(t, before, c)
	assert.Zero(t, c.TotalTrials())
	assert.Zero(t, c.SingleATotal())
	assert.Equal(t, State{}, c.State())
}

func TestStateRoundTrip(t *testing.T) {
	c := New()
	c.Record(0, 0, models.Plus, models.Plus)
	c.Record(0, 1, models.Plus, models.Zero)
	c.Record(1, 0, models.NoDetection, models.Plus)
	c.Record(1, 1, models.Zero, models.NoDetection)
	c.Record(1, 1, models.NoDetection, models.NoDetection)

	data, err := json.Marshal(c.State())
	require.NoError(t, err)

	var s State
	require.NoError(t, json.Unmarshal(data, &s))
	restored, err := FromState(s)
	require.NoError(t, err)
	assert.Equal(t, c, restored)

	// Recording continues from the restored totals.
	restored.Record(0, 0, models.Zero, models.Zero)
	assert.Equal(t, 6, restored.TotalTrials())
	assert.Equal(t, 2, restored.SameOutcome(0, 0))
}

func TestStateValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *State)
	}{
		{"negative counter", func(s *State) { s.OnlyA[0][1] = -1 }},
		{"same above both", func(s *State) { s.SameOutcome[0][0] = 5 }},
		{"pairs above both", func(s *State) { s.PlusZero[0][0] = 5 }},
		{"detections above trials", func(s *State) { s.OnlyB[1][1] = 9 }},
		{"total mismatch", func(s *State) { s.TotalTrials = 99 }},
		{"both total mismatch", func(s *State) { s.BothDetectedTotal = 99 }},
		{"negative single", func(s *State) { s.SingleB[1] = -3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Record(0, 0, models.Plus, models.Plus)
			s := c.State()
			tt.mutate(&s)
			_, err := FromState(s)
			assert.Error(t, err)
		})
	}
}
