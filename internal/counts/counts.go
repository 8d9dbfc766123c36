// Package counts accumulates the results of paired measurements per
// detector-setting combination.
//
// Every recorded trial lands in exactly one of four buckets for its
// (settingA, settingB) combination: neither detected (implicit), only A,
// only B, or both. Both-detected trials are further split by outcome pair.
// All percentage and correlation accessors return NaN when their
// denominator is zero; callers check TotalTrials before trusting them.
package counts

import (
	"math"

	"github.com/nvandessel/lhvsim/internal/models"
)

// grid is a counter per (settingA, settingB) combination.
type grid [2][2]int

func (g *grid) sum() int {
	return g[0][0] + g[0][1] + g[1][0] + g[1][1]
}

// Counts is the mutable accumulator of one experiment.
type Counts struct {
	trials       grid
	bothDetected grid
	sameOutcome  grid
	plusPlus     grid
	plusZero     grid
	zeroPlus     grid
	onlyA        grid
	onlyB        grid

	singleA [2]int
	singleB [2]int

	totalTrials       int
	bothDetectedTotal int
}

// New returns an empty accumulator.
func New() *Counts {
	return &Counts{}
}

// Reset zeroes every counter in place so the storage can be reused.
func (c *Counts) Reset() {
	*c = Counts{}
}

// Record adds the outcome of one trial. Settings must be 0 or 1; the
// engine validates supplied pairs before recording them.
func (c *Counts) Record(a, b int, outA, outB models.Outcome) {
	c.totalTrials++
	c.trials[a][b]++

	if outA == models.Plus {
		c.singleA[a]++
	}
	if outB == models.Plus {
		c.singleB[b]++
	}

	detA, detB := outA.Detected(), outB.Detected()
	switch {
	case !detA && !detB:
		// neither detected: only visible through trials[a][b]
	case !detB:
		c.onlyA[a][b]++
	case !detA:
		c.onlyB[a][b]++
	default:
		c.bothDetected[a][b]++
		c.bothDetectedTotal++
		if outA == outB {
			c.sameOutcome[a][b]++
		}
		switch {
		case outA == models.Plus && outB == models.Plus:
			c.plusPlus[a][b]++
		case outA == models.Plus && outB == models.Zero:
			c.plusZero[a][b]++
		case outA == models.Zero && outB == models.Plus:
			c.zeroPlus[a][b]++
		}
	}
}

// TotalTrials is the number of recorded trials, detections or not.
func (c *Counts) TotalTrials() int { return c.totalTrials }

// BothDetectedTotal is the number of trials with a detection on both sides.
func (c *Counts) BothDetectedTotal() int { return c.bothDetectedTotal }

// Trials is the number of trials recorded for a setting combination.
func (c *Counts) Trials(a, b int) int { return c.trials[a][b] }

// BothDetected counts trials where both sides registered an outcome.
func (c *Counts) BothDetected(a, b int) int { return c.bothDetected[a][b] }

// SameOutcome counts coincidences: both detected with equal outcomes.
func (c *Counts) SameOutcome(a, b int) int { return c.sameOutcome[a][b] }

// PlusPlus counts both-detected trials with outcome pair (+,+).
func (c *Counts) PlusPlus(a, b int) int { return c.plusPlus[a][b] }

// PlusZero counts both-detected trials with outcome pair (+,0).
func (c *Counts) PlusZero(a, b int) int { return c.plusZero[a][b] }

// ZeroPlus counts both-detected trials with outcome pair (0,+).
func (c *Counts) ZeroPlus(a, b int) int { return c.zeroPlus[a][b] }

// OnlyA counts trials where A detected and B did not.
func (c *Counts) OnlyA(a, b int) int { return c.onlyA[a][b] }

// OnlyB counts trials where B detected and A did not.
func (c *Counts) OnlyB(a, b int) int { return c.onlyB[a][b] }

// Neither counts trials where no side detected anything.
func (c *Counts) Neither(a, b int) int {
	return c.trials[a][b] - c.bothDetected[a][b] - c.onlyA[a][b] - c.onlyB[a][b]
}

// SingleA counts + outcomes at A with setting a, whatever B measured.
func (c *Counts) SingleA(a int) int { return c.singleA[a] }

// SingleB counts + outcomes at B with setting b, whatever A measured.
func (c *Counts) SingleB(b int) int { return c.singleB[b] }

// SingleATotal counts + outcomes at A over both settings.
func (c *Counts) SingleATotal() int { return c.singleA[0] + c.singleA[1] }

// SingleBTotal counts + outcomes at B over both settings.
func (c *Counts) SingleBTotal() int { return c.singleB[0] + c.singleB[1] }

// OnlyATotal counts one-sided A detections over all combinations.
func (c *Counts) OnlyATotal() int { return c.onlyA.sum() }

// OnlyBTotal counts one-sided B detections over all combinations.
func (c *Counts) OnlyBTotal() int { return c.onlyB.sum() }

// Corr is the fraction of both-detected trials with equal outcomes.
func (c *Counts) Corr(a, b int) float64 {
	return ratio(c.sameOutcome[a][b], c.bothDetected[a][b])
}

// Percent returns n as a percentage of all trials.
func (c *Counts) Percent(n int) float64 {
	return ratio(n, c.totalTrials) * 100
}

// PercentBothDetected is the percentage of trials detected on both sides.
func (c *Counts) PercentBothDetected() float64 { return c.Percent(c.bothDetectedTotal) }

// PercentSingleA is the percentage of trials with a + outcome at A.
func (c *Counts) PercentSingleA() float64 { return c.Percent(c.SingleATotal()) }

// PercentSingleB is the percentage of trials with a + outcome at B.
func (c *Counts) PercentSingleB() float64 { return c.Percent(c.SingleBTotal()) }

// CoincidencePercent is SameOutcome(a,b) as a percentage of all trials.
func (c *Counts) CoincidencePercent(a, b int) float64 { return c.Percent(c.sameOutcome[a][b]) }

// PlusPlusPercent is PlusPlus(a,b) as a percentage of all trials.
func (c *Counts) PlusPlusPercent(a, b int) float64 { return c.Percent(c.plusPlus[a][b]) }

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}
