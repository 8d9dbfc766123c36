package inequality

import (
	"math"

	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/models"
)

// Guistina2015 is the inequality of the 2015 loophole-free experiment:
//
//	J = both(a,b) - onlyA(a,b') - onlyB(a',b) - both(a',b') <= 0
type Guistina2015 struct{}

func (Guistina2015) Name() string { return "guistina" }

func (Guistina2015) PreferredAngles() models.Angles {
	return models.Angles{A: [2]float64{0, 1}, B: [2]float64{2, -39}}
}

func (Guistina2015) Bound() float64 { return 0 }

func (Guistina2015) IsBroken(v float64) bool { return v > 0 }

func (Guistina2015) terms(c *counts.Counts) [4]float64 {
	return [4]float64{
		float64(c.BothDetected(0, 0)),
		float64(c.OnlyA(0, 1)),
		float64(c.OnlyB(1, 0)),
		float64(c.BothDetected(1, 1)),
	}
}

func (g Guistina2015) Compute(c *counts.Counts) float64 {
	t := g.terms(c)
	return t[0] - t[1] - t[2] - t[3]
}

func (g Guistina2015) Describe(c *counts.Counts) Breakdown {
	t := g.terms(c)
	j := t[0] - t[1] - t[2] - t[3]
	return Breakdown{
		{"N11 both", t[0]},
		{"N12 only A", t[1]},
		{"N21 only B", t[2]},
		{"N22 both", t[3]},
		{"J", j},
		{"J (prob)", perTrial(j, c)},
	}
}

// Guistina2015Fair rescales each Guistina term by
// totalTrials / trials(combination) so that setting combinations drawn
// more often than others do not dominate J.
type Guistina2015Fair struct{}

func (Guistina2015Fair) Name() string { return "guistina-fair" }

func (Guistina2015Fair) PreferredAngles() models.Angles { return Guistina2015{}.PreferredAngles() }

func (Guistina2015Fair) Bound() float64 { return 0 }

func (Guistina2015Fair) IsBroken(v float64) bool { return v > 0 }

// weights returns totalTrials/trials(a,b) for the four term combinations
// in term order; an empty combination yields NaN.
func (Guistina2015Fair) weights(c *counts.Counts) [4]float64 {
	combos := [4][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	var w [4]float64
	for i, ab := range combos {
		n := c.Trials(ab[0], ab[1])
		if n == 0 {
			w[i] = math.NaN()
			continue
		}
		w[i] = float64(c.TotalTrials()) / float64(n)
	}
	return w
}

func (f Guistina2015Fair) scaled(c *counts.Counts) [4]float64 {
	t := Guistina2015{}.terms(c)
	w := f.weights(c)
	for i := range t {
		t[i] *= w[i]
	}
	return t
}

func (f Guistina2015Fair) Compute(c *counts.Counts) float64 {
	t := f.scaled(c)
	return t[0] - t[1] - t[2] - t[3]
}

func (f Guistina2015Fair) Describe(c *counts.Counts) Breakdown {
	w := f.weights(c)
	t := f.scaled(c)
	j := t[0] - t[1] - t[2] - t[3]
	return Breakdown{
		{"w11", w[0]},
		{"w12", w[1]},
		{"w21", w[2]},
		{"w22", w[3]},
		{"N11 both (fair)", t[0]},
		{"N12 only A (fair)", t[1]},
		{"N21 only B (fair)", t[2]},
		{"N22 both (fair)", t[3]},
		{"J", j},
		{"J (prob)", perTrial(j, c)},
	}
}
