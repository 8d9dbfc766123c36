package inequality

import (
	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/models"
)

// CH is the Clauser-Horne inequality
//
//	J = N(a,b) - N(a,b') + N(a',b) + N(a',b') - S(a') - S(b) <= 0
//
// where N counts coincidences and S counts + outcomes on one side.
type CH struct{}

func (CH) Name() string { return "ch" }

func (CH) PreferredAngles() models.Angles {
	return models.Angles{A: [2]float64{0, 45}, B: [2]float64{-180 / 16.0, 180 / 16.0}}
}

func (CH) Bound() float64 { return 0 }

func (CH) IsBroken(v float64) bool { return v > 0 }

func (CH) Compute(c *counts.Counts) float64 {
	return float64(c.SameOutcome(0, 0) - c.SameOutcome(0, 1) + c.SameOutcome(1, 0) + c.SameOutcome(1, 1) -
		c.SingleA(1) - c.SingleB(0))
}

func (ch CH) Describe(c *counts.Counts) Breakdown {
	j := ch.Compute(c)
	return Breakdown{
		{"N11", float64(c.SameOutcome(0, 0))},
		{"N12", float64(c.SameOutcome(0, 1))},
		{"N21", float64(c.SameOutcome(1, 0))},
		{"N22", float64(c.SameOutcome(1, 1))},
		{"single A'", float64(c.SingleA(1))},
		{"single B", float64(c.SingleB(0))},
		{"J", j},
		{"J (prob)", perTrial(j, c)},
	}
}
