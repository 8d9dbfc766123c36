package inequality

import (
	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/models"
)

// CHSH is S = c(a,b) - c(a,b') + c(a',b) + c(a',b') <= 2, with c the
// fraction of both-detected trials whose outcomes agree.
type CHSH struct{}

func (CHSH) Name() string { return "chsh" }

func (CHSH) PreferredAngles() models.Angles {
	return models.Angles{A: [2]float64{0, 90}, B: [2]float64{45, 135}}
}

func (CHSH) Bound() float64 { return 2 }

func (CHSH) IsBroken(v float64) bool { return v > 2 }

func (CHSH) Compute(c *counts.Counts) float64 {
	return c.Corr(0, 0) - c.Corr(0, 1) + c.Corr(1, 0) + c.Corr(1, 1)
}

func (s CHSH) Describe(c *counts.Counts) Breakdown {
	return Breakdown{
		{"c11", c.Corr(0, 0)},
		{"c12", c.Corr(0, 1)},
		{"c21", c.Corr(1, 0)},
		{"c22", c.Corr(1, 1)},
		{"S", s.Compute(c)},
	}
}
