package analysis

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvandessel/lhvsim/internal/counts"
)

// DefaultAlpha is the significance level of the uniformity check.
const DefaultAlpha = 0.01

// Uniformity is a chi-square goodness-of-fit test of the four setting
// combinations against equal frequencies. A biased source makes some
// combinations more frequent, which inflates inequalities that do not
// correct for it.
type Uniformity struct {
	Observed  [4]int  `json:"observed"` // (a,b), (a,b'), (a',b), (a',b')
	Expected  float64 `json:"expected"`
	ChiSquare float64 `json:"chi_square"`
	PValue    float64 `json:"p_value"`
	Alpha     float64 `json:"alpha"`
	Uniform   bool    `json:"uniform"`
}

// CheckUniformity tests the setting combinations of c at alpha (0
// selects DefaultAlpha). Empty counts are reported as uniform.
func CheckUniformity(c *counts.Counts, alpha float64) Uniformity {
	return CheckObserved([4]int{c.Trials(0, 0), c.Trials(0, 1), c.Trials(1, 0), c.Trials(1, 1)}, alpha)
}

// CheckObserved runs the same test over raw combination counts, such as
// the sum over several replicas.
func CheckObserved(observed [4]int, alpha float64) Uniformity {
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	u := Uniformity{
		Observed: observed,
		Alpha:    alpha,
		PValue:   1,
		Uniform:  true,
	}
	total := 0
	for _, o := range observed {
		total += o
	}
	if total == 0 {
		return u
	}

	u.Expected = float64(total) / 4
	for _, o := range u.Observed {
		d := float64(o) - u.Expected
		u.ChiSquare += d * d / u.Expected
	}
	u.PValue = 1 - distuv.ChiSquared{K: 3}.CDF(u.ChiSquare)
	u.Uniform = u.PValue >= alpha
	return u
}
