package lhv

import (
	"math"

	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// Trivial is a negative-control model: the detection probability is
// k·|sin(λ − angle)| and every detection off the zero of the sine reports
// Plus. It is symmetric, so MeasureA and MeasureB are identical.
type Trivial struct {
	Strength float64
}

func (t *Trivial) Name() string { return "trivial" }

func (t *Trivial) MeasureA(angleDeg, lambda float64, src rng.Source) models.Outcome {
	return t.measure(angleDeg, lambda, src)
}

func (t *Trivial) MeasureB(angleDeg, lambda float64, src rng.Source) models.Outcome {
	return t.measure(angleDeg, lambda, src)
}

func (t *Trivial) measure(angleDeg, lambda float64, src rng.Source) models.Outcome {
	s := math.Sin(radians(lambda - angleDeg))
	pdetect := t.Strength * math.Abs(s)
	if src.Float64() > pdetect {
		return models.NoDetection
	}
	// Both signs of the sine fold onto Plus; only sin(δ) == 0 reports Zero.
	if s == 0 {
		return models.Zero
	}
	return models.Plus
}
