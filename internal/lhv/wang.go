package lhv

import (
	"math"

	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// Wang is the closed-form LHV construction of F. Wang
// (arXiv:1411.6053), parameterized by the entanglement efficiency r.
type Wang struct {
	Efficiency float64

	// Gated draws src.Float64() <= factor before reporting an in-band
	// detection. When false every in-band photon with a positive factor
	// is detected.
	Gated bool
}

func (w *Wang) Name() string { return "wang" }

// MeasureA detects Plus in [angle, angle+90] and Zero otherwise.
//
// The NoDetection branch can only be reached for λ > 180, which the
// engine never produces.
func (w *Wang) MeasureA(angleDeg, lambda float64, _ rng.Source) models.Outcome {
	if lambda >= angleDeg && lambda <= angleDeg+90 {
		return models.Plus
	}
	if lambda >= angleDeg+90 || lambda <= 180 {
		return models.Zero
	}
	return models.NoDetection
}

// MeasureB detects Plus in [θ+, θ++90] and Zero in [θ-+90, θ-+180].
func (w *Wang) MeasureB(angleDeg, lambda float64, src rng.Source) models.Outcome {
	thetaPlus := w.ThetaPlus(angleDeg)
	thetaMinus := w.ThetaMinus(angleDeg)
	lrad := radians(lambda)

	if lambda >= thetaPlus && lambda <= thetaPlus+90 {
		factor := w.PbPlus(angleDeg) * math.Abs(math.Sin(2*(lrad-radians(thetaPlus))))
		if w.detect(factor, src) {
			return models.Plus
		}
		return models.NoDetection
	}
	if lambda >= thetaMinus+90 && lambda <= thetaMinus+180 {
		factor := w.PbMinus(angleDeg) * math.Abs(math.Sin(2*(lrad-radians(thetaMinus))))
		if w.detect(factor, src) {
			return models.Zero
		}
		return models.NoDetection
	}
	return models.NoDetection
}

func (w *Wang) detect(factor float64, src rng.Source) bool {
	if factor <= 0 {
		return false
	}
	if !w.Gated {
		return true
	}
	return src.Float64() <= factor
}

// PbPlus is (r²cos²β + sin²β) / (1+r²).
func (w *Wang) PbPlus(angleDeg float64) float64 {
	c, s := cosSin(angleDeg)
	r2 := w.Efficiency * w.Efficiency
	return (r2*c*c + s*s) / (1 + r2)
}

// PbMinus is (r²sin²β + cos²β) / (1+r²).
func (w *Wang) PbMinus(angleDeg float64) float64 {
	c, s := cosSin(angleDeg)
	r2 := w.Efficiency * w.Efficiency
	return (r2*s*s + c*c) / (1 + r2)
}

// ThetaPlus is ½·acos[(r²cos²β − sin²β) / (r²cos²β + sin²β)] in degrees.
func (w *Wang) ThetaPlus(angleDeg float64) float64 {
	c, s := cosSin(angleDeg)
	r2 := w.Efficiency * w.Efficiency
	t := (r2*c*c - s*s) / (r2*c*c + s*s)
	return halfAcos(t)
}

// ThetaMinus is ½·acos[(cos²β − r²sin²β) / (r²sin²β + cos²β)] in degrees.
func (w *Wang) ThetaMinus(angleDeg float64) float64 {
	c, s := cosSin(angleDeg)
	r2 := w.Efficiency * w.Efficiency
	t := (c*c - r2*s*s) / (r2*s*s + c*c)
	return halfAcos(t)
}

func cosSin(angleDeg float64) (float64, float64) {
	b := radians(angleDeg)
	return math.Cos(b), math.Sin(b)
}

// halfAcos is ½·acos(t) in degrees. Arguments that rounding pushes past
// ±1, and the 0/0 of r=0 at β=0, give NaN, which fails every band test
// and so reports no detection.
func halfAcos(t float64) float64 {
	return degrees(math.Acos(t) / 2)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
