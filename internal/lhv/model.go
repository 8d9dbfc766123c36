// Package lhv implements local-hidden-variable measurement models.
//
// A Model maps a detector angle and the shared hidden variable λ of a pair
// onto an outcome. Models keep no per-trial state; any randomness they need
// is drawn from the Source the engine passes in.
package lhv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/lhvsim/internal/constants"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// ErrUnknownModel is returned by New for an unrecognized model name.
var ErrUnknownModel = errors.New("unknown model")

// Model computes the outcome of one measurement.
//
// MeasureA and MeasureB may differ so that asymmetric models are possible.
// The engine decides which one each side uses.
type Model interface {
	Name() string
	MeasureA(angleDeg, lambda float64, src rng.Source) models.Outcome
	MeasureB(angleDeg, lambda float64, src rng.Source) models.Outcome
}

// Options holds model-specific knobs.
type Options struct {
	// Gated makes the Wang model draw against its probability factor
	// instead of detecting every in-band photon.
	Gated bool `json:"gated" yaml:"gated"`

	// Strength is k of the trivial model. Zero means the default.
	Strength float64 `json:"strength" yaml:"strength"`
}

// Names lists the models New understands.
func Names() []string {
	return []string{"wang", "trivial", "null"}
}

// New returns the model registered under name. Matching is by prefix, so
// "W" and "Wang" both select the Wang model.
func New(name string, settings models.Settings, opts Options) (Model, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "":
		return nil, fmt.Errorf("%w: empty name", ErrUnknownModel)
	case strings.HasPrefix(n, "w"):
		return &Wang{Efficiency: settings.EntanglementEfficiency, Gated: opts.Gated}, nil
	case strings.HasPrefix(n, "t"):
		k := opts.Strength
		if k == 0 {
			k = constants.DefaultTrivialStrength
		}
		return &Trivial{Strength: k}, nil
	case strings.HasPrefix(n, "n"):
		return Null{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownModel, name, strings.Join(Names(), ", "))
	}
}

// OptionsOf returns the knobs m was built with, so that a saved run can
// rebuild the same model.
func OptionsOf(m Model) Options {
	switch m := m.(type) {
	case *Wang:
		return Options{Gated: m.Gated}
	case *Trivial:
		return Options{Strength: m.Strength}
	default:
		return Options{}
	}
}

// Null never detects anything.
type Null struct{}

func (Null) Name() string { return "null" }

func (Null) MeasureA(float64, float64, rng.Source) models.Outcome { return models.NoDetection }

func (Null) MeasureB(float64, float64, rng.Source) models.Outcome { return models.NoDetection }

// Constant always returns the same outcome on both sides.
type Constant struct {
	Outcome models.Outcome
}

func (c Constant) Name() string { return "constant" }

func (c Constant) MeasureA(float64, float64, rng.Source) models.Outcome { return c.Outcome }

func (c Constant) MeasureB(float64, float64, rng.Source) models.Outcome { return c.Outcome }
