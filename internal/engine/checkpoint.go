package engine

import (
	"fmt"

	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/entangle"
	"github.com/nvandessel/lhvsim/internal/lhv"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// Checkpoint is everything needed to continue a run in a later process:
// the settings, the measurement policy, the accumulated counts and the
// exact random stream position.
type Checkpoint struct {
	Settings     models.Settings `json:"settings"`
	Model        string          `json:"model"`
	ModelOptions lhv.Options     `json:"model_options"`
	Inequality   string          `json:"inequality"`
	Symmetric    bool            `json:"symmetric"`
	Source       rng.Config      `json:"source"`
	Entangler    entangle.Config `json:"entangler"`
	Counts       counts.State    `json:"counts"`
	RNG          []byte          `json:"rng"`
}

// Checkpoint captures the current state.
func (e *Engine) Checkpoint() (Checkpoint, error) {
	state, err := e.src.MarshalBinary()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("capturing random source state: %w", err)
	}
	return Checkpoint{
		Settings:     e.settings,
		Model:        e.model.Name(),
		ModelOptions: lhv.OptionsOf(e.model),
		Inequality:   e.ineq.Name(),
		Symmetric:    e.opts.Symmetric,
		Source:       e.opts.RNG,
		Entangler:    e.opts.Entangler,
		Counts:       e.counts.State(),
		RNG:          state,
	}, nil
}

// Resume loads cp so that the next Run with continueRun set picks up
// where the checkpointed engine stopped. The checkpoint must come from
// the same model, inequality, angles, efficiency and measurement policy.
func (e *Engine) Resume(cp Checkpoint) error {
	if cp.Model != e.model.Name() {
		return fmt.Errorf("checkpoint model %q does not match %q", cp.Model, e.model.Name())
	}
	if opts := lhv.OptionsOf(e.model); cp.ModelOptions != opts {
		return fmt.Errorf("checkpoint model options %+v do not match %+v", cp.ModelOptions, opts)
	}
	if cp.Inequality != e.ineq.Name() {
		return fmt.Errorf("checkpoint inequality %q does not match %q", cp.Inequality, e.ineq.Name())
	}
	if cp.Settings.Angles != e.settings.Angles {
		return fmt.Errorf("checkpoint angles %s do not match %s",
			cp.Settings.Angles.ShortString(), e.settings.Angles.ShortString())
	}
	if cp.Settings.EntanglementEfficiency != e.settings.EntanglementEfficiency {
		return fmt.Errorf("checkpoint efficiency %g does not match %g",
			cp.Settings.EntanglementEfficiency, e.settings.EntanglementEfficiency)
	}
	if cp.Symmetric != e.opts.Symmetric {
		return fmt.Errorf("checkpoint symmetric=%t does not match symmetric=%t", cp.Symmetric, e.opts.Symmetric)
	}
	if !cp.Source.Equivalent(e.opts.RNG) {
		return fmt.Errorf("checkpoint random source %+v does not match %+v", cp.Source, e.opts.RNG)
	}
	if cp.Entangler != e.opts.Entangler {
		return fmt.Errorf("checkpoint entangler %+v does not match %+v", cp.Entangler, e.opts.Entangler)
	}

	c, err := counts.FromState(cp.Counts)
	if err != nil {
		return fmt.Errorf("invalid checkpoint counts: %w", err)
	}
	if err := e.src.UnmarshalBinary(cp.RNG); err != nil {
		return fmt.Errorf("restoring random source state: %w", err)
	}
	e.counts = c
	e.settings.Seed = cp.Settings.Seed
	return nil
}
