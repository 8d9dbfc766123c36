// Package entangle models finite pair-production efficiency.
//
// Not every trial produces an entangled pair. The probability of a pair
// follows a four-phase schedule over the run:
//
//	  0% - 28%  eff / factor²
//	 28% - 52%  eff / factor
//	 52% - 73%  eff
//	 73% - 100% eff / factor
package entangle

import (
	"fmt"

	"github.com/nvandessel/lhvsim/internal/constants"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// Config configures an Entangler.
type Config struct {
	// Enabled turns the schedule on. A disabled entangler accepts every
	// pair without drawing from the source.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Efficiency is the base pair-production probability in [0,1].
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`

	// Factor divides Efficiency in the low-efficiency phases. Must be >= 1.
	Factor float64 `json:"factor" yaml:"factor"`
}

// DefaultConfig returns the schedule with eff=1.0 and factor=1.9.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Efficiency: constants.DefaultPairEfficiency,
		Factor:     constants.DefaultPairFactor,
	}
}

// Validate checks the configured ranges.
func (c Config) Validate() error {
	if c.Efficiency < 0 || c.Efficiency > 1 {
		return fmt.Errorf("pair efficiency must be between 0 and 1, got %f", c.Efficiency)
	}
	if c.Factor < 1 {
		return fmt.Errorf("pair factor must be at least 1, got %f", c.Factor)
	}
	return nil
}

// Entangler decides per trial whether a pair was created and entangled.
type Entangler struct {
	cfg     Config
	src     rng.Source
	trials  int
	counter int
}

// New creates an Entangler drawing from src.
func New(cfg Config, src rng.Source) *Entangler {
	return &Entangler{cfg: cfg, src: src}
}

// SetTrialCount sets the run length and resets the position counter.
func (e *Entangler) SetTrialCount(n int) {
	e.trials = n
	e.counter = 0
}

// Threshold returns the acceptance probability at run position per (percent).
func (e *Entangler) Threshold(per float64) float64 {
	eff, f := e.cfg.Efficiency, e.cfg.Factor
	switch {
	case per < constants.PhaseOneEnd:
		return eff / f / f
	case per < constants.PhaseTwoEnd:
		return eff / f
	case per < constants.PhaseThreeEnd:
		return eff
	default:
		return eff / f
	}
}

// AttemptPair advances the position by one trial and reports whether the
// pair was produced. It must be called exactly once per trial.
func (e *Entangler) AttemptPair() bool {
	if !e.cfg.Enabled {
		return true
	}
	e.counter++
	per := 100.0
	if e.trials > 0 {
		per = float64(e.counter) * 100.0 / float64(e.trials)
	}
	return e.src.Float64() < e.Threshold(per)
}

// Counter returns how many pairs have been attempted since SetTrialCount.
func (e *Entangler) Counter() int {
	return e.counter
}
