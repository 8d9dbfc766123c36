// Package rng provides the seedable random sources that drive a simulation.
//
// Every engine owns its own Source. Nothing in lhvsim reads a process-wide
// generator, so two engines with the same seed replay the same stream and
// parallel search workers never share state.
package rng

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/nvandessel/lhvsim/internal/constants"
)

// Source is a seedable uniform random generator.
type Source interface {
	// Seed resets the stream deterministically.
	Seed(seed int64)

	// Float64 returns a uniform value in [0,1).
	Float64() float64

	// Range returns a uniform value in [lo,hi).
	Range(lo, hi float64) float64

	// Bit returns 1 when Float64() > 0.5, else 0.
	Bit() int

	// SetTrialCount announces the length of the next run. Sources that
	// depend on run position reset their position counter.
	SetTrialCount(n int)

	// MarshalBinary and UnmarshalBinary capture the exact stream position.
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Kind names a Source implementation.
type Kind string

const (
	KindUniform Kind = "uniform"
	KindSkewed  Kind = "skewed"
)

// Config selects and parameterizes a Source.
type Config struct {
	Kind Kind    `json:"kind" yaml:"kind"`
	Bias float64 `json:"bias" yaml:"bias"`
}

// DefaultConfig returns an unbiased source configuration.
func DefaultConfig() Config {
	return Config{Kind: KindUniform, Bias: constants.DefaultSkewBias}
}

// Validate checks the kind and the bias range.
func (c Config) Validate() error {
	switch Kind(strings.ToLower(string(c.Kind))) {
	case "", KindUniform, KindSkewed:
	default:
		return fmt.Errorf("invalid rng kind: %q (valid: uniform, skewed)", c.Kind)
	}
	if c.Bias < 0 || c.Bias > 0.5 {
		return fmt.Errorf("rng bias must be between 0 and 0.5, got %f", c.Bias)
	}
	return nil
}

// Equivalent reports whether c and o build the same kind of stream. An
// empty kind means uniform, and the bias only matters to the skewed source.
func (c Config) Equivalent(o Config) bool {
	k1, k2 := c.kind(), o.kind()
	if k1 != k2 {
		return false
	}
	return k1 != KindSkewed || c.Bias == o.Bias
}

func (c Config) kind() Kind {
	k := Kind(strings.ToLower(string(c.Kind)))
	if k == "" {
		return KindUniform
	}
	return k
}

// New builds a seeded Source from cfg.
func New(cfg Config, seed int64) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.kind() {
	case KindSkewed:
		return NewSkewed(seed, cfg.Bias), nil
	default:
		return NewUniform(seed), nil
	}
}

// streamID selects the PCG stream; fixed so a seed alone determines output.
const streamID = 0x9e3779b97f4a7c15

// Uniform is an unbiased Source backed by a PCG generator.
type Uniform struct {
	pcg *rand.PCG
	r   *rand.Rand
}

// NewUniform creates a Uniform source seeded with seed.
func NewUniform(seed int64) *Uniform {
	pcg := rand.NewPCG(uint64(seed), streamID)
	return &Uniform{pcg: pcg, r: rand.New(pcg)}
}

func (u *Uniform) Seed(seed int64) {
	u.pcg.Seed(uint64(seed), streamID)
}

func (u *Uniform) Float64() float64 {
	return u.r.Float64()
}

func (u *Uniform) Range(lo, hi float64) float64 {
	return u.r.Float64()*(hi-lo) + lo
}

func (u *Uniform) Bit() int {
	if u.Float64() > 0.5 {
		return 1
	}
	return 0
}

// SetTrialCount is a no-op; the uniform stream does not depend on position.
func (u *Uniform) SetTrialCount(int) {}

func (u *Uniform) MarshalBinary() ([]byte, error) {
	return u.pcg.MarshalBinary()
}

func (u *Uniform) UnmarshalBinary(data []byte) error {
	if err := u.pcg.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("restoring pcg state: %w", err)
	}
	return nil
}

// DeriveSeed mixes a base seed with an index into an independent seed
// (splitmix64). Search candidates and replicate runs use it so every unit
// of work has its own reproducible stream regardless of scheduling.
func DeriveSeed(base int64, index uint64) int64 {
	z := uint64(base) + (index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
