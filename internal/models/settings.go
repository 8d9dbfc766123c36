package models

import (
	"fmt"
	"strings"
)

// AngleMode selects how the engine produces hidden variables and detector
// settings when no setting pairs are supplied.
type AngleMode string

const (
	AngleModeRandom   AngleMode = "random"   // fresh random λ per trial
	AngleModeIterate  AngleMode = "iterate"  // λ swept 0..179 in 1° steps
	AngleModeSupplied AngleMode = "supplied" // settings come from a file
)

// Valid reports whether m is a known mode.
func (m AngleMode) Valid() bool {
	switch m {
	case AngleModeRandom, AngleModeIterate, AngleModeSupplied:
		return true
	default:
		return false
	}
}

// ParseAngleMode maps a user string onto an AngleMode. Only the first
// letter matters, so "r", "Random" and "RANDOMANGLES" are all accepted.
func ParseAngleMode(s string) (AngleMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "r"):
		return AngleModeRandom, nil
	case strings.HasPrefix(s, "i"):
		return AngleModeIterate, nil
	case strings.HasPrefix(s, "s"):
		return AngleModeSupplied, nil
	default:
		return "", fmt.Errorf("invalid angle mode: %q (valid: random, iterate, supplied)", s)
	}
}

// Angles holds the two detector angles (degrees) of each side.
// A[0] is a, A[1] is a'; B[0] is b, B[1] is b'.
type Angles struct {
	A [2]float64 `json:"a" yaml:"a"`
	B [2]float64 `json:"b" yaml:"b"`
}

// Distinct reports whether no two of the four angles coincide.
func (a Angles) Distinct() bool {
	all := [4]float64{a.A[0], a.A[1], a.B[0], a.B[1]}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i] == all[j] {
				return false
			}
		}
	}
	return true
}

// ShortString renders the quadruple the way search progress lines show it.
func (a Angles) ShortString() string {
	return fmt.Sprintf("A1, %g A2, %g B1, %g B2, %g", a.A[0], a.A[1], a.B[0], a.B[1])
}

// Settings is the immutable configuration of one experiment.
type Settings struct {
	Angles Angles `json:"angles" yaml:"angles"`

	// EntanglementEfficiency is r in the Wang model, in [0,1].
	EntanglementEfficiency float64 `json:"entanglement_efficiency" yaml:"entanglement_efficiency"`

	Seed   int64     `json:"seed" yaml:"seed"`
	Trials int       `json:"trials" yaml:"trials"`
	Mode   AngleMode `json:"mode" yaml:"mode"`
}

// WithAngles returns a copy of s using angles.
func (s Settings) WithAngles(angles Angles) Settings {
	s.Angles = angles
	return s
}

// WithSeed returns a copy of s using seed.
func (s Settings) WithSeed(seed int64) Settings {
	s.Seed = seed
	return s
}

// Validate checks ranges and enum values.
func (s Settings) Validate() error {
	if s.EntanglementEfficiency < 0 || s.EntanglementEfficiency > 1 {
		return fmt.Errorf("entanglement efficiency must be between 0 and 1, got %f", s.EntanglementEfficiency)
	}
	if s.Trials < 0 {
		return fmt.Errorf("trials must be non-negative, got %d", s.Trials)
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("invalid angle mode: %q", s.Mode)
	}
	return nil
}
