package rng

import (
	"encoding/binary"
	"fmt"

	"github.com/nvandessel/lhvsim/internal/constants"
)

// Skewed is a Source whose Bit() is biased according to the position
// within the run, to probe whether time-correlated setting bias changes
// the measured violation:
//
//	  0% - 28%  unbiased
//	 28% - 52%  1 with probability 0.5+bias
//	 52% - 73%  0 with probability 0.5+bias
//	 73% - 100% unbiased
//
// Position is measured in Bit() draws, constants.BitsPerTrial per trial.
// Float64 and Range are not biased.
type Skewed struct {
	*Uniform
	bias    float64
	trials  int
	counter int
}

// NewSkewed creates a Skewed source.
func NewSkewed(seed int64, bias float64) *Skewed {
	return &Skewed{Uniform: NewUniform(seed), bias: bias}
}

// SetTrialCount sets the run length and resets the position counter.
func (s *Skewed) SetTrialCount(n int) {
	s.trials = n
	s.counter = 0
}

// Position returns the percent of the run that has been drawn so far.
func (s *Skewed) Position() float64 {
	if s.trials <= 0 {
		return 0
	}
	return float64(s.counter) * 100.0 / float64(constants.BitsPerTrial*s.trials)
}

func (s *Skewed) Bit() int {
	per := s.Position()
	s.counter++

	r := s.Float64()
	switch {
	case per < constants.PhaseOneEnd:
		return unbiased(r)
	case per < constants.PhaseTwoEnd:
		if r < 0.5+s.bias {
			return 1
		}
		return 0
	case per < constants.PhaseThreeEnd:
		if r < 0.5+s.bias {
			return 0
		}
		return 1
	default:
		return unbiased(r)
	}
}

func unbiased(r float64) int {
	if r > 0.5 {
		return 1
	}
	return 0
}

// MarshalBinary appends the run position to the PCG state.
func (s *Skewed) MarshalBinary() ([]byte, error) {
	state, err := s.Uniform.MarshalBinary()
	if err != nil {
		return nil, err
	}
	state = binary.BigEndian.AppendUint64(state, uint64(s.trials))
	state = binary.BigEndian.AppendUint64(state, uint64(s.counter))
	return state, nil
}

func (s *Skewed) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("skewed state too short: %d bytes", len(data))
	}
	n := len(data) - 16
	if err := s.Uniform.UnmarshalBinary(data[:n]); err != nil {
		return err
	}
	s.trials = int(binary.BigEndian.Uint64(data[n:]))
	s.counter = int(binary.BigEndian.Uint64(data[n+8:]))
	return nil
}
