package counts

import "fmt"

// State is the serializable form of Counts, used by run snapshots and
// the run history.
type State struct {
	Trials            [2][2]int `json:"trials"`
	BothDetected      [2][2]int `json:"both_detected"`
	SameOutcome       [2][2]int `json:"same_outcome"`
	PlusPlus          [2][2]int `json:"plus_plus"`
	PlusZero          [2][2]int `json:"plus_zero"`
	ZeroPlus          [2][2]int `json:"zero_plus"`
	OnlyA             [2][2]int `json:"only_a"`
	OnlyB             [2][2]int `json:"only_b"`
	SingleA           [2]int    `json:"single_a"`
	SingleB           [2]int    `json:"single_b"`
	TotalTrials       int       `json:"total_trials"`
	BothDetectedTotal int       `json:"both_detected_total"`
}

// State copies the counters into a State value.
func (c *Counts) State() State {
	return State{
		Trials:            c.trials,
		BothDetected:      c.bothDetected,
		SameOutcome:       c.sameOutcome,
		PlusPlus:          c.plusPlus,
		PlusZero:          c.plusZero,
		ZeroPlus:          c.zeroPlus,
		OnlyA:             c.onlyA,
		OnlyB:             c.onlyB,
		SingleA:           c.singleA,
		SingleB:           c.singleB,
		TotalTrials:       c.totalTrials,
		BothDetectedTotal: c.bothDetectedTotal,
	}
}

// FromState rebuilds Counts from s after checking its invariants.
func FromState(s State) (*Counts, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Counts{
		trials:            s.Trials,
		bothDetected:      s.BothDetected,
		sameOutcome:       s.SameOutcome,
		plusPlus:          s.PlusPlus,
		plusZero:          s.PlusZero,
		zeroPlus:          s.ZeroPlus,
		onlyA:             s.OnlyA,
		onlyB:             s.OnlyB,
		singleA:           s.SingleA,
		singleB:           s.SingleB,
		totalTrials:       s.TotalTrials,
		bothDetectedTotal: s.BothDetectedTotal,
	}, nil
}

// Validate checks the bookkeeping invariants of a State.
func (s State) Validate() error {
	sumTrials, sumBoth := 0, 0
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for name, v := range map[string]int{
				"trials": s.Trials[a][b], "both_detected": s.BothDetected[a][b],
				"same_outcome": s.SameOutcome[a][b], "plus_plus": s.PlusPlus[a][b],
				"plus_zero": s.PlusZero[a][b], "zero_plus": s.ZeroPlus[a][b],
				"only_a": s.OnlyA[a][b], "only_b": s.OnlyB[a][b],
			} {
				if v < 0 {
					return fmt.Errorf("%s[%d][%d] is negative: %d", name, a, b, v)
				}
			}
			if s.SameOutcome[a][b] > s.BothDetected[a][b] {
				return fmt.Errorf("same_outcome[%d][%d] exceeds both_detected", a, b)
			}
			if s.PlusPlus[a][b]+s.PlusZero[a][b]+s.ZeroPlus[a][b] > s.BothDetected[a][b] {
				return fmt.Errorf("outcome pairs[%d][%d] exceed both_detected", a, b)
			}
			if s.BothDetected[a][b]+s.OnlyA[a][b]+s.OnlyB[a][b] > s.Trials[a][b] {
				return fmt.Errorf("detections[%d][%d] exceed trials", a, b)
			}
			sumTrials += s.Trials[a][b]
			sumBoth += s.BothDetected[a][b]
		}
	}
	if sumTrials != s.TotalTrials {
		return fmt.Errorf("combination trials sum to %d, total is %d", sumTrials, s.TotalTrials)
	}
	if sumBoth != s.BothDetectedTotal {
		return fmt.Errorf("both_detected sums to %d, total is %d", sumBoth, s.BothDetectedTotal)
	}
	for i := 0; i < 2; i++ {
		if s.SingleA[i] < 0 || s.SingleB[i] < 0 {
			return fmt.Errorf("single counts must be non-negative")
		}
	}
	return nil
}
