// Package inequality evaluates Bell-type inequalities over accumulated
// counts.
//
// Setting 0 is the unprimed angle (a, b) and setting 1 the primed one
// (a', b'). Inequalities hold no counts between calls; every Compute and
// Describe reads the Counts it is handed.
package inequality

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/models"
)

// ErrUnknown is returned by ByName for an unrecognized inequality.
var ErrUnknown = errors.New("unknown inequality")

// Inequality computes a statistic whose classical bound a local model
// must respect.
type Inequality interface {
	Name() string
	PreferredAngles() models.Angles
	Compute(c *counts.Counts) float64
	Describe(c *counts.Counts) Breakdown
	Bound() float64
	IsBroken(v float64) bool
}

// Term is one labelled value of a Breakdown.
type Term struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Breakdown lists the intermediate counts and the final statistic of one
// evaluation, in a fixed order.
type Breakdown []Term

// Get returns the value stored under key.
func (b Breakdown) Get(key string) (float64, bool) {
	for _, t := range b {
		if t.Key == key {
			return t.Value, true
		}
	}
	return 0, false
}

// String renders one "key, value" line per term.
func (b Breakdown) String() string {
	var sb strings.Builder
	for _, t := range b {
		sb.WriteString(t.Key)
		sb.WriteString(", ")
		sb.WriteString(strconv.FormatFloat(t.Value, 'g', -1, 64))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Names lists the registered inequalities.
func Names() []string {
	return []string{"ch", "chsh", "guistina", "guistina-fair"}
}

// ByName returns the inequality registered under name.
func ByName(name string) (Inequality, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ch":
		return CH{}, nil
	case "chsh":
		return CHSH{}, nil
	case "guistina", "guistina2015":
		return Guistina2015{}, nil
	case "guistina-fair", "guistina2015-fair":
		return Guistina2015Fair{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
}

func perTrial(v float64, c *counts.Counts) float64 {
	return v / float64(c.TotalTrials())
}
