// Package analysis computes descriptive statistics over simulation
// results: the distribution of a statistic across replicated runs and the
// uniformity of detector-setting selection within one run.
package analysis

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidence is the confidence level of Summary intervals.
const DefaultConfidence = 0.95

// Summary describes a sample of statistic values.
type Summary struct {
	N       int     `json:"n"`
	Dropped int     `json:"dropped"` // NaN values excluded from the sample
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Median  float64 `json:"median"`
	P05     float64 `json:"p05"`
	P95     float64 `json:"p95"`

	// CILow and CIHigh bound the mean at Confidence, using Student's t.
	Confidence float64 `json:"confidence"`
	CILow      float64 `json:"ci_low"`
	CIHigh     float64 `json:"ci_high"`
}

// Summarize describes values at the given confidence level (0 selects
// DefaultConfidence). NaN values are dropped and counted.
func Summarize(values []float64, confidence float64) (Summary, error) {
	if confidence == 0 {
		confidence = DefaultConfidence
	}
	if confidence <= 0 || confidence >= 1 {
		return Summary{}, fmt.Errorf("confidence must be in (0,1), got %f", confidence)
	}

	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			data = append(data, v)
		}
	}
	s := Summary{N: len(data), Dropped: len(values) - len(data), Confidence: confidence}
	if len(data) == 0 {
		return s, fmt.Errorf("no finite values to summarize")
	}

	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, fmt.Errorf("mean: %w", err)
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, fmt.Errorf("min: %w", err)
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, fmt.Errorf("max: %w", err)
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, fmt.Errorf("median: %w", err)
	}
	if s.P05, err = stats.Percentile(data, 5); err != nil {
		return s, fmt.Errorf("5th percentile: %w", err)
	}
	if s.P95, err = stats.Percentile(data, 95); err != nil {
		return s, fmt.Errorf("95th percentile: %w", err)
	}

	if len(data) < 2 {
		s.CILow, s.CIHigh = s.Mean, s.Mean
		return s, nil
	}
	if s.StdDev, err = stats.StandardDeviationSample(data); err != nil {
		return s, fmt.Errorf("standard deviation: %w", err)
	}
	df := float64(len(data) - 1)
	tCritical := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(1 - (1-confidence)/2)
	margin := tCritical * s.StdDev / math.Sqrt(float64(len(data)))
	s.CILow, s.CIHigh = s.Mean-margin, s.Mean+margin
	return s, nil
}

// ExceedsBound reports whether the whole confidence interval lies above
// bound, i.e. the replicated runs violate the inequality consistently.
func (s Summary) ExceedsBound(bound float64) bool {
	return s.N > 0 && s.CILow > bound
}
