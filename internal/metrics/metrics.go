// Package metrics exports simulation counters in the Prometheus text
// format.
//
// lhvsim is a batch tool, so nothing is scraped: the CLI writes the
// registry to a textfile when a command finishes, for node_exporter's
// textfile collector or for diffing between runs.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lhvsim"

// Recorder holds the metrics of one process. A nil Recorder is safe to
// use; every method is a no-op.
type Recorder struct {
	reg *prometheus.Registry

	trials      *prometheus.CounterVec
	skipped     prometheus.Counter
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	statistic   *prometheus.GaugeVec
	candidates  *prometheus.CounterVec
	verified    prometheus.Counter
	searchBest  *prometheus.GaugeVec
}

// NewRecorder registers every metric on a private registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		trials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trials_total",
			Help:      "Trials recorded, by detection class",
		}, []string{"detection"}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "skipped_pairs_total",
			Help:      "Supplied setting pairs skipped as invalid",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Completed runs, by inequality and whether it was broken",
		}, []string{"inequality", "broken"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one run",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"inequality"}),
		statistic: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "statistic",
			Help:      "Statistic of the last completed run",
		}, []string{"inequality"}),
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates_total",
			Help:      "Angle candidates evaluated, by batch outcome",
		}, []string{"result"}),
		verified: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "verified_total",
			Help:      "Candidates re-run with the verification batch",
		}),
		searchBest: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "best_statistic",
			Help:      "Verified statistic of the search winner",
		}, []string{"inequality"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveTrials adds the detection classes of a finished run.
func (r *Recorder) ObserveTrials(both, onlyOne, neither int) {
	if r == nil {
		return
	}
	r.trials.WithLabelValues("both").Add(float64(both))
	r.trials.WithLabelValues("one").Add(float64(onlyOne))
	r.trials.WithLabelValues("neither").Add(float64(neither))
}

// ObserveSkipped counts one invalid supplied pair.
func (r *Recorder) ObserveSkipped() {
	if r == nil {
		return
	}
	r.skipped.Inc()
}

// ObserveRun records the outcome and wall time of a run.
func (r *Recorder) ObserveRun(inequality string, statistic float64, broken bool, seconds float64) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(inequality, fmt.Sprint(broken)).Inc()
	r.runDuration.WithLabelValues(inequality).Observe(seconds)
	r.statistic.WithLabelValues(inequality).Set(statistic)
}

// ObserveCandidate counts one search candidate.
func (r *Recorder) ObserveCandidate(broken bool) {
	if r == nil {
		return
	}
	result := "classical"
	if broken {
		result = "broken"
	}
	r.candidates.WithLabelValues(result).Inc()
}

// ObserveVerified counts one verification run.
func (r *Recorder) ObserveVerified() {
	if r == nil {
		return
	}
	r.verified.Inc()
}

// ObserveSearchBest sets the verified statistic of a search winner.
func (r *Recorder) ObserveSearchBest(inequality string, statistic float64) {
	if r == nil {
		return
	}
	r.searchBest.WithLabelValues(inequality).Set(statistic)
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
