// Package engine runs paired measurement trials and evaluates the
// configured inequality over the accumulated counts.
//
// An Engine owns its random source, entangler and counts. The trial loop
// is single-threaded; Search and Replicate fan out by giving each worker
// its own Engine.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/lhvsim/internal/constants"
	"github.com/nvandessel/lhvsim/internal/counts"
	"github.com/nvandessel/lhvsim/internal/entangle"
	"github.com/nvandessel/lhvsim/internal/inequality"
	"github.com/nvandessel/lhvsim/internal/lhv"
	"github.com/nvandessel/lhvsim/internal/metrics"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/rng"
)

// Trial describes one recorded trial.
type Trial struct {
	Index    int
	SettingA int
	SettingB int
	AngleA   float64
	AngleB   float64
	Lambda   float64
	Paired   bool
	OutcomeA models.Outcome
	OutcomeB models.Outcome
}

// TrialObserver receives every recorded trial, in order. It runs inside
// the trial loop and must not block.
type TrialObserver interface {
	ObserveTrial(t Trial)
}

// Options configures an Engine beyond its Settings.
type Options struct {
	// Symmetric measures both sides with MeasureB. When false, side A uses
	// MeasureA.
	Symmetric bool

	RNG       rng.Config
	Entangler entangle.Config

	Logger   *slog.Logger
	Observer TrialObserver
	Metrics  *metrics.Recorder
}

// DefaultOptions returns symmetric measurement with an unbiased source and
// the default pair-production schedule.
func DefaultOptions() Options {
	return Options{
		Symmetric: true,
		RNG:       rng.DefaultConfig(),
		Entangler: entangle.DefaultConfig(),
	}
}

// Result is the outcome of one Run.
type Result struct {
	Statistic float64              `json:"statistic"`
	Broken    bool                 `json:"broken"`
	Trials    int                  `json:"trials"`
	Skipped   int                  `json:"skipped"`
	Breakdown inequality.Breakdown `json:"breakdown"`
}

// Engine runs trials for one model and inequality.
type Engine struct {
	settings models.Settings
	model    lhv.Model
	ineq     inequality.Inequality
	opts     Options
	logger   *slog.Logger

	src    rng.Source
	ent    *entangle.Entangler
	counts *counts.Counts
}

// New validates its inputs and returns an Engine seeded with
// settings.Seed.
func New(settings models.Settings, model lhv.Model, ineq inequality.Inequality, opts Options) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("engine requires a model")
	}
	if ineq == nil {
		return nil, fmt.Errorf("engine requires an inequality")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := opts.Entangler.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entangler config: %w", err)
	}
	src, err := rng.New(opts.RNG, settings.Seed)
	if err != nil {
		return nil, fmt.Errorf("creating random source: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		settings: settings,
		model:    model,
		ineq:     ineq,
		opts:     opts,
		logger:   logger,
		src:      src,
		ent:      entangle.New(opts.Entangler, src),
		counts:   counts.New(),
	}, nil
}

// Settings returns the current settings.
func (e *Engine) Settings() models.Settings { return e.settings }

// Model returns the measurement model.
func (e *Engine) Model() lhv.Model { return e.model }

// Inequality returns the evaluated inequality.
func (e *Engine) Inequality() inequality.Inequality { return e.ineq }

// Counts exposes the accumulated counts. Callers must not record into it.
func (e *Engine) Counts() *counts.Counts { return e.counts }

// Describe renders the inequality breakdown of the current counts.
func (e *Engine) Describe() inequality.Breakdown { return e.ineq.Describe(e.counts) }

// Reconfigure switches to new angles and seed and zeroes the counts in
// place, keeping every allocation.
func (e *Engine) Reconfigure(angles models.Angles, seed int64) {
	e.settings = e.settings.WithAngles(angles).WithSeed(seed)
	e.src.Seed(seed)
	e.counts.Reset()
}

// Run records n trials and returns the resulting statistic. Non-empty
// supplied pairs take precedence over the angle mode and fix the number
// of trials to len(supplied); invalid pairs are skipped and not counted.
// Supplied mode with no pairs runs as iterate mode.
// With continueRun the counts of the previous run are kept.
func (e *Engine) Run(n int, supplied []models.SettingPair, continueRun bool) Result {
	start := time.Now()
	if !continueRun {
		e.counts.Reset()
	}
	if len(supplied) > 0 {
		n = len(supplied)
	}
	e.src.SetTrialCount(n)
	e.ent.SetTrialCount(n)
	if len(supplied) == 0 && e.settings.Mode == models.AngleModeSupplied {
		e.logger.Warn("supplied mode without setting pairs, falling back to iterate mode", "trials", n)
	}

	var recorded, skipped int
	var both, one, neither int
	tally := func(oa, ob models.Outcome) {
		switch {
		case oa.Detected() && ob.Detected():
			both++
		case oa.Detected() || ob.Detected():
			one++
		default:
			neither++
		}
	}

	switch {
	case len(supplied) > 0:
		for t, p := range supplied {
			if !p.Valid() {
				skipped++
				e.opts.Metrics.ObserveSkipped()
				e.logger.Warn("skipping invalid setting pair", "index", t, "a", p.A, "b", p.B)
				continue
			}
			lambda := e.src.Range(0, constants.HiddenVariableMax)
			tally(e.trial(t, p.A, p.B, lambda))
			recorded++
			e.progress(t, n)
		}
	case e.settings.Mode == models.AngleModeRandom:
		for t := 0; t < n; t++ {
			a, b := e.src.Bit(), e.src.Bit()
			lambda := e.src.Range(0, constants.HiddenVariableMax)
			tally(e.trial(t, a, b, lambda))
			recorded++
			e.progress(t, n)
		}
	default:
		for t := 0; t < n; t++ {
			a, b := e.src.Bit(), e.src.Bit()
			lambda := float64(t % int(constants.HiddenVariableMax))
			tally(e.trial(t, a, b, lambda))
			recorded++
			e.progress(t, n)
		}
	}

	stat := e.ineq.Compute(e.counts)
	res := Result{
		Statistic: stat,
		Broken:    e.ineq.IsBroken(stat),
		Trials:    recorded,
		Skipped:   skipped,
		Breakdown: e.ineq.Describe(e.counts),
	}

	e.opts.Metrics.ObserveTrials(both, one, neither)
	e.opts.Metrics.ObserveRun(e.ineq.Name(), stat, res.Broken, time.Since(start).Seconds())
	e.logger.Debug("run complete",
		"trials", recorded,
		"skipped", skipped,
		"total", e.counts.TotalTrials(),
		"statistic", stat,
		"broken", res.Broken,
	)
	return res
}

// trial measures and records one pair.
func (e *Engine) trial(t, a, b int, lambda float64) (models.Outcome, models.Outcome) {
	angleA := e.settings.Angles.A[a]
	angleB := e.settings.Angles.B[b]

	outA, outB := models.NoDetection, models.NoDetection
	paired := e.ent.AttemptPair()
	if paired {
		if e.opts.Symmetric {
			outA = e.model.MeasureB(angleA, lambda, e.src)
		} else {
			outA = e.model.MeasureA(angleA, lambda, e.src)
		}
		outB = e.model.MeasureB(angleB, lambda, e.src)
	}
	e.counts.Record(a, b, outA, outB)

	if e.opts.Observer != nil {
		e.opts.Observer.ObserveTrial(Trial{
			Index:    t,
			SettingA: a,
			SettingB: b,
			AngleA:   angleA,
			AngleB:   angleB,
			Lambda:   lambda,
			Paired:   paired,
			OutcomeA: outA,
			OutcomeB: outB,
		})
	}
	return outA, outB
}

func (e *Engine) progress(t, n int) {
	if t > 0 && t%constants.ProgressEvery == 0 {
		e.logger.Debug("trial progress", "trial", t, "of", n)
	}
}

// fork returns an Engine with the same model, inequality and options but
// its own source, entangler and counts. Forks never report to the
// observer or the metrics recorder.
func (e *Engine) fork() (*Engine, error) {
	opts := e.opts
	opts.Observer = nil
	opts.Metrics = nil
	opts.Logger = e.logger
	return New(e.settings, e.model, e.ineq, opts)
}
