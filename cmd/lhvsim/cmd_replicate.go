package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/lhvsim/internal/analysis"
	"github.com/nvandessel/lhvsim/internal/engine"
	"github.com/nvandessel/lhvsim/internal/report"
	"github.com/nvandessel/lhvsim/internal/store"
	"github.com/spf13/cobra"
)

func newReplicateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Repeat an experiment over consecutive seeds",
		Long: `Run the configured experiment once per seed, starting at --seed, and
summarize the statistic across runs: mean, spread, a confidence interval
for the mean, and a chi-square check that the four setting combinations
were chosen uniformly.

Examples:
  lhvsim replicate --runs 50 --trials 20000
  lhvsim replicate --rng skewed --inequality chsh --runs 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			runErr := runReplicate(cmd, a)
			if err := a.close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().Int("runs", 20, "Number of seeds")
	cmd.Flags().Int("workers", 0, "Parallel runs (default GOMAXPROCS)")
	cmd.Flags().Float64("alpha", analysis.DefaultAlpha, "Significance level of the uniformity check")
	cmd.Flags().Float64("confidence", analysis.DefaultConfidence, "Confidence level of the mean interval")

	return cmd
}

func runReplicate(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	runs, _ := cmd.Flags().GetInt("runs")
	workers, _ := cmd.Flags().GetInt("workers")
	alpha, _ := cmd.Flags().GetFloat64("alpha")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	if confidence <= 0 || confidence >= 1 {
		return fmt.Errorf("confidence must be in (0,1), got %g", confidence)
	}
	if alpha <= 0 || alpha >= 1 {
		return fmt.Errorf("alpha must be in (0,1), got %g", alpha)
	}
	if workers <= 0 {
		workers = a.cfg.Search.Workers
	}
	if workers <= 0 {
		workers = defaultWorkers()
	}

	e, err := a.newEngine(nil)
	if err != nil {
		return err
	}
	ineq := e.Inequality()

	replicas, err := e.Replicate(ctx, engine.ReplicateOptions{Runs: runs, Workers: workers})
	interrupted := false
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && len(replicas) > 0:
		a.logger.Warn("replicate interrupted", "finished", len(replicas), "requested", runs)
		interrupted = true
	default:
		return fmt.Errorf("replicate failed: %w", err)
	}

	values := make([]float64, len(replicas))
	var observed [4]int
	for i, r := range replicas {
		values[i] = r.Statistic
		for j := range observed {
			observed[j] += r.SettingCounts[j]
		}
	}
	summary, err := analysis.Summarize(values, confidence)
	if err != nil {
		// Only an all-NaN sample gets here; report it rather than fail.
		a.logger.Warn("no defined statistic to summarize", "runs", len(replicas), "error", err)
		nan := math.NaN()
		summary.Mean, summary.StdDev, summary.Median = nan, nan, nan
		summary.Min, summary.Max, summary.CILow, summary.CIHigh = nan, nan, nan, nan
	}
	uniformity := analysis.CheckObserved(observed, alpha)

	hctx := context.WithoutCancel(ctx)
	history, err := a.openHistory(hctx)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		settings := e.Settings()
		for _, r := range replicas {
			_, err := history.RecordRun(hctx, store.Run{
				Command:    "replicate",
				Model:      e.Model().Name(),
				Inequality: ineq.Name(),
				Settings:   settings.WithSeed(r.Seed),
				Trials:     r.Counts.TotalTrials,
				Statistic:  r.Statistic,
				Broken:     r.Broken,
				Counts:     r.Counts,
			})
			if err != nil {
				return fmt.Errorf("failed to record replica %d: %w", r.Seed, err)
			}
		}
	}

	a.events.Log("replicate_complete", map[string]any{
		"inequality":  ineq.Name(),
		"runs":        len(replicas),
		"mean":        report.Finite(summary.Mean),
		"uniform":     uniformity.Uniform,
		"interrupted": interrupted,
	})

	perRun := make([]map[string]any, len(replicas))
	broken := 0
	for i, r := range replicas {
		if r.Broken {
			broken++
		}
		perRun[i] = map[string]any{
			"seed":          r.Seed,
			"statistic":     report.Finite(r.Statistic),
			"broken":        r.Broken,
			"both_detected": report.Finite(r.BothDetected),
		}
	}
	return a.emit(map[string]any{
		"model":       e.Model().Name(),
		"inequality":  ineq.Name(),
		"bound":       ineq.Bound(),
		"runs":        len(replicas),
		"broken":      broken,
		"interrupted": interrupted,
		"summary": map[string]any{
			"n":          summary.N,
			"dropped":    summary.Dropped,
			"mean":       report.Finite(summary.Mean),
			"std_dev":    report.Finite(summary.StdDev),
			"median":     report.Finite(summary.Median),
			"min":        report.Finite(summary.Min),
			"max":        report.Finite(summary.Max),
			"confidence": summary.Confidence,
			"ci_low":     report.Finite(summary.CILow),
			"ci_high":    report.Finite(summary.CIHigh),
		},
		"uniformity": uniformity,
		"replicas":   perRun,
	}, report.ReplicateText(ineq.Name(), ineq.Bound(), replicas, summary, uniformity))
}
