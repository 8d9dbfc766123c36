package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/lhvsim/internal/engine"
	"github.com/nvandessel/lhvsim/internal/report"
	"github.com/nvandessel/lhvsim/internal/store"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search detector angles for the strongest violation",
		Long: `Sweep detector angle quadruples, run a short batch of trials for each,
and verify the most promising candidates with a longer run.

Every axis defaults to the full sweep (a in [0,90), a' in [1,90),
b in [0,45), b' in [-45,45) in 1 degree steps). An axis accepts either a
range "from:to[:step]" (to exclusive) or a comma list.

Interrupting a search (Ctrl+C) verifies the candidates seen so far and
reports them.

Examples:
  lhvsim search --workers 8
  lhvsim search --a1 0 --a2 45 --b1 0:45:5 --b2=-45:45:5
  lhvsim search --inequality ch --batch-trials 5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			runErr := runSearch(cmd, a)
			if err := a.close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().Int("batch-trials", 0, "Trials per candidate in the batch phase")
	cmd.Flags().Int("verify-trials", 0, "Trials per candidate in the verify phase")
	cmd.Flags().Int("top-k", 0, "Number of batch survivors to verify")
	cmd.Flags().Int("workers", 0, "Parallel evaluators (default GOMAXPROCS)")
	cmd.Flags().String("a1", "", "Values for angle a")
	cmd.Flags().String("a2", "", "Values for angle a'")
	cmd.Flags().String("b1", "", "Values for angle b")
	cmd.Flags().String("b2", "", "Values for angle b'")

	return cmd
}

func runSearch(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	space, err := searchSpaceFromFlags(cmd)
	if err != nil {
		return err
	}

	opts := engine.SearchOptions{
		BatchTrials:  a.cfg.Search.BatchTrials,
		VerifyTrials: a.cfg.Search.VerifyTrials,
		VerifyTopK:   a.cfg.Search.VerifyTopK,
		Workers:      a.cfg.Search.Workers,
	}
	if flags.Changed("batch-trials") {
		opts.BatchTrials, _ = flags.GetInt("batch-trials")
	}
	if flags.Changed("verify-trials") {
		opts.VerifyTrials, _ = flags.GetInt("verify-trials")
	}
	if flags.Changed("top-k") {
		opts.VerifyTopK, _ = flags.GetInt("top-k")
	}
	if flags.Changed("workers") {
		opts.Workers, _ = flags.GetInt("workers")
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers()
	}

	e, err := a.newEngine(nil)
	if err != nil {
		return err
	}

	a.logger.Info("starting search",
		"model", e.Model().Name(),
		"inequality", e.Inequality().Name(),
		"candidates", space.Size(),
		"workers", opts.Workers)
	start := time.Now()

	res, err := e.Search(ctx, space, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	a.logger.Info("search finished", "duration", time.Since(start), "found", res.Found, "interrupted", res.Interrupted)

	// ctx is already cancelled after an interrupted search.
	hctx := context.WithoutCancel(ctx)
	var searchID string
	history, err := a.openHistory(hctx)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		rec := store.Search{
			Model:          e.Model().Name(),
			Inequality:     e.Inequality().Name(),
			Seed:           e.Settings().Seed,
			Efficiency:     e.Settings().EntanglementEfficiency,
			BatchTrials:    opts.BatchTrials,
			VerifyTrials:   opts.VerifyTrials,
			Candidates:     res.Candidates,
			Broken:         res.Broken,
			Verified:       res.Verified,
			Found:          res.Found,
			Interrupted:    res.Interrupted,
			Statistic:      res.Statistic,
			BatchStatistic: res.BatchStatistic,
		}
		if res.Found {
			best := res.Best
			rec.Best = &best
		}
		searchID, err = history.RecordSearch(hctx, rec)
		if err != nil {
			return fmt.Errorf("failed to record search: %w", err)
		}
	}

	a.events.Log("search_complete", map[string]any{
		"id":          searchID,
		"inequality":  e.Inequality().Name(),
		"candidates":  res.Candidates,
		"broken":      res.Broken,
		"verified":    res.Verified,
		"found":       res.Found,
		"interrupted": res.Interrupted,
		"statistic":   report.Finite(res.Statistic),
	})

	out := map[string]any{
		"id":          searchID,
		"model":       e.Model().Name(),
		"inequality":  e.Inequality().Name(),
		"candidates":  res.Candidates,
		"broken":      res.Broken,
		"verified":    res.Verified,
		"found":       res.Found,
		"interrupted": res.Interrupted,
	}
	if res.Found {
		breakdown := make(map[string]any, len(res.Breakdown))
		for _, t := range res.Breakdown {
			breakdown[t.Key] = report.Finite(t.Value)
		}
		out["best"] = res.Best
		out["statistic"] = report.Finite(res.Statistic)
		out["batch_statistic"] = report.Finite(res.BatchStatistic)
		out["breakdown"] = breakdown
	}
	return a.emit(out, report.SearchText(e.Inequality().Name(), res))
}

// searchSpaceFromFlags overrides the default sweep with the axis flags.
func searchSpaceFromFlags(cmd *cobra.Command) (engine.SearchSpace, error) {
	space := engine.DefaultSearchSpace()
	axes := []struct {
		flag string
		dst  *[]float64
	}{
		{"a1", &space.A1},
		{"a2", &space.A2},
		{"b1", &space.B1},
		{"b2", &space.B2},
	}
	for _, ax := range axes {
		s, _ := cmd.Flags().GetString(ax.flag)
		if s == "" {
			continue
		}
		values, err := parseAxis(s)
		if err != nil {
			return engine.SearchSpace{}, fmt.Errorf("--%s: %w", ax.flag, err)
		}
		*ax.dst = values
	}
	return space, nil
}

// parseAxis reads "from:to[:step]" (to exclusive) or "v1,v2,...".
func parseAxis(s string) ([]float64, error) {
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("range must be from:to[:step], got %q", s)
		}
		bounds := make([]float64, 3)
		bounds[2] = 1
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q: %w", p, err)
			}
			bounds[i] = f
		}
		from, to, step := bounds[0], bounds[1], bounds[2]
		if step <= 0 {
			return nil, fmt.Errorf("step must be positive, got %g", step)
		}
		if to <= from {
			return nil, fmt.Errorf("empty range %q", s)
		}
		var out []float64
		for i := 0; ; i++ {
			v := from + float64(i)*step
			if v >= to {
				break
			}
			out = append(out, v)
		}
		return out, nil
	}

	var out []float64
	for _, p := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}
