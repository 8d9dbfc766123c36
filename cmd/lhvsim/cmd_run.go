package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nvandessel/lhvsim/internal/engine"
	"github.com/nvandessel/lhvsim/internal/logging"
	"github.com/nvandessel/lhvsim/internal/models"
	"github.com/nvandessel/lhvsim/internal/pairs"
	"github.com/nvandessel/lhvsim/internal/report"
	"github.com/nvandessel/lhvsim/internal/snapshot"
	"github.com/nvandessel/lhvsim/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one experiment and evaluate the inequality",
		Long: `Run trials with the configured model and evaluate the inequality.

Every run writes its state to the state file, so a later run with
--continue keeps accumulating counts on the same random stream. The
per-trial log (log.csv) and the summary (summary.csv) are written to the
output directory.

Examples:
  lhvsim run                                   # Wang model, Guistina inequality
  lhvsim run --inequality chsh --trials 1000000
  lhvsim run --continue --trials 500000        # add trials to the last run
  lhvsim run --pairs settings.csv              # settings from a file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			continueRun, _ := cmd.Flags().GetBool("continue")
			pairsFile, _ := cmd.Flags().GetString("pairs")
			noLog, _ := cmd.Flags().GetBool("no-log")

			runErr := runExperiment(cmd, a, continueRun, pairsFile, noLog)
			if err := a.close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().Bool("continue", false, "Continue the run saved in the state file")
	cmd.Flags().String("pairs", "", "File of setting pairs (one 'a, b' per line)")
	cmd.Flags().Bool("no-log", false, "Do not write the per-trial log")

	return cmd
}

func runExperiment(cmd *cobra.Command, a *app, continueRun bool, pairsFile string, noLog bool) error {
	ctx := cmd.Context()
	out := a.cfg.Output

	statePath := out.Path(out.StateFile)
	var checkpoint *engine.Checkpoint
	if continueRun {
		cp, header, err := snapshot.Load(statePath)
		switch {
		case err == nil:
			checkpoint = &cp
			adoptCheckpoint(a, cp)
			a.logger.Info("continuing saved run", "state", statePath, "trials", header.TotalTrials)
		case errors.Is(err, os.ErrNotExist):
			a.logger.Warn("no saved run to continue, starting fresh", "state", statePath)
			continueRun = false
		default:
			return fmt.Errorf("failed to load state: %w", err)
		}
	}

	var supplied []models.SettingPair
	if pairsFile != "" {
		res, err := pairs.ReadFile(pairsFile)
		if err != nil {
			return err
		}
		for _, d := range res.Diagnostics {
			a.logger.Warn("rejected setting pair line", "file", pairsFile, "line", d.Line, "reason", d.Reason)
		}
		a.logger.Info("read setting pairs", "file", pairsFile, "pairs", len(res.Pairs), "valid", res.Valid())
		supplied = res.Pairs
		a.cfg.Simulation.Mode = string(models.AngleModeSupplied)
	}

	var trialLog *logging.TrialLog
	var observer engine.TrialObserver
	if out.TrialLog && !noLog {
		var err error
		trialLog, err = logging.OpenTrialLog(out.Path(out.TrialLogFile), continueRun)
		if err != nil {
			return err
		}
		defer trialLog.Close()
		observer = trialLog
	}

	e, err := a.newEngine(observer)
	if err != nil {
		return err
	}
	if checkpoint != nil {
		if err := e.Resume(*checkpoint); err != nil {
			return fmt.Errorf("cannot continue saved run: %w", err)
		}
	}

	res := e.Run(a.cfg.Simulation.Trials, supplied, continueRun)

	if err := trialLog.Close(); err != nil {
		return err
	}

	cp, err := e.Checkpoint()
	if err != nil {
		return err
	}
	if err := snapshot.Save(statePath, cp); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	settings := e.Settings()
	summary := report.Summary{
		Date:       time.Now(),
		Settings:   settings,
		Model:      e.Model().Name(),
		Inequality: e.Inequality().Name(),
		Statistic:  res.Statistic,
		Broken:     res.Broken,
		Breakdown:  res.Breakdown,
		Counts:     e.Counts(),
	}
	if out.SummaryFile != "" {
		if err := report.WriteFile(out.Path(out.SummaryFile), summary); err != nil {
			return err
		}
	}

	var runID string
	history, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		runID, err = history.RecordRun(ctx, store.Run{
			Command:    "run",
			Model:      summary.Model,
			Inequality: summary.Inequality,
			Settings:   settings,
			Trials:     e.Counts().TotalTrials(),
			Skipped:    res.Skipped,
			Statistic:  res.Statistic,
			Broken:     res.Broken,
			Breakdown:  res.Breakdown,
			Counts:     e.Counts().State(),
		})
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	a.events.Log("run_complete", map[string]any{
		"id":         runID,
		"model":      summary.Model,
		"inequality": summary.Inequality,
		"trials":     res.Trials,
		"total":      e.Counts().TotalTrials(),
		"statistic":  report.Finite(res.Statistic),
		"broken":     res.Broken,
		"continued":  continueRun,
	})

	breakdown := make(map[string]any, len(res.Breakdown))
	for _, t := range res.Breakdown {
		breakdown[t.Key] = report.Finite(t.Value)
	}
	var text strings.Builder
	text.WriteString(report.Text(summary))
	text.WriteString(res.Breakdown.String())
	if res.Skipped > 0 {
		fmt.Fprintf(&text, "%d invalid setting pairs skipped\n", res.Skipped)
	}

	return a.emit(map[string]any{
		"id":            runID,
		"model":         summary.Model,
		"inequality":    summary.Inequality,
		"angles":        settings.Angles,
		"trials":        res.Trials,
		"total_trials":  e.Counts().TotalTrials(),
		"skipped":       res.Skipped,
		"statistic":     report.Finite(res.Statistic),
		"bound":         e.Inequality().Bound(),
		"broken":        res.Broken,
		"both_detected": report.Finite(e.Counts().PercentBothDetected()),
		"breakdown":     breakdown,
	}, text.String())
}

// adoptCheckpoint makes the experiment match a saved run, including its
// measurement policy and random source, so that only the number of trials
// comes from the command line.
func adoptCheckpoint(a *app, cp engine.Checkpoint) {
	sim := &a.cfg.Simulation
	sim.Model = cp.Model
	sim.Inequality = cp.Inequality
	sim.Seed = cp.Settings.Seed
	sim.Efficiency = cp.Settings.EntanglementEfficiency
	sim.Mode = string(cp.Settings.Mode)
	angles := cp.Settings.Angles
	sim.Angles = &angles
	sim.Symmetric = cp.Symmetric
	sim.Gated = cp.ModelOptions.Gated
	sim.Strength = cp.ModelOptions.Strength
	a.cfg.RNG = cp.Source
	a.cfg.Entangler = cp.Entangler
}
