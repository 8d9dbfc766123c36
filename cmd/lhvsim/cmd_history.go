package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/lhvsim/internal/report"
	"github.com/nvandessel/lhvsim/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the run history",
		Long: `Every run, replicate and search is recorded in the history database
(history.db in the output directory by default).

Examples:
  lhvsim history list --limit 5
  lhvsim history show 3f2a          # by id or unique id prefix
  lhvsim history searches
  lhvsim history prune --older-than 720h`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistorySearchesCmd(),
		newHistoryPruneCmd(),
	)
	return cmd
}

// withHistory opens the history database for a history subcommand.
func withHistory(cmd *cobra.Command, fn func(a *app, s *store.SQLiteStore) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.openHistory(cmd.Context())
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("run history is disabled (output.history_db is empty)")
	}
	defer s.Close()
	return fn(a, s)
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withHistory(cmd, func(a *app, s *store.SQLiteStore) error {
				runs, err := s.ListRuns(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}

				entries := make([]map[string]any, 0, len(runs))
				var b strings.Builder
				if len(runs) == 0 {
					fmt.Fprintf(&b, "No runs recorded in %s\n", s.Path())
				}
				for _, r := range runs {
					entries = append(entries, runJSON(r, false))
					fmt.Fprintf(&b, "%s  %-9s  %-7s %-13s %12s trials  %-10s %s\n",
						shortID(r.ID), r.Command, r.Model, r.Inequality,
						humanize.Comma(int64(r.Trials)), statisticText(r.Statistic, r.Broken),
						humanize.Time(r.CreatedAt))
				}
				return a.emit(map[string]any{
					"runs":        entries,
					"total_count": len(entries),
					"database":    s.Path(),
				}, b.String())
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to show (0 for all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(a *app, s *store.SQLiteStore) error {
				r, err := s.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				var b strings.Builder
				fmt.Fprintf(&b, "Run %s (%s, %s)\n", r.ID, r.Command, r.CreatedAt.Local().Format(time.RFC1123))
				fmt.Fprintf(&b, "Model: %s  Inequality: %s\n", r.Model, r.Inequality)
				fmt.Fprintf(&b, "Angles: %s  efficiency %g  seed %d  mode %s\n",
					r.Settings.Angles.ShortString(), r.Settings.EntanglementEfficiency, r.Settings.Seed, r.Settings.Mode)
				fmt.Fprintf(&b, "Trials: %s", humanize.Comma(int64(r.Trials)))
				if r.Skipped > 0 {
					fmt.Fprintf(&b, " (%d invalid pairs skipped)", r.Skipped)
				}
				b.WriteByte('\n')
				fmt.Fprintf(&b, "Statistic: %s\n", statisticText(r.Statistic, r.Broken))
				b.WriteString(r.Breakdown.String())
				return a.emit(runJSON(r, true), b.String())
			})
		},
	}
}

func newHistorySearchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "searches",
		Short: "List recorded angle searches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withHistory(cmd, func(a *app, s *store.SQLiteStore) error {
				searches, err := s.ListSearches(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("failed to list searches: %w", err)
				}

				entries := make([]map[string]any, 0, len(searches))
				var b strings.Builder
				if len(searches) == 0 {
					fmt.Fprintf(&b, "No searches recorded in %s\n", s.Path())
				}
				for _, sr := range searches {
					entry := map[string]any{
						"id":            sr.ID,
						"created_at":    sr.CreatedAt,
						"model":         sr.Model,
						"inequality":    sr.Inequality,
						"seed":          sr.Seed,
						"candidates":    sr.Candidates,
						"broken":        sr.Broken,
						"verified":      sr.Verified,
						"found":         sr.Found,
						"interrupted":   sr.Interrupted,
						"statistic":     report.Finite(sr.Statistic),
						"batch_trials":  sr.BatchTrials,
						"verify_trials": sr.VerifyTrials,
					}
					best := "none"
					if sr.Best != nil {
						entry["best"] = sr.Best
						best = sr.Best.ShortString()
					}
					entries = append(entries, entry)

					note := ""
					if sr.Interrupted {
						note = " (interrupted)"
					}
					fmt.Fprintf(&b, "%s  %-7s %-13s %s candidates, best %s statistic %s%s  %s\n",
						shortID(sr.ID), sr.Model, sr.Inequality, humanize.Comma(int64(sr.Candidates)),
						best, statisticText(sr.Statistic, sr.Found), note, humanize.Time(sr.CreatedAt))
				}
				return a.emit(map[string]any{
					"searches":    entries,
					"total_count": len(entries),
				}, b.String())
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum searches to show (0 for all)")
	return cmd
}

func newHistoryPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withHistory(cmd, func(a *app, s *store.SQLiteStore) error {
				cutoff := time.Now().Add(-olderThan)
				n, err := s.DeleteRunsBefore(cmd.Context(), cutoff)
				if err != nil {
					return fmt.Errorf("failed to prune runs: %w", err)
				}
				a.logger.Info("pruned run history", "deleted", n, "cutoff", cutoff)
				return a.emit(map[string]any{
					"deleted": n,
					"cutoff":  cutoff,
				}, fmt.Sprintf("Deleted %d runs recorded before %s\n", n, cutoff.Format(time.RFC3339)))
			})
		},
	}
	cmd.Flags().Duration("older-than", 0, "Delete runs recorded before now minus this duration")
	return cmd
}

func runJSON(r store.Run, detail bool) map[string]any {
	out := map[string]any{
		"id":         r.ID,
		"created_at": r.CreatedAt,
		"command":    r.Command,
		"model":      r.Model,
		"inequality": r.Inequality,
		"trials":     r.Trials,
		"skipped":    r.Skipped,
		"statistic":  report.Finite(r.Statistic),
		"broken":     r.Broken,
	}
	if detail {
		breakdown := make(map[string]any, len(r.Breakdown))
		for _, t := range r.Breakdown {
			breakdown[t.Key] = report.Finite(t.Value)
		}
		out["settings"] = r.Settings
		out["breakdown"] = breakdown
		out["counts"] = r.Counts
	}
	return out
}

func statisticText(v float64, broken bool) string {
	s := fmt.Sprintf("%.4g", v)
	if broken {
		s += "*"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
