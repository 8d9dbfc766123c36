package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/lhvsim/internal/snapshot"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state [file]",
		Short: "Show and verify the saved run state",
		Long: `Show the header of a run-state file and verify its SHA-256 checksum.
Without an argument the state file of the output directory is used.

Examples:
  lhvsim state
  lhvsim state runs/state.json.gz --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			path := a.cfg.Output.Path(a.cfg.Output.StateFile)
			if len(args) == 1 {
				path = args[0]
			}

			header, err := snapshot.ReadHeader(path)
			if err != nil {
				return fmt.Errorf("failed to read state: %w", err)
			}
			verifyErr := snapshot.Verify(path)

			out := map[string]any{
				"file":         path,
				"version":      header.Version,
				"created_at":   header.CreatedAt,
				"model":        header.Model,
				"inequality":   header.Inequality,
				"total_trials": header.TotalTrials,
				"checksum":     header.Checksum,
				"valid":        verifyErr == nil,
			}
			if verifyErr != nil {
				out["error"] = verifyErr.Error()
			}

			var b strings.Builder
			fmt.Fprintf(&b, "State: %s (format v%d)\n", path, header.Version)
			fmt.Fprintf(&b, "  Saved:      %s (%s)\n", header.CreatedAt.Local().Format(time.RFC1123), humanize.Time(header.CreatedAt))
			fmt.Fprintf(&b, "  Model:      %s\n", header.Model)
			fmt.Fprintf(&b, "  Inequality: %s\n", header.Inequality)
			fmt.Fprintf(&b, "  Trials:     %s\n", humanize.Comma(int64(header.TotalTrials)))
			if verifyErr != nil {
				fmt.Fprintf(&b, "FAILED: %v\n", verifyErr)
			} else {
				b.WriteString("OK: checksum verified\n")
			}
			if err := a.emit(out, b.String()); err != nil {
				return err
			}
			if verifyErr != nil {
				return fmt.Errorf("state verification failed")
			}
			return nil
		},
	}
	return cmd
}
