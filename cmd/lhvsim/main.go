package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lhvsim",
		Short: "Local hidden variable simulations of Bell-type experiments",
		Long: `lhvsim simulates photon-pair experiments with local hidden variable
models and evaluates the CH, CHSH and Guistina inequalities over the
recorded counts.

It runs single experiments that can be continued later, searches the
detector angles for the strongest violation, and replicates a
configuration over many seeds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.lhvsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: warn, info, debug, trace")
	rootCmd.PersistentFlags().String("output-dir", "", "Directory for log, summary and state files")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSearchCmd(),
		newReplicateCmd(),
		newHistoryCmd(),
		newStateCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// signalContext returns a context cancelled on the first interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "interrupted, finishing up (press Ctrl+C again to abort)")
			cancel()
			<-sigCh
			os.Exit(130)
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
