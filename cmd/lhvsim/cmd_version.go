package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			a := &app{jsonOut: jsonOut, out: cmd.OutOrStdout()}
			return a.emit(map[string]string{
				"version": version,
				"commit":  commit,
				"date":    date,
			}, fmt.Sprintf("lhvsim version %s (commit: %s, built: %s)\n", version, commit, date))
		},
	}
}
