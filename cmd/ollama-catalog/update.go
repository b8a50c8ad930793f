package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ollama-catalog/internal/core/domain"
)

func newUpdateCmd() *cobra.Command {
	var keepUnlisted bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Run one reconciliation sweep",
		Long:  "Walk the whole library, store new listings and, unless --keep-unlisted is set, remove cached models that are no longer listed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := app.Sweeps.RunSweep(cmd.Context(), !keepUnlisted)
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().BoolVar(&keepUnlisted, "keep-unlisted", false, "do not remove cached models missing from the library")
	return cmd
}

func printReport(w io.Writer, r domain.SweepReport) {
	if r.ID == "" {
		return
	}
	fmt.Fprintf(w, "sweep %s %s: %d visited", r.ID, r.State, r.Visited)
	if len(r.Pruned) > 0 {
		fmt.Fprintf(w, ", %d removed (%s)", len(r.Pruned), strings.Join(r.Pruned, ", "))
	}
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		fmt.Fprintf(w, " in %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(w)
}
