package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"ollama-catalog/internal/core/domain"
)

func newShowCmd() *cobra.Command {
	var readme bool
	cmd := &cobra.Command{
		Use:   "show MODEL",
		Short: "Show details for a model",
		Long:  "Show the details of one model. Cached details are used when present, otherwise the model page is fetched and stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			details, err := app.Cache.GetListingDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderDetails(cmd.OutOrStdout(), details, time.Now(), readme)
			return nil
		},
	}
	cmd.Flags().BoolVar(&readme, "readme", false, "print the README markup")
	return cmd
}

func renderDetails(w io.Writer, d domain.ModelListingDetails, now time.Time, readme bool) {
	fmt.Fprintf(w, "  Model:       %s\n", d.Name)
	fmt.Fprintf(w, "  Version:     %s\n", d.Version)
	fmt.Fprintf(w, "  Updated:     %s\n", humanDate(d.Updated, now))
	fmt.Fprintf(w, "  Description: %s\n\n", d.Description)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"TAG", "SIZE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(formatSizes(d))
	table.Render()

	if readme {
		fmt.Fprintf(w, "\n%s\n", d.ReadmeMarkup)
	}
}
