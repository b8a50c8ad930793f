package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"ollama-catalog/internal/core/domain"
)

func newListCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "list [PREFIX]",
		Aliases: []string{"ls"},
		Short:   "List cached models",
		Long:    "List the cached catalog. With --refresh the library is walked and every listing is stored before it is printed.",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			seq := app.Cache.EnumerateCached(cmd.Context())
			if refresh {
				seq = app.Cache.EnumerateAndRefresh(cmd.Context())
			}

			var prefix string
			if len(args) > 0 {
				prefix = strings.ToLower(args[0])
			}

			var listings []domain.ModelListing
			for listing, err := range seq {
				if err != nil {
					return err
				}
				if strings.HasPrefix(strings.ToLower(listing.Name), prefix) {
					listings = append(listings, listing)
				}
			}
			renderListings(cmd.OutOrStdout(), listings, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "walk the library and update the cache first")
	return cmd
}

func renderListings(w io.Writer, listings []domain.ModelListing, now time.Time) {
	data := make([][]string, 0, len(listings))
	for _, l := range listings {
		data = append(data, []string{l.Name, strings.Join(l.Tags, ","), humanDate(l.Updated, now), l.Description})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NAME", "TAGS", "UPDATED", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}

// humanDate renders a catalog date; dates are whole days so "today"
// replaces humanize's sub-day output.
func humanDate(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	if domain.DateOf(now).Equal(domain.DateOf(t.In(now.Location()))) {
		return "today"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatSizes(d domain.ModelListingDetails) [][]string {
	data := make([][]string, 0, len(d.Tags))
	for _, tag := range d.Tags {
		size, ok := d.FileSizes[tag]
		sizeText := "-"
		if ok {
			sizeText = size.String()
		}
		data = append(data, []string{fmt.Sprintf("%s:%s", d.Name, tag), sizeText})
	}
	return data
}
