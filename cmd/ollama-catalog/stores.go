package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ollama-catalog/internal"
)

func newStoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the accepted CATALOG_STORE values",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			for _, kind := range internal.StoreKinds() {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
			}
		},
	}
}
