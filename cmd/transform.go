package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jarthorn/energy-stats/internal/model"
	"github.com/jarthorn/energy-stats/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform-and-load",
	Short: "Derive aggregate tables from staged observations",
	Long: `Recompute the country, fuel, country-fuel, and annual aggregate tables
from the staged observations, then rank countries and fuels in a final
pass. The whole run holds the pipeline lock so concurrent runs cannot
interleave with the ranking pass.

Defaults to every country present in staging.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		requested, _ := cmd.Flags().GetStringSlice("country")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Pipeline.Concurrency
		}

		// Validate explicit codes up front; an empty list means "whatever
		// is staged" and is resolved by the pipeline itself.
		var codes []string
		if len(requested) > 0 {
			var err error
			if codes, err = model.ParseCountryCodes(requested); err != nil {
				return err
			}
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := transform.NewPipeline(st, concurrency).Run(ctx, codes)
		if err != nil {
			return err
		}

		fmt.Printf("Transform and load complete: %d countries processed, %d skipped, %d aggregate rows\n",
			summary.Processed, summary.Skipped, summary.RowsWritten)
		return nil
	},
}

func init() {
	transformCmd.Flags().StringSlice("country", nil, "ISO-3 country codes; defaults to all countries present in staging")
	transformCmd.Flags().Int("concurrency", 0, "concurrent country aggregations; defaults to pipeline.concurrency")
	rootCmd.AddCommand(transformCmd)
}
