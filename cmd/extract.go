package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jarthorn/energy-stats/internal/ember"
	"github.com/jarthorn/energy-stats/internal/model"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract monthly generation data from the Ember API into staging",
	Long: `Extract monthly electricity generation data from the Ember API and stage
it in the observations table. Per-country fetch failures are logged and
skipped; only configuration errors abort the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		startDate, _ := cmd.Flags().GetString("start-date")
		requested, _ := cmd.Flags().GetStringSlice("country")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Pipeline.Concurrency
		}

		codes, err := resolveCountries(requested, nil)
		if err != nil {
			return err
		}

		client, err := ember.NewClient(cfg.Ember)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := ember.NewExtractor(client, st, concurrency).Run(ctx, codes, startDate)
		if err != nil {
			return err
		}

		fmt.Printf("Extraction complete: %d countries staged, %d skipped (%d rows created, %d updated)\n",
			summary.Fetched, summary.Skipped, summary.Created, summary.Updated)
		return nil
	},
}

func init() {
	extractCmd.Flags().String("start-date", "", "earliest month to fetch (YYYY-MM); defaults to ember.start_date")
	extractCmd.Flags().StringSlice("country", nil, "ISO-3 country codes (e.g. GBR,DEU); defaults to all known countries")
	extractCmd.Flags().Int("concurrency", 0, "concurrent country fetches; defaults to pipeline.concurrency")
	rootCmd.AddCommand(extractCmd)
}

// resolveCountries validates the requested codes, or falls back to the
// given default list (nil = the full registry). Unknown codes are
// configuration errors and abort before any work begins.
func resolveCountries(requested, fallback []string) ([]string, error) {
	if len(requested) > 0 {
		return model.ParseCountryCodes(requested)
	}
	if fallback != nil {
		return fallback, nil
	}
	return model.AllCountryCodes(), nil
}
