package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jarthorn/energy-stats/internal/model"
	"github.com/jarthorn/energy-stats/internal/store"
)

// statusReport is the full status output shape.
type statusReport struct {
	Coverage []store.Coverage    `json:"coverage" yaml:"coverage"`
	Fuels    []model.Fuel        `json:"fuels" yaml:"fuels"`
	Runs     []model.PipelineRun `json:"runs" yaml:"runs"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show staging coverage and recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		coverage, err := st.Coverage(ctx)
		if err != nil {
			return err
		}
		fuels, err := st.FuelsByRank(ctx)
		if err != nil {
			return err
		}
		runs, err := st.RecentRuns(ctx, 10)
		if err != nil {
			return err
		}

		report := statusReport{Coverage: coverage, Fuels: fuels, Runs: runs}

		switch format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(report), "status: encode json")
		case "yaml":
			return eris.Wrap(yaml.NewEncoder(os.Stdout).Encode(report), "status: encode yaml")
		case "table":
			printStatusTable(report)
			return nil
		default:
			return eris.Errorf("unknown format %q (valid: table, json, yaml)", format)
		}
	},
}

func printStatusTable(report statusReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COUNTRY\tROWS\tMONTHS\tLATEST")
	for _, c := range report.Coverage {
		latest := "-"
		if c.LatestMonth != nil {
			latest = c.LatestMonth.Format("2006-01")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.CountryCode, c.Rows, c.Months, latest)
	}
	w.Flush()

	if len(report.Fuels) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FUEL\tRANK\tROLLING TWH\tLIFETIME TWH")
		for _, f := range report.Fuels {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\n", f.Type, f.Rank, f.RollingLatestTWh, f.LifetimeTWh)
		}
		w.Flush()
	}

	if len(report.Runs) == 0 {
		return
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tKIND\tSTARTED\tPROCESSED\tSKIPPED\tROWS\tERROR")
	for _, r := range report.Runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID[:8], r.Kind, r.StartedAt.Format("2006-01-02 15:04"), r.Processed, r.Skipped, r.RowsWritten, r.Error)
	}
	w.Flush()
}

func init() {
	statusCmd.Flags().String("format", "table", "output format: table, json, yaml")
	rootCmd.AddCommand(statusCmd)
}
