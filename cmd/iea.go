package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jarthorn/energy-stats/internal/iea"
)

var ieaCmd = &cobra.Command{
	Use:   "iea",
	Short: "IEA reference dataset utilities",
}

var ieaFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter an IEA World Energy Balances CSV to tracked countries",
	Long: `Filter a CSV export of the IEA World Energy Balances dataset down to the
countries in the registry and the primary-energy products used to
cross-check Ember coverage. Year columns before 2000 are dropped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inPath, _ := cmd.Flags().GetString("in")
		outPath, _ := cmd.Flags().GetString("out")

		in, err := os.Open(inPath)
		if err != nil {
			return eris.Wrapf(err, "open %s", inPath)
		}
		defer in.Close()

		out, err := os.Create(outPath)
		if err != nil {
			return eris.Wrapf(err, "create %s", outPath)
		}
		defer out.Close()

		res, err := iea.Filter(in, out, iea.DefaultAllowedCountries())
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d data rows, kept %d.\n", res.RowsProcessed, res.RowsKept)
		return nil
	},
}

func init() {
	ieaFilterCmd.Flags().String("in", "", "input CSV path")
	ieaFilterCmd.Flags().String("out", "", "output CSV path")
	_ = ieaFilterCmd.MarkFlagRequired("in")
	_ = ieaFilterCmd.MarkFlagRequired("out")
	ieaCmd.AddCommand(ieaFilterCmd)
	rootCmd.AddCommand(ieaCmd)
}
