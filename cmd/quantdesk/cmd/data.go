package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xyproto/unzip"

	"github.com/quantdesk/quantdesk/market"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage local bar datasets",
}

var dataUnpackCmd = &cobra.Command{
	Use:   "unpack <archive.zip>",
	Short: "Extract a zipped dataset into the data directory",
	Long: `Unpack a dataset archive of CSV bar files.

Example:
  quantdesk data unpack eod-2024.zip --out ./data`,
	Args: cobra.ExactArgs(1),
	RunE: runDataUnpack,
}

var dataCheckCmd = &cobra.Command{
	Use:   "check <symbol> [symbol...]",
	Short: "Load and validate the bar series for symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDataCheck,
}

var (
	dataUnpackOut string
	dataCheckDir  string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataUnpackCmd)
	dataCmd.AddCommand(dataCheckCmd)

	dataUnpackCmd.Flags().StringVarP(&dataUnpackOut, "out", "o", "data", "output directory")
	dataCheckCmd.Flags().StringVarP(&dataCheckDir, "data", "d", "data", "directory of CSV bar files")
}

func runDataUnpack(cmd *cobra.Command, args []string) error {
	if err := unzip.Extract(args[0], dataUnpackOut); err != nil {
		return fmt.Errorf("unpack %s: %w", args[0], err)
	}
	fmt.Printf("extracted %s into %s\n", args[0], dataUnpackOut)
	return nil
}

// runDataCheck loads the whole available history for each symbol and
// reports its span. Load errors carry the first offending row.
func runDataCheck(cmd *cobra.Command, args []string) error {
	prov := market.NewCSVProvider(dataCheckDir)
	var wide time.Time // zero start loads everything
	end := time.Now().AddDate(100, 0, 0)

	for _, sym := range args {
		bars, err := prov.GetBars(context.Background(), sym, wide, end)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			fmt.Printf("%-10s empty\n", sym)
			continue
		}
		fmt.Printf("%-10s %6d bars  %s -> %s\n", sym, len(bars),
			bars[0].Time.Format("2006-01-02"), bars[len(bars)-1].Time.Format("2006-01-02"))
	}
	return nil
}
