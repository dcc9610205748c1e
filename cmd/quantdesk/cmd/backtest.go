package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantdesk/quantdesk/backtest"
	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/journal"
	"github.com/quantdesk/quantdesk/market"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a strategy over historical bars",
	Long: `Run a strategy against CSV bar data and print the run report.

The data directory holds one <SYMBOL>.csv (or <SYMBOL>.csv.xz) per
symbol with time,open,high,low,close,volume columns.

Example:
  quantdesk backtest --config strategy.yaml --data ./data --journal run.db`,
	RunE: runBacktest,
}

var (
	backtestConfig  string
	backtestData    string
	backtestJournal string
	backtestCSVOut  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVarP(&backtestConfig, "config", "c", "", "strategy config file (required)")
	backtestCmd.Flags().StringVarP(&backtestData, "data", "d", "data", "directory of CSV bar files")
	backtestCmd.Flags().StringVarP(&backtestJournal, "journal", "j", "", "SQLite journal path (optional)")
	backtestCmd.Flags().StringVar(&backtestCSVOut, "csv", "", "prefix for CSV trade/equity exports (optional)")
	backtestCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	strat, err := config.Load(backtestConfig)
	if err != nil {
		return err
	}
	jrnl, err := openJournal(backtestJournal, backtestCSVOut)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	driver := backtest.New(*strat, market.NewCSVProvider(backtestData), jrnl)
	res, err := driver.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("run %s  %s  %s -> %s  (%d trades)\n\n",
		res.RunID, strat.Name,
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"),
		len(res.Trades))
	fmt.Print(res.Report)
	return nil
}

// openJournal picks the journal backend from the flags: SQLite when a
// path is given, CSV files for an export prefix, both stacked through a
// tee when both are set.
func openJournal(sqlitePath, csvPrefix string) (journal.Journal, error) {
	var backends []journal.Journal
	if sqlitePath != "" {
		j, err := journal.NewSQLite(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		backends = append(backends, j)
	}
	if csvPrefix != "" {
		j, err := journal.NewCSV(csvPrefix+"_trades.csv", csvPrefix+"_equity.csv")
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		backends = append(backends, j)
	}
	switch len(backends) {
	case 0:
		return journal.Discard{}, nil
	case 1:
		return backends[0], nil
	default:
		return journal.NewTee(backends...), nil
	}
}
