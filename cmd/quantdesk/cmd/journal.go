package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantdesk/quantdesk/backtest"
	"github.com/quantdesk/quantdesk/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query recorded runs",
	Long: `Inspect the SQLite journal written by backtest and paper runs.

Examples:
  quantdesk journal runs --db run.db
  quantdesk journal trades <run-id> --db run.db
  quantdesk journal report <run-id> --db run.db`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded run IDs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List a run's closed trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalReportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Recompute a run's report from the journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalReport,
}

var (
	journalDBPath    string
	journalFrequency string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalReportCmd)

	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "quantdesk.db", "path to the SQLite journal")
	journalReportCmd.Flags().StringVar(&journalFrequency, "frequency", "1D", "bar frequency used for annualization")
}

func openDB() (*journal.SQLite, error) {
	return journal.NewSQLite(journalDBPath)
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openDB()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return err
	}
	for _, id := range runs {
		fmt.Println(id)
	}
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openDB()
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTrades(args[0])
	if err != nil {
		return err
	}
	for _, t := range trades {
		fmt.Printf("%s  %-10s %10.2f units  %.4f -> %.4f  pl %10.2f  %s  %s\n",
			t.TradeID, t.Symbol, t.Units, t.EntryPrice, t.ExitPrice,
			t.RealizedPL, t.CloseTime.Format("2006-01-02"), t.Reason)
	}
	fmt.Printf("%d trades\n", len(trades))
	return nil
}

func runJournalReport(cmd *cobra.Command, args []string) error {
	j, err := openDB()
	if err != nil {
		return err
	}
	defer j.Close()

	curve, err := j.ListEquity(args[0])
	if err != nil {
		return err
	}
	trades, err := j.ListTrades(args[0])
	if err != nil {
		return err
	}
	fmt.Print(backtest.NewReport(curve, trades, backtest.PeriodsPerYear(journalFrequency)))
	return nil
}
