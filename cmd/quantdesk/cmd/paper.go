package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantdesk/quantdesk/config"
	"github.com/quantdesk/quantdesk/market"
	"github.com/quantdesk/quantdesk/notify"
	"github.com/quantdesk/quantdesk/paper"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Paper trade a strategy on a polling schedule",
	Long: `Poll the data source on the configured interval and run each new
bar through the strategy. Fills and halts are dispatched to the
configured alert channels. Stop with Ctrl-C; the session finishes its
current cycle before exiting.

Example:
  quantdesk paper --config strategy.yaml --data ./data --journal paper.db`,
	RunE: runPaper,
}

var (
	paperConfig  string
	paperData    string
	paperJournal string
)

func init() {
	rootCmd.AddCommand(paperCmd)
	paperCmd.Flags().StringVarP(&paperConfig, "config", "c", "", "strategy config file (required)")
	paperCmd.Flags().StringVarP(&paperData, "data", "d", "data", "directory of CSV bar files")
	paperCmd.Flags().StringVarP(&paperJournal, "journal", "j", "", "SQLite journal path (optional)")
	paperCmd.MarkFlagRequired("config")
}

func runPaper(cmd *cobra.Command, args []string) error {
	strat, err := config.Load(paperConfig)
	if err != nil {
		return err
	}
	jrnl, err := openJournal(paperJournal, "")
	if err != nil {
		return err
	}
	defer jrnl.Close()

	channels := strat.Paper.Channels
	if len(channels) == 0 {
		channels = []string{"console"}
	}
	alerts, err := notify.ForNames(channels)
	if err != nil {
		return err
	}

	sched, err := paper.New(*strat, market.NewCSVProvider(paperData), jrnl, alerts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Run(ctx); err != nil {
		return err
	}
	fmt.Printf("paper session %s stopped\n", sched.RunID())
	return nil
}
