package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quantdesk",
	Short: "A deterministic strategy backtester and paper-trading engine",
	Long: `QuantDesk runs declarative trading strategies against historical
bars or live polled quotes without touching a real broker.

It provides tools for:
  - Backtesting strategies over CSV datasets with a next-bar fill model
  - Paper trading the same strategy on a polling schedule
  - Streaming indicators (sma, ema, rsi, atr, macd, bollinger and more)
  - Declarative threshold, band, and crossover rules
  - Volatility-targeted position sizing with portfolio limits
  - SQLite and CSV trade journals`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
