package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quantdesk/quantdesk/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate strategy files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default strategy file",
	Long: `Create a strategy file with a working SMA crossover example.

Example:
  quantdesk config init --output strategy.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a strategy file loads",
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a strategy file after validation and defaulting",
	RunE:  runConfigShow,
}

var (
	configInitOutput   string
	configValidatePath string
	configShowPath     string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "strategy.yaml", "output file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "strategy file to check (required)")
	configValidateCmd.MarkFlagRequired("file")
	configShowCmd.Flags().StringVarP(&configShowPath, "file", "f", "", "strategy file to print (required)")
	configShowCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Default().Save(configInitOutput); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", configInitOutput)
	fmt.Printf("run it with:\n  quantdesk backtest --config %s --data ./data\n", configInitOutput)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	strat, err := config.Load(configShowPath)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(strat)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	strat, err := config.Load(configValidatePath)
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%s, %d symbols, %d rules)\n",
		configValidatePath, strat.Name, len(strat.Universe.Symbols), len(strat.Rules.Rules))
	return nil
}
