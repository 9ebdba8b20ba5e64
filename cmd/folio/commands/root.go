package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Portfolio backtesting and analysis service",
	Long: `folio - portfolio backtesting, performance metrics and
technical analysis.

Usage:
  go run ./cmd/folio [command]

Examples:
  go run ./cmd/folio api
  go run ./cmd/folio backtest --holdings "AAPL:60,005930.KS:40" --benchmark ^GSPC
  go run ./cmd/folio fetch AAPL 005930.KS`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
