package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyPath string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "so7ba - 옵션 모멘텀 스크리너",
	Long: `so7ba Unified CLI

미국 주식 옵션 스크리닝 파이프라인.
스캔 → 시그널 평가 → 계약 선택 → 스코어카드, 그리고 포지션 모니터링.

Results go to stdout, logs go to stderr.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant scan --json
  go run ./cmd/quant monitor --dry-run
  go run ./cmd/quant verify AAPL 2026-11-20 230 C
  go run ./cmd/quant serve
  go run ./cmd/quant config check`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyPath, "strategy", "", "strategy YAML (default: STRATEGY_CONFIG or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
