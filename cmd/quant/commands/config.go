package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabq4org/so7ba.ai/internal/strategyconfig"
	"github.com/sabq4org/so7ba.ai/pkg/config"
)

// configCheckResult config check output
type configCheckResult struct {
	Path       string                   `json:"path"` // "" = built-in defaults
	StrategyID string                   `json:"strategy_id"`
	Version    string                   `json:"version"`
	Hash       string                   `json:"hash"`
	Warnings   []strategyconfig.Warning `json:"warnings"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Strategy configuration tools",
}

var configCheckCmd = &cobra.Command{
	Use:   "check [PATH]",
	Short: "Validate a strategy YAML and print its hash",
	Long: `Validate a strategy YAML

YAML을 기본값 위에 디코딩하고 검증합니다 (알 수 없는 필드 = 실패).
PATH 생략 시 --strategy, STRATEGY_CONFIG, 내장 기본값 순.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := strategyPath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			if cfg, err := config.Load(); err == nil {
				path = cfg.StrategyPath
			}
		}

		strategy, err := strategyconfig.LoadOrDefault(path)
		if err != nil {
			return fmt.Errorf("invalid strategy: %w", err)
		}
		hash, err := strategyconfig.Hash(strategy)
		if err != nil {
			return fmt.Errorf("failed to hash strategy: %w", err)
		}

		warnings := strategyconfig.Warn(strategy)
		if warnings == nil {
			warnings = []strategyconfig.Warning{}
		}
		return printJSON(configCheckResult{
			Path:       path,
			StrategyID: strategy.Meta.StrategyID,
			Version:    strategy.Meta.Version,
			Hash:       hash,
			Warnings:   warnings,
		})
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
