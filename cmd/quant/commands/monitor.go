package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var monitorDryRun bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run one exit-rule pass over open positions",
	Long: `Run one monitor pass

원장의 OPEN 포지션마다 스냅샷을 조회하고 청산 규칙을 평가합니다.
--dry-run: 결정만 보고하고 주문/원장 변경 없음.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.broker(ctx)
		if err != nil {
			return err
		}
		pm := a.monitor(b)
		pm.SetDryRun(monitorDryRun)

		report, err := pm.RunPass(ctx)
		if err != nil {
			return fmt.Errorf("monitor: %w", err)
		}
		return printJSON(report)
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorDryRun, "dry-run", false, "report decisions without placing orders")
	rootCmd.AddCommand(monitorCmd)
}
