package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/pipeline"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan → evaluate → select → score pass",
	Long: `Run one scan pass

후보 발굴(UW, Finviz) → 시그널 평가 → 계약 선택 → 스코어카드.
DATABASE_URL 설정 시 결과는 history 스키마에 저장됩니다.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.pipeline().Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		if scanJSON {
			return printJSON(run)
		}
		printRun(run)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the full run as JSON")
	rootCmd.AddCommand(scanCmd)
}

// printRun prints the report as tables
func printRun(run *pipeline.Run) {
	PrintHeader(fmt.Sprintf("Scan %s", run.ID))
	PrintKeyValue("Duration", run.Duration.Round(time.Millisecond).String(), 10)
	PrintKeyValue("Evaluated", fmt.Sprintf("%d", run.Report.Evaluated), 10)
	if run.Market != nil && run.Market.Tide != nil {
		PrintKeyValue("Tide", string(run.Market.Tide.Sentiment), 10)
	}
	if run.UsedFallback {
		PrintWarning("primary scanner empty, fallback source used")
	}

	printCards("CALLS", run.Report.Calls)
	printCards("PUTS", run.Report.Puts)

	if len(run.Report.EarningsRisk) > 0 {
		PrintSeparator()
		PrintWarning("Earnings risk: " + strings.Join(run.Report.EarningsRisk, ", "))
	}
	for _, w := range run.Warnings {
		PrintWarning(w)
	}
	PrintDoubleSeparator()
}

func printCards(title string, cards []contracts.Scorecard) {
	PrintSeparator()
	fmt.Fprintf(output, "  %s\n", title)
	if len(cards) == 0 {
		fmt.Fprintln(output, "   (none)")
		return
	}

	widths := []int{8, 8, 14, 26, 10}
	PrintTableHeader([]string{"Symbol", "Score", "Tier", "Contract", "Mid"}, widths)
	for _, sc := range cards {
		contract, mid := "-", "-"
		if sc.Contract != nil {
			contract = fmt.Sprintf("%s %g%s", sc.Contract.Expiration, sc.Contract.Strike, sc.Contract.Right)
			mid = fmt.Sprintf("%.2f", sc.Contract.Mid)
		}
		PrintTableRow([]string{
			sc.Candidate.Symbol,
			fmt.Sprintf("%.1f/%.0f", sc.Composite, sc.MaxScore),
			string(sc.Tier),
			contract,
			mid,
		}, widths)
	}
}
