package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

// =============================================================================
// Manual trade commands: verify / buy / sell / portfolio
// =============================================================================

var buyLimit float64

var verifyCmd = &cobra.Command{
	Use:   "verify SYMBOL EXPIRY STRIKE RIGHT",
	Short: "Verify an option contract against market data",
	Long: `Verify an option contract

시세 제공자에서 계약을 조회하고 bid/ask, 스프레드, 그릭스를 보고합니다.
EXPIRY는 YYYYMMDD 또는 YYYY-MM-DD, RIGHT는 C/CALL 또는 P/PUT.

Example:
  go run ./cmd/quant verify AAPL 20261120 230 C`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		oc, err := parseContract(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.broker(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(a.executor(b).Verify(cmd.Context(), oc))
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy SYMBOL EXPIRY STRIKE RIGHT QTY",
	Short: "Buy an option contract through the capital gate",
	Long: `Buy an option contract

검증 → 자본 게이트 → 주문 → 체결 대기 → 원장 기록.
--limit 미지정(0) 시 시장가(MKT) 주문, 지정 시 LMT 주문.`,
	Args: cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd, args, contracts.OrderSideBuy)
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell SYMBOL EXPIRY STRIKE RIGHT QTY",
	Short: "Sell an option contract and close the matching ledger entry",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd, args, contracts.OrderSideSell)
	},
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show broker positions marked to market",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.broker(cmd.Context())
		if err != nil {
			return err
		}
		view, err := a.executor(b).Portfolio(cmd.Context())
		if err != nil {
			return fmt.Errorf("portfolio: %w", err)
		}
		return printJSON(view)
	},
}

func init() {
	buyCmd.Flags().Float64Var(&buyLimit, "limit", 0, "limit price (0 = market order)")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)
	rootCmd.AddCommand(portfolioCmd)
}

// runTrade places a buy or sell and records the result.
// A non-FILLED result is printed and returned as an error (exit 1).
func runTrade(cmd *cobra.Command, args []string, side contracts.OrderSide) error {
	oc, err := parseContract(args[:4])
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(args[4])
	if err != nil || qty <= 0 {
		return fmt.Errorf("invalid quantity %q", args[4])
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.broker(ctx, oc)
	if err != nil {
		return err
	}
	exec := a.executor(b)

	var res *contracts.TradeResult
	kind := "buy"
	if side == contracts.OrderSideSell {
		kind = "sell"
		res = exec.Sell(ctx, oc, qty, 0)
	} else {
		res = exec.Buy(ctx, oc, qty, buyLimit)
	}
	a.recordTrade(ctx, kind, res)

	if err := printJSON(res); err != nil {
		return err
	}
	if res.Status != contracts.TradeFilled {
		return fmt.Errorf("%s %s: %s", kind, res.Status, res.Message)
	}
	return nil
}

// parseContract reads SYMBOL EXPIRY STRIKE RIGHT
func parseContract(args []string) (contracts.OptionContract, error) {
	expiry, err := contracts.NormalizeExpiry(args[1], contracts.ExpiryCompact)
	if err != nil {
		return contracts.OptionContract{}, err
	}
	strike, err := strconv.ParseFloat(args[2], 64)
	if err != nil || strike <= 0 {
		return contracts.OptionContract{}, fmt.Errorf("invalid strike %q", args[2])
	}
	right, err := contracts.ParseRight(args[3])
	if err != nil {
		return contracts.OptionContract{}, err
	}
	return contracts.OptionContract{
		Symbol: contracts.NormalizeSymbol(args[0]),
		Expiry: expiry,
		Strike: strike,
		Right:  right,
	}, nil
}
