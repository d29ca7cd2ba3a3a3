package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
)

func TestParseContract(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    contracts.OptionContract
		wantErr bool
	}{
		{
			name: "compact expiry",
			args: []string{"aapl", "20261120", "230", "C"},
			want: contracts.OptionContract{Symbol: "AAPL", Expiry: "20261120", Strike: 230, Right: contracts.RightCall},
		},
		{
			name: "iso expiry and word right",
			args: []string{"SPY", "2026-11-20", "512.5", "put"},
			want: contracts.OptionContract{Symbol: "SPY", Expiry: "20261120", Strike: 512.5, Right: contracts.RightPut},
		},
		{name: "bad expiry", args: []string{"AAPL", "11/20/2026", "230", "C"}, wantErr: true},
		{name: "bad strike", args: []string{"AAPL", "20261120", "abc", "C"}, wantErr: true},
		{name: "zero strike", args: []string{"AAPL", "20261120", "0", "C"}, wantErr: true},
		{name: "bad right", args: []string{"AAPL", "20261120", "230", "X"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseContract(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := output
	output = &buf
	defer func() { output = prev }()

	require.NoError(t, printJSON(&contracts.TradeResult{Status: contracts.TradeRejected, Message: "spread too wide"}))
	assert.JSONEq(t, `{"status":"REJECTED","message":"spread too wide"}`, buf.String())
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"scan", "monitor", "verify", "buy", "sell", "portfolio", "serve", "config"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestBuyLimitHelp(t *testing.T) {
	flag := buyCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.Contains(t, flag.Usage, "market order")
	assert.Contains(t, buyCmd.Long, "MKT")
	assert.NotContains(t, buyCmd.Long, "mid")

	// limit 0 is what the buy command sends by default
	order, err := contracts.NewOrder(contracts.OptionContract{Symbol: "AAPL", Expiry: "20261120", Strike: 230, Right: contracts.RightCall}, contracts.OrderSideBuy, 1, buyLimit)
	require.NoError(t, err)
	assert.Equal(t, contracts.OrderTypeMarket, order.Type)
}
