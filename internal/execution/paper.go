package execution

import (
	"context"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// SeedPaperBroker mirrors OPEN ledger positions as paper holdings and prices
// them (plus extra) from the snapshot source. Contracts without a snapshot
// stay unpriced.
func SeedPaperBroker(
	ctx context.Context,
	b *PaperBroker,
	snapshots SnapshotSource,
	open []contracts.Position,
	log *logger.Logger,
	extra ...contracts.OptionContract,
) {
	toPrice := make([]contracts.OptionContract, 0, len(open)+len(extra))
	for _, p := range open {
		if !p.IsOpen() {
			continue
		}
		oc := p.Contract()
		b.SetHolding(contracts.BrokerPosition{
			Contract: oc,
			Quantity: p.QuantityRemaining,
			AvgCost:  round2(p.EntryPrice * 100),
		})
		toPrice = append(toPrice, oc)
	}
	toPrice = append(toPrice, extra...)

	seen := make(map[string]bool, len(toPrice))
	for _, oc := range toPrice {
		key := paperKey(oc)
		if seen[key] {
			continue
		}
		seen[key] = true

		q, err := snapshots.OptionSnapshot(ctx, oc)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"contract": oc.String(),
				"error":    err.Error(),
			}).Warn("Paper quote unavailable")
			continue
		}
		b.SetQuote(oc, contracts.BrokerQuote{Bid: q.Bid, Ask: q.Ask, Last: q.Mid})
	}
}
