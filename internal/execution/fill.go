package execution

import (
	"context"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// FillPollConfig defines fill polling parameters
type FillPollConfig struct {
	Interval time.Duration `yaml:"interval"` // 상태 조회 주기
	MaxPolls int           `yaml:"max_polls"`
}

// DefaultFillPollConfig returns 15 polls every 2s
func DefaultFillPollConfig() FillPollConfig {
	return FillPollConfig{
		Interval: 2 * time.Second,
		MaxPolls: 15,
	}
}

// WaitForFill polls until the order is terminal or polls run out.
// The last observed state is returned either way.
func WaitForFill(ctx context.Context, b Broker, orderID string, config FillPollConfig, log *logger.Logger) (*contracts.OrderState, error) {
	last := &contracts.OrderState{OrderID: orderID, Status: contracts.StatusSubmitted}

	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for poll := 0; poll < config.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}

		state, err := b.OrderStatus(ctx, orderID)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"order_id": orderID,
				"poll":     poll + 1,
				"error":    err.Error(),
			}).Warn("Failed to get order status")
			continue
		}
		last = state

		if state.Status.Terminal() {
			log.WithFields(map[string]interface{}{
				"order_id":  orderID,
				"status":    state.Status,
				"filled":    state.Filled,
				"avg_price": state.AvgPrice,
			}).Info("Order completed")
			return last, nil
		}
	}

	log.WithFields(map[string]interface{}{
		"order_id": orderID,
		"status":   last.Status,
		"filled":   last.Filled,
	}).Warn("Fill polling exhausted")
	return last, nil
}
