package handlers

import (
	"context"
	"net/http"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/history"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// PositionReader ledger read access
type PositionReader interface {
	Load() ([]contracts.Position, error)
}

// TradeReader recorded order events
type TradeReader interface {
	RecentTrades(ctx context.Context, limit int) ([]history.TradeEvent, error)
}

// PositionHandler handles ledger and trade endpoints
// ⭐ SSOT: 포지션 API 핸들러는 이 구조체에서만
type PositionHandler struct {
	ledger PositionReader
	trades TradeReader // nil = DB 미사용
	logger *logger.Logger
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(ledger PositionReader, trades TradeReader, log *logger.Logger) *PositionHandler {
	return &PositionHandler{
		ledger: ledger,
		trades: trades,
		logger: log,
	}
}

// GetPositions returns ledger positions
// GET /api/positions?status=open|all (default open)
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "open"
	}
	if status != "open" && status != "all" {
		respondError(w, http.StatusBadRequest, "Invalid status (valid: open, all)")
		return
	}

	positions, err := h.ledger.Load()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load ledger")
		respondError(w, http.StatusInternalServerError, "Failed to load ledger")
		return
	}

	if status == "open" {
		open := make([]contracts.Position, 0, len(positions))
		for _, p := range positions {
			if p.IsOpen() {
				open = append(open, p)
			}
		}
		positions = open
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetTrades returns recent order events
// GET /api/trades?limit=20
func (h *PositionHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		respondError(w, http.StatusServiceUnavailable, "Trade history is disabled (DATABASE_URL not set)")
		return
	}

	events, err := h.trades.RecentTrades(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trades")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve trades")
		return
	}

	respondJSON(w, http.StatusOK, events)
}
