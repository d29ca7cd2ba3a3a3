package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/history"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// RunReader scan history queries
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]history.RunSummary, error)
	LatestRun(ctx context.Context) (*history.RunSummary, error)
	Scorecards(ctx context.Context, runID string) ([]contracts.Scorecard, error)
	SymbolHistory(ctx context.Context, symbol string, limit int) ([]contracts.Scorecard, error)
}

// RunHandler handles scan history endpoints
// ⭐ SSOT: 스캔 이력 API 핸들러는 이 구조체에서만
type RunHandler struct {
	repo   RunReader // nil = DATABASE_URL 미설정
	logger *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(repo RunReader, log *logger.Logger) *RunHandler {
	return &RunHandler{
		repo:   repo,
		logger: log,
	}
}

// LatestRunResponse latest run with its ranked scorecards
type LatestRunResponse struct {
	Run        *history.RunSummary   `json:"run"`
	Scorecards []contracts.Scorecard `json:"scorecards"`
}

// ListRuns returns recent scan runs
// GET /api/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	runs, err := h.repo.ListRuns(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	respondJSON(w, http.StatusOK, runs)
}

// GetLatest returns the most recent run and its scorecards
// GET /api/runs/latest
func (h *RunHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	ctx := r.Context()

	run, err := h.repo.LatestRun(ctx)
	if errors.Is(err, history.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No scan runs recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}

	cards, err := h.repo.Scorecards(ctx, run.RunID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get scorecards")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve scorecards")
		return
	}

	respondJSON(w, http.StatusOK, LatestRunResponse{Run: run, Scorecards: cards})
}

// GetScorecards returns the scorecards of one run in rank order
// GET /api/runs/{id}/scorecards
func (h *RunHandler) GetScorecards(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	runID := mux.Vars(r)["id"]
	cards, err := h.repo.Scorecards(r.Context(), runID)
	if err != nil {
		h.logger.WithFields(map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		}).Error("Failed to get scorecards")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve scorecards")
		return
	}
	if len(cards) == 0 {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, cards)
}

// GetSymbolHistory returns recent scorecards for one symbol
// GET /api/symbols/{symbol}/history?limit=20
func (h *RunHandler) GetSymbolHistory(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	cards, err := h.repo.SymbolHistory(r.Context(), symbol, queryLimit(r))
	if err != nil {
		h.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		}).Error("Failed to get symbol history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve symbol history")
		return
	}

	respondJSON(w, http.StatusOK, cards)
}

func (h *RunHandler) enabled(w http.ResponseWriter) bool {
	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Scan history is disabled (DATABASE_URL not set)")
		return false
	}
	return true
}
