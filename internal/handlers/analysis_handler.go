package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/briefing"
	"github.com/ternarybob/briefing/internal/entitlement"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/pipeline"
)

// SymbolAnalyzer computes the tiered on-demand analysis for one symbol
type SymbolAnalyzer interface {
	AnalyzeSymbol(ctx context.Context, symbol string, tier models.Tier) (briefing.SymbolView, error)
}

// SymbolSearcher finds candidate symbols for a free-text query
type SymbolSearcher interface {
	Search(ctx context.Context, query string) ([]models.SymbolMatch, error)
}

// TierResolver maps a subscriber to the tier their plan grants
type TierResolver interface {
	Tier(ctx context.Context, userID string) (models.Tier, error)
}

// AnalysisHandler serves on-demand symbol analysis and symbol search
type AnalysisHandler struct {
	analyzer SymbolAnalyzer
	searcher SymbolSearcher
	tiers    TierResolver
	logger   arbor.ILogger
}

// NewAnalysisHandler creates the handler. searcher may be nil.
func NewAnalysisHandler(analyzer SymbolAnalyzer, searcher SymbolSearcher, tiers TierResolver, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, searcher: searcher, tiers: tiers, logger: logger}
}

// AnalyzeHandler handles GET /api/analysis/{symbol}?user_id=&tier=
// The tier comes from the user's plan; tier= may only lower it. Without user_id the view is free.
func (h *AnalysisHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := PathParam(r, "/api/analysis/")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}
	tier, ok := h.resolveTier(w, r)
	if !ok {
		return
	}

	view, err := h.analyzer.AnalyzeSymbol(r.Context(), symbol, tier)
	if errors.Is(err, pipeline.ErrInvalidSymbol) {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("symbol", symbol).Msg("Symbol analysis failed")
		WriteError(w, http.StatusBadGateway, "Market data unavailable")
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

func (h *AnalysisHandler) resolveTier(w http.ResponseWriter, r *http.Request) (models.Tier, bool) {
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("user_id"))
	if userID == "" {
		return models.TierFree, true
	}

	allowed, err := h.tiers.Tier(r.Context(), userID)
	if errors.Is(err, interfaces.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Subscriber not found")
		return "", false
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("Tier lookup failed")
		WriteError(w, http.StatusInternalServerError, "Failed to resolve subscriber tier")
		return "", false
	}

	if requested := query.Get("tier"); requested != "" {
		return entitlement.CapTier(models.ParseTier(requested), allowed), true
	}
	return allowed, true
}

// SearchHandler handles GET /api/symbols/search?q=
func (h *AnalysisHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.searcher == nil {
		WriteError(w, http.StatusServiceUnavailable, "Symbol search not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	matches, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		h.logger.Warn().Err(err).Str("query", query).Msg("Symbol search failed")
		WriteError(w, http.StatusBadGateway, "Symbol search failed")
		return
	}
	if matches == nil {
		matches = []models.SymbolMatch{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": matches,
	})
}
