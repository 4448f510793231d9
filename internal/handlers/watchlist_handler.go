package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/watchlist"
)

// WatchlistService manages per-user watchlists
type WatchlistService interface {
	List(ctx context.Context, userID string) ([]models.WatchlistItem, error)
	Add(ctx context.Context, userID, rawSymbol, name string) (*models.WatchlistItem, error)
	Remove(ctx context.Context, userID, itemID string) error
}

// WatchlistHandler exposes watchlist CRUD. Callers identify the user with user_id;
// authentication is handled in front of this service.
type WatchlistHandler struct {
	service WatchlistService
	logger  arbor.ILogger
}

// NewWatchlistHandler creates the handler
func NewWatchlistHandler(service WatchlistService, logger arbor.ILogger) *WatchlistHandler {
	return &WatchlistHandler{service: service, logger: logger}
}

type addWatchlistRequest struct {
	UserID string `json:"user_id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// ListHandler handles GET /api/watchlist?user_id=
func (h *WatchlistHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	items, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list watchlist")
		WriteError(w, http.StatusInternalServerError, "Failed to list watchlist")
		return
	}
	if items == nil {
		items = []models.WatchlistItem{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"items":   items,
	})
}

// AddHandler handles POST /api/watchlist
func (h *WatchlistHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	var req addWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Symbol == "" {
		WriteError(w, http.StatusBadRequest, "user_id and symbol are required")
		return
	}

	item, err := h.service.Add(r.Context(), req.UserID, req.Symbol, req.Name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

// RemoveHandler handles DELETE /api/watchlist/{id}?user_id=
func (h *WatchlistHandler) RemoveHandler(w http.ResponseWriter, r *http.Request) {
	itemID := PathParam(r, "/api/watchlist/")
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if itemID == "" || userID == "" {
		WriteError(w, http.StatusBadRequest, "item id and user_id are required")
		return
	}

	if err := h.service.Remove(r.Context(), userID, itemID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteSuccess(w, "Watchlist item removed")
}

func (h *WatchlistHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrInvalidSymbol):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, interfaces.ErrDuplicate):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, interfaces.ErrWatchlistLimit):
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Watchlist operation failed")
		WriteError(w, http.StatusInternalServerError, "Watchlist operation failed")
	}
}
