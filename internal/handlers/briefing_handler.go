package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/pipeline"
	"github.com/ternarybob/briefing/internal/scheduler"
)

// RunController is the scheduler surface used by the HTTP API
type RunController interface {
	RunNow(ctx context.Context, opts pipeline.RunOptions) (models.PublishingRunResult, error)
	History(limit int) []models.PublishingRunResult
	Stats() models.RunStats
	NextRun() time.Time
	Running() bool
}

// BriefingHandler triggers runs and reports run history
type BriefingHandler struct {
	runs   RunController
	ctx    context.Context
	logger arbor.ILogger
}

// NewBriefingHandler creates the handler. ctx bounds runs started over HTTP.
func NewBriefingHandler(ctx context.Context, runs RunController, logger arbor.ILogger) *BriefingHandler {
	return &BriefingHandler{runs: runs, ctx: ctx, logger: logger}
}

type runRequest struct {
	BriefingText string `json:"briefing_text"`
}

// RunHandler handles POST /api/briefing/run. The run continues in the background;
// its result appears in /api/briefing/runs.
func (h *BriefingHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.runs.Running() {
		WriteError(w, http.StatusConflict, scheduler.ErrRunInProgress.Error())
		return
	}

	opts := pipeline.RunOptions{BriefingText: req.BriefingText, Trigger: pipeline.TriggerAPI}
	common.SafeGo(h.logger, nil, "api-briefing-run", func() {
		if _, err := h.runs.RunNow(h.ctx, opts); err != nil {
			h.logger.Warn().Err(err).Msg("API briefing run not started")
		}
	})

	WriteStarted(w, "Briefing run started")
}

// RunsHandler handles GET /api/briefing/runs?limit=
func (h *BriefingHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit := GetLimitParam(r, 20, 100)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  h.runs.History(limit),
		"limit": limit,
	})
}

// StatsHandler handles GET /api/briefing/stats
func (h *BriefingHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	resp := map[string]interface{}{
		"stats":   h.runs.Stats(),
		"running": h.runs.Running(),
	}
	if next := h.runs.NextRun(); !next.IsZero() {
		resp["next_run"] = next
	}
	WriteJSON(w, http.StatusOK, resp)
}
