package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/briefing"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/pipeline"
	"github.com/ternarybob/briefing/internal/watchlist"
)

type fakeRuns struct {
	running bool
	started chan pipeline.RunOptions
	history []models.PublishingRunResult
	stats   models.RunStats
	next    time.Time
}

func (f *fakeRuns) RunNow(ctx context.Context, opts pipeline.RunOptions) (models.PublishingRunResult, error) {
	f.started <- opts
	return models.PublishingRunResult{RunID: "r1", Success: true}, nil
}
func (f *fakeRuns) History(limit int) []models.PublishingRunResult {
	if limit < len(f.history) {
		return f.history[:limit]
	}
	return f.history
}
func (f *fakeRuns) Stats() models.RunStats { return f.stats }
func (f *fakeRuns) NextRun() time.Time     { return f.next }
func (f *fakeRuns) Running() bool          { return f.running }

func TestBriefingHandler_Run(t *testing.T) {
	runs := &fakeRuns{started: make(chan pipeline.RunOptions, 1)}
	h := NewBriefingHandler(context.Background(), runs, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/briefing/run", strings.NewReader(`{"briefing_text":"# hi"}`))
	rec := httptest.NewRecorder()
	h.RunHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case opts := <-runs.started:
		assert.Equal(t, "# hi", opts.BriefingText)
		assert.Equal(t, pipeline.TriggerAPI, opts.Trigger)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not started")
	}

	// empty body is allowed
	rec = httptest.NewRecorder()
	h.RunHandler(rec, httptest.NewRequest(http.MethodPost, "/api/briefing/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-runs.started
}

func TestBriefingHandler_RunConflictAndMethod(t *testing.T) {
	runs := &fakeRuns{running: true}
	h := NewBriefingHandler(context.Background(), runs, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.RunHandler(rec, httptest.NewRequest(http.MethodPost, "/api/briefing/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.RunHandler(rec, httptest.NewRequest(http.MethodGet, "/api/briefing/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBriefingHandler_RunsAndStats(t *testing.T) {
	runs := &fakeRuns{
		history: []models.PublishingRunResult{{RunID: "b"}, {RunID: "a"}},
		stats:   models.RunStats{TotalRuns: 2, SuccessfulRuns: 1, SuccessRate: 50},
		next:    time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC),
	}
	h := NewBriefingHandler(context.Background(), runs, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.RunsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/briefing/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []models.PublishingRunResult `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "b", body.Runs[0].RunID)

	rec = httptest.NewRecorder()
	h.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/briefing/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success_rate":50`)
	assert.Contains(t, rec.Body.String(), `"next_run":"2026-10-19T07:30:00Z"`)
}

type fakeAnalyzer struct {
	err error
}

func (f fakeAnalyzer) AnalyzeSymbol(ctx context.Context, symbol string, tier models.Tier) (briefing.SymbolView, error) {
	if f.err != nil {
		return briefing.SymbolView{}, f.err
	}
	if tier == models.TierPro {
		return briefing.SymbolView{Tier: tier, Technical: &briefing.TechnicalBrief{StockBrief: briefing.StockBrief{Symbol: symbol}}}, nil
	}
	return briefing.SymbolView{Tier: tier, Stock: &briefing.StockBrief{Symbol: symbol, Signals: []string{}}}, nil
}

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	return []models.SymbolMatch{{Symbol: "005930.KS", Name: "Samsung Electronics"}}, nil
}

type fakeTiers map[string]models.Tier

func (f fakeTiers) Tier(ctx context.Context, userID string) (models.Tier, error) {
	if userID == "broken" {
		return models.TierFree, errors.New("db down")
	}
	tier, ok := f[userID]
	if !ok {
		return models.TierFree, fmt.Errorf("failed to load subscriber %s: %w", userID, interfaces.ErrNotFound)
	}
	return tier, nil
}

var testTiers = fakeTiers{"u-basic": models.TierBasic, "u-pro": models.TierPro}

func TestAnalysisHandler(t *testing.T) {
	tests := []struct {
		name       string
		analyzer   fakeAnalyzer
		path       string
		wantStatus int
		wantBody   string
		absent     string
	}{
		{name: "basic subscriber", path: "/api/analysis/005930.KS?user_id=u-basic", wantStatus: http.StatusOK, wantBody: `"stock"`, absent: `"technical"`},
		{name: "pro subscriber", path: "/api/analysis/005930.KS?user_id=u-pro", wantStatus: http.StatusOK, wantBody: `"technical"`},
		{name: "pro subscriber lowers tier", path: "/api/analysis/005930.KS?user_id=u-pro&tier=basic", wantStatus: http.StatusOK, wantBody: `"tier":"basic"`, absent: `"technical"`},
		{name: "basic subscriber cannot raise tier", path: "/api/analysis/005930.KS?user_id=u-basic&tier=pro", wantStatus: http.StatusOK, wantBody: `"tier":"basic"`, absent: `"technical"`},
		{name: "anonymous pro request is free", path: "/api/analysis/005930.KS?tier=pro", wantStatus: http.StatusOK, wantBody: `"tier":"free"`, absent: `"technical"`},
		{name: "unknown subscriber", path: "/api/analysis/005930.KS?user_id=ghost", wantStatus: http.StatusNotFound},
		{name: "tier lookup failure", path: "/api/analysis/005930.KS?user_id=broken", wantStatus: http.StatusInternalServerError},
		{name: "missing symbol", path: "/api/analysis/", wantStatus: http.StatusBadRequest},
		{name: "invalid symbol", analyzer: fakeAnalyzer{err: fmt.Errorf("%w: %q", pipeline.ErrInvalidSymbol, "??")}, path: "/api/analysis/x", wantStatus: http.StatusBadRequest},
		{name: "upstream failure", analyzer: fakeAnalyzer{err: errors.New("timeout")}, path: "/api/analysis/AAPL", wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAnalysisHandler(tt.analyzer, fakeSearcher{}, testTiers, arbor.NewLogger())
			rec := httptest.NewRecorder()
			h.AnalyzeHandler(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.absent != "" {
				assert.NotContains(t, rec.Body.String(), tt.absent)
			}
		})
	}
}

func TestAnalysisHandler_Search(t *testing.T) {
	h := NewAnalysisHandler(fakeAnalyzer{}, fakeSearcher{}, testTiers, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.SearchHandler(rec, httptest.NewRequest(http.MethodGet, "/api/symbols/search?q=samsung", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "005930.KS")

	rec = httptest.NewRecorder()
	h.SearchHandler(rec, httptest.NewRequest(http.MethodGet, "/api/symbols/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewAnalysisHandler(fakeAnalyzer{}, nil, testTiers, arbor.NewLogger()).SearchHandler(rec, httptest.NewRequest(http.MethodGet, "/api/symbols/search?q=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type mockWatchlistService struct {
	mock.Mock
}

func (m *mockWatchlistService) List(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.WatchlistItem)
	return items, args.Error(1)
}

func (m *mockWatchlistService) Add(ctx context.Context, userID, rawSymbol, name string) (*models.WatchlistItem, error) {
	args := m.Called(ctx, userID, rawSymbol, name)
	item, _ := args.Get(0).(*models.WatchlistItem)
	return item, args.Error(1)
}

func (m *mockWatchlistService) Remove(ctx context.Context, userID, itemID string) error {
	return m.Called(ctx, userID, itemID).Error(0)
}

func TestWatchlistHandler_Add(t *testing.T) {
	tests := []struct {
		name       string
		symbol     string
		err        error
		wantStatus int
	}{
		{name: "created", symbol: "005930", wantStatus: http.StatusCreated},
		{name: "duplicate", symbol: "005930.KS", err: interfaces.ErrDuplicate, wantStatus: http.StatusConflict},
		{name: "limit", symbol: "AAPL", err: interfaces.ErrWatchlistLimit, wantStatus: http.StatusUnprocessableEntity},
		{name: "invalid", symbol: "!", err: watchlist.ErrInvalidSymbol, wantStatus: http.StatusBadRequest},
		{name: "unknown user", symbol: "MSFT", err: fmt.Errorf("failed to load subscriber: %w", interfaces.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "store failure", symbol: "TSLA", err: errors.New("disk"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWatchlistService{}
			var item *models.WatchlistItem
			if tt.err == nil {
				item = &models.WatchlistItem{ID: "wl_1", UserID: "u1", Symbol: "005930.KS", IsActive: true}
			}
			svc.On("Add", mock.Anything, "u1", tt.symbol, "삼성전자").Return(item, tt.err)

			h := NewWatchlistHandler(svc, arbor.NewLogger())
			body := fmt.Sprintf(`{"user_id":"u1","symbol":%q,"name":"삼성전자"}`, tt.symbol)
			rec := httptest.NewRecorder()
			h.AddHandler(rec, httptest.NewRequest(http.MethodPost, "/api/watchlist", strings.NewReader(body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestWatchlistHandler_ListAndRemove(t *testing.T) {
	svc := &mockWatchlistService{}
	svc.On("List", mock.Anything, "u1").Return([]models.WatchlistItem{{ID: "wl_1", Symbol: "AAPL"}}, nil)
	svc.On("Remove", mock.Anything, "u1", "wl_1").Return(nil)
	svc.On("Remove", mock.Anything, "u1", "wl_2").Return(interfaces.ErrNotFound)
	h := NewWatchlistHandler(svc, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/watchlist?user_id=u1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AAPL")

	rec = httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/watchlist", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.RemoveHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/watchlist/wl_1?user_id=u1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.RemoveHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/watchlist/wl_2?user_id=u1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIHandler(t *testing.T) {
	h := NewAPIHandler(arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	h.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Contains(t, rec.Body.String(), `"version"`)

	rec = httptest.NewRecorder()
	h.NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
