package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/briefing/internal/briefing"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/pipeline"
	"github.com/ternarybob/briefing/internal/scheduler"
)

type fakeAnalyzer struct {
	gotTier models.Tier
	err     error
}

func (f *fakeAnalyzer) AnalyzeSymbol(ctx context.Context, symbol string, tier models.Tier) (briefing.SymbolView, error) {
	f.gotTier = tier
	if f.err != nil {
		return briefing.SymbolView{}, f.err
	}
	return briefing.SymbolView{
		Tier:  tier,
		Stock: &briefing.StockBrief{Symbol: symbol, Name: "Samsung Electronics", Price: 71200, ChangePercent: 1.25},
	}, nil
}

type fakeRuns struct {
	gotOpts pipeline.RunOptions
	err     error
	history []models.PublishingRunResult
}

func (f *fakeRuns) RunNow(ctx context.Context, opts pipeline.RunOptions) (models.PublishingRunResult, error) {
	f.gotOpts = opts
	if f.err != nil {
		return models.PublishingRunResult{}, f.err
	}
	return models.PublishingRunResult{RunID: "run_1", Trigger: opts.Trigger, Status: models.RunStatusSuccess, Success: true}, nil
}

func (f *fakeRuns) History(limit int) []models.PublishingRunResult { return f.history }
func (f *fakeRuns) Stats() models.RunStats                         { return models.RunStats{TotalRuns: 2, SuccessRate: 50} }
func (f *fakeRuns) NextRun() time.Time                             { return time.Time{} }
func (f *fakeRuns) Running() bool                                  { return false }

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleAnalyzeSymbol(t *testing.T) {
	logger := arbor.NewLogger()

	t.Run("defaults to pro tier", func(t *testing.T) {
		analyzer := &fakeAnalyzer{}
		result, err := handleAnalyzeSymbol(analyzer, logger)(context.Background(), callRequest(map[string]any{"symbol": "005930"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, models.TierPro, analyzer.gotTier)
		assert.Contains(t, resultText(t, result), "Samsung Electronics")
	})

	t.Run("explicit tier", func(t *testing.T) {
		analyzer := &fakeAnalyzer{}
		_, err := handleAnalyzeSymbol(analyzer, logger)(context.Background(), callRequest(map[string]any{"symbol": "AAPL", "tier": "basic"}))
		require.NoError(t, err)
		assert.Equal(t, models.TierBasic, analyzer.gotTier)
	})

	t.Run("missing symbol", func(t *testing.T) {
		result, err := handleAnalyzeSymbol(&fakeAnalyzer{}, logger)(context.Background(), callRequest(map[string]any{}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("analysis failure is a tool error", func(t *testing.T) {
		analyzer := &fakeAnalyzer{err: errors.New("no data")}
		result, err := handleAnalyzeSymbol(analyzer, logger)(context.Background(), callRequest(map[string]any{"symbol": "005930"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "no data")
	})
}

func TestHandleRunBriefing(t *testing.T) {
	logger := arbor.NewLogger()

	t.Run("runs with mcp trigger", func(t *testing.T) {
		runs := &fakeRuns{}
		result, err := handleRunBriefing(runs, logger)(context.Background(), callRequest(map[string]any{"briefing_text": "# Today"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, pipeline.TriggerMCP, runs.gotOpts.Trigger)
		assert.Equal(t, "# Today", runs.gotOpts.BriefingText)
		assert.Contains(t, resultText(t, result), "run_1")
	})

	t.Run("conflict while running", func(t *testing.T) {
		runs := &fakeRuns{err: scheduler.ErrRunInProgress}
		result, err := handleRunBriefing(runs, logger)(context.Background(), callRequest(nil))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "already in progress")
	})
}

func TestHandleListRunsAndStats(t *testing.T) {
	logger := arbor.NewLogger()
	runs := &fakeRuns{history: []models.PublishingRunResult{
		{RunID: "run_b", Trigger: "cron", Status: models.RunStatusPartial, NewsCount: 4},
		{RunID: "run_a", Trigger: "manual", Status: models.RunStatusSuccess, NewsCount: 7},
	}}

	result, err := handleListRuns(runs, logger)(context.Background(), callRequest(map[string]any{"limit": 5}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Recent runs (2)")
	assert.Less(t, strings.Index(text, "run_b"), strings.Index(text, "run_a"))

	result, err = handleRunStats(runs, logger)(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "50.0%")
}
