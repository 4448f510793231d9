package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/briefing/internal/handlers"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/pipeline"
	"github.com/ternarybob/briefing/internal/scheduler"
)

// handleAnalyzeSymbol implements the analyze_symbol tool
func handleAnalyzeSymbol(analyzer handlers.SymbolAnalyzer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || strings.TrimSpace(symbol) == "" {
			return mcp.NewToolResultError("Error: symbol parameter is required"), nil
		}
		tier := models.ParseTier(request.GetString("tier", string(models.TierPro)))

		view, err := analyzer.AnalyzeSymbol(ctx, symbol, tier)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", symbol).Msg("Symbol analysis failed")
			return mcp.NewToolResultError(fmt.Sprintf("Analysis error: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSymbolView(view)), nil
	}
}

// handleSearchSymbols implements the search_symbols tool
func handleSearchSymbols(searcher handlers.SymbolSearcher, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("Error: query parameter is required"), nil
		}
		limit := request.GetInt("limit", 10)
		if limit <= 0 || limit > 50 {
			limit = 50
		}

		matches, err := searcher.Search(ctx, query)
		if err != nil {
			logger.Warn().Err(err).Str("query", query).Msg("Symbol search failed")
			return mcp.NewToolResultError(fmt.Sprintf("Search error: %v", err)), nil
		}
		if len(matches) > limit {
			matches = matches[:limit]
		}
		return mcp.NewToolResultText(formatSymbolMatches(query, matches)), nil
	}
}

// handleRunBriefing implements the run_briefing tool. The call blocks until the run completes.
func handleRunBriefing(runs handlers.RunController, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := pipeline.RunOptions{
			Trigger:      pipeline.TriggerMCP,
			BriefingText: request.GetString("briefing_text", ""),
		}

		result, err := runs.RunNow(ctx, opts)
		if errors.Is(err, scheduler.ErrRunInProgress) {
			return mcp.NewToolResultError("A briefing run is already in progress"), nil
		}
		if err != nil {
			logger.Error().Err(err).Msg("Briefing run failed")
			return mcp.NewToolResultError(fmt.Sprintf("Run error: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRun(result)), nil
	}
}

// handleListRuns implements the list_runs tool
func handleListRuns(runs handlers.RunController, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 10)
		if limit <= 0 || limit > 100 {
			limit = 100
		}
		return mcp.NewToolResultText(formatRunList(runs.History(limit))), nil
	}
}

// handleRunStats implements the run_stats tool
func handleRunStats(runs handlers.RunController, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(formatStats(runs.Stats(), runs.NextRun())), nil
	}
}
