package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAnalyzeSymbolTool returns the analyze_symbol tool definition
func createAnalyzeSymbolTool() mcp.Tool {
	return mcp.NewTool("analyze_symbol",
		mcp.WithDescription("Analyze one stock symbol at a subscription tier. Pro adds RSI, MACD, Bollinger bands and an LLM read."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Symbol code, e.g. 005930, 005930.KS or AAPL"),
		),
		mcp.WithString("tier",
			mcp.Description("free, basic or pro (default: pro)"),
		),
	)
}

// createSearchSymbolsTool returns the search_symbols tool definition
func createSearchSymbolsTool() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription("Find listed symbols by code or company name"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Code or name fragment"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10, max: 50)"),
		),
	)
}

// createRunBriefingTool returns the run_briefing tool definition
func createRunBriefingTool() mcp.Tool {
	return mcp.NewTool("run_briefing",
		mcp.WithDescription("Run one briefing cycle now and wait for the result. Fails if a run is already in progress."),
		mcp.WithString("briefing_text",
			mcp.Description("Markdown to broadcast and publish instead of generating a briefing"),
		),
	)
}

// createListRunsTool returns the list_runs tool definition
func createListRunsTool() mcp.Tool {
	return mcp.NewTool("list_runs",
		mcp.WithDescription("List recent briefing runs, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10)"),
		),
	)
}

// createRunStatsTool returns the run_stats tool definition
func createRunStatsTool() mcp.Tool {
	return mcp.NewTool("run_stats",
		mcp.WithDescription("Aggregate success rate and per-platform outcomes over recent runs"),
	)
}
