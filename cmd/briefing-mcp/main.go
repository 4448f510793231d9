package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/briefing/internal/app"
	"github.com/ternarybob/briefing/internal/common"
)

func main() {
	defer common.RecoverWithCrashFile()

	_ = godotenv.Load()

	configPath := os.Getenv("BRIEFING_CONFIG")
	if configPath == "" {
		configPath = "briefing.toml"
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console only at warn level; stdout belongs to the MCP transport
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"briefing",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createAnalyzeSymbolTool(), handleAnalyzeSymbol(application.Pipeline, logger))
	mcpServer.AddTool(createSearchSymbolsTool(), handleSearchSymbols(application.Market, logger))
	mcpServer.AddTool(createRunBriefingTool(), handleRunBriefing(application.Scheduler, logger))
	mcpServer.AddTool(createListRunsTool(), handleListRuns(application.Scheduler, logger))
	mcpServer.AddTool(createRunStatsTool(), handleRunStats(application.Scheduler, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
