package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/briefing/internal/app"
	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/pipeline"
	"github.com/ternarybob/briefing/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	runOnce      = flag.Bool("run-once", false, "Run one briefing cycle and exit")
	briefingFile = flag.String("briefing-file", "", "Publish this markdown file instead of generating a briefing (with -run-once)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Briefing version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// A missing .env is normal in production where secrets come from the environment
	_ = godotenv.Load()

	if len(configFiles) == 0 {
		if _, err := os.Stat("briefing.toml"); err == nil {
			configFiles = append(configFiles, "briefing.toml")
		} else if _, err := os.Stat("deployments/local/briefing.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/briefing.toml")
		}
	}

	// Startup order: config, CLI overrides, logger, banner
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *serverHost)
	logger := common.InitLogger(config)
	common.PrintBanner(config, logger)

	logger.Debug().
		Str("storage_type", config.Storage.Type).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("schedule", config.Scheduler.Schedule).
		Str("timezone", config.Scheduler.Timezone).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if *runOnce {
		code := runSingleCycle(application, logger)
		_ = application.Close()
		os.Exit(code)
	}

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
	}

	srv := server.New(application)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Str("next_run", formatNextRun(application)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// runSingleCycle executes one manual run and returns the process exit code
func runSingleCycle(application *app.App, logger arbor.ILogger) int {
	opts := pipeline.RunOptions{Trigger: pipeline.TriggerManual}
	if *briefingFile != "" {
		data, err := os.ReadFile(*briefingFile)
		if err != nil {
			logger.Error().Err(err).Str("path", *briefingFile).Msg("Failed to read briefing file")
			return 1
		}
		opts.BriefingText = string(data)
	}

	ctx, stop := signal.NotifyContext(application.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.Scheduler.RunNow(ctx, opts)
	if err != nil {
		logger.Error().Err(err).Msg("Briefing run failed to start")
		return 1
	}

	logger.Info().
		Str("run_id", result.RunID).
		Str("status", string(result.Status)).
		Int("news_count", result.NewsCount).
		Int("emails_sent", result.Emails.Sent).
		Int("errors", len(result.Errors)).
		Msg("Briefing run finished")

	if !result.Success {
		return 1
	}
	return 0
}

func formatNextRun(application *app.App) string {
	next := application.Scheduler.NextRun()
	if next.IsZero() {
		return "not scheduled"
	}
	return next.Format(time.RFC3339)
}
