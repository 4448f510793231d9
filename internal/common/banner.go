package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved runtime settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Briefing", GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("storage", config.Storage.Type).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Str("schedule", config.Scheduler.Schedule).
		Bool("scheduler_enabled", config.Scheduler.Enabled).
		Bool("email", config.EmailConfigured()).
		Bool("telegram", config.TelegramConfigured()).
		Msg("Configuration summary")
}
