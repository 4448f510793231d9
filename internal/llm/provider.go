package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
)

// ErrNotConfigured is returned when a provider has no API key
var ErrNotConfigured = errors.New("LLM provider not configured")

// NewService builds the configured default provider, falling back to the other
// provider when the default has no key.
func NewService(ctx context.Context, config *common.Config, retry *common.RetryPolicy, logger arbor.ILogger) (interfaces.LLMService, error) {
	order := []common.LLMProvider{common.LLMProviderGemini, common.LLMProviderClaude}
	if config.LLM.DefaultProvider == common.LLMProviderClaude {
		order = []common.LLMProvider{common.LLMProviderClaude, common.LLMProviderGemini}
	}

	var errs []error
	for _, provider := range order {
		var (
			svc interfaces.LLMService
			err error
		)
		switch provider {
		case common.LLMProviderClaude:
			svc, err = NewClaudeService(config.Claude, logger)
		default:
			svc, err = NewGeminiService(ctx, config.Gemini, retry, logger)
		}
		if err == nil {
			if provider != order[0] {
				logger.Warn().
					Str("default", string(order[0])).
					Str("using", string(provider)).
					Msg("Default LLM provider unavailable, using fallback")
			}
			return svc, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("no LLM provider available: %w", errors.Join(errs...))
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 2 * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout duration '%s': %w", s, err)
	}
	return d, nil
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from an error.
// Returns 0 if no delay is found in the error message.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}
