package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
)

// GeminiService implements LLMService using the Gemini API
type GeminiService struct {
	config  common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	retry   *common.RetryPolicy
}

var _ interfaces.LLMService = (*GeminiService)(nil)

// NewGeminiService creates a Gemini-backed service. Rate-limited calls are retried with the shared policy.
func NewGeminiService(ctx context.Context, config common.GeminiConfig, retry *common.RetryPolicy, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required (set GEMINI_API_KEY, BRIEFING_GEMINI_API_KEY, or gemini.api_key): %w", ErrNotConfigured)
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}

	timeout, err := parseTimeout(config.Timeout)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	if retry == nil {
		retry = common.NewRetryPolicy(common.RetryConfig{})
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
		retry:   retry,
	}, nil
}

// Name returns the provider and model
func (s *GeminiService) Name() string {
	return "gemini/" + s.config.Model
}

// Chat generates a completion, retrying only on rate-limit errors
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	var text string
	attempts, err := s.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.client.Models.GenerateContent(callCtx, s.config.Model, contents, config)
		if err != nil {
			if IsRateLimitError(err) {
				s.logger.Warn().
					Err(err).
					Int("attempt", attempt).
					Dur("api_delay", ExtractRetryDelay(err)).
					Msg("Gemini rate limited, retrying")
				return err
			}
			return common.Permanent(err)
		}

		text = resp.Text()
		if text == "" {
			return common.Permanent(fmt.Errorf("no response generated from Gemini API"))
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Int("attempts", attempts).Msg("Gemini chat completion failed")
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	return text, nil
}
