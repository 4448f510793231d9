package delivery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// PublishRunner fans a post out to every publisher with the shared retry policy
type PublishRunner struct {
	publishers []interfaces.Publisher
	retry      *common.RetryPolicy
	logger     arbor.ILogger

	mu            sync.Mutex
	authenticated map[string]bool
}

// NewPublishRunner creates a runner for the given publishers
func NewPublishRunner(publishers []interfaces.Publisher, retry *common.RetryPolicy, logger arbor.ILogger) *PublishRunner {
	if retry == nil {
		retry = common.NewRetryPolicy(common.RetryConfig{})
	}
	return &PublishRunner{
		publishers:    publishers,
		retry:         retry,
		logger:        logger,
		authenticated: make(map[string]bool),
	}
}

// Publishers returns the configured platform names
func (r *PublishRunner) Publishers() []string {
	names := make([]string, len(r.publishers))
	for i, p := range r.publishers {
		names[i] = p.Name()
	}
	return names
}

// PublishAll publishes to every platform concurrently. It never returns an error;
// each platform reports its own PublishResult.
func (r *PublishRunner) PublishAll(ctx context.Context, post interfaces.BlogPost) []models.PublishResult {
	results := make([]models.PublishResult, len(r.publishers))
	var wg sync.WaitGroup

	for i, p := range r.publishers {
		i, p := i, p
		results[i] = models.PublishResult{Platform: p.Name(), Error: "publish did not complete"}
		wg.Add(1)
		common.SafeGo(r.logger, &wg, "publish-"+p.Name(), func() {
			results[i] = r.publishOne(ctx, p, post)
		})
	}

	wg.Wait()
	return results
}

func (r *PublishRunner) publishOne(ctx context.Context, p interfaces.Publisher, post interfaces.BlogPost) models.PublishResult {
	result := models.PublishResult{Platform: p.Name()}

	if err := r.ensureAuthenticated(ctx, p); err != nil {
		result.Error = err.Error()
		r.logger.Error().Err(err).Str("platform", p.Name()).Msg("Publisher authentication failed")
		return result
	}

	transformed, err := p.Transform(post)
	if err != nil {
		result.Error = fmt.Sprintf("transform failed: %v", err)
		r.logger.Error().Err(err).Str("platform", p.Name()).Msg("Publisher transform failed")
		return result
	}

	var postID, postURL string
	attempts, err := r.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		id, url, err := p.Publish(ctx, transformed)
		if err != nil {
			r.logger.Warn().Err(err).Str("platform", p.Name()).Int("attempt", attempt).Msg("Publish attempt failed")
			return err
		}
		postID, postURL = id, url
		return nil
	})
	result.Attempts = attempts

	if err != nil {
		result.Error = err.Error()
		r.logger.Error().Err(err).Str("platform", p.Name()).Int("attempts", attempts).Msg("Publishing failed")
		return result
	}

	result.Success = true
	result.PostID = postID
	result.PostURL = postURL
	r.logger.Info().Str("platform", p.Name()).Str("post_url", postURL).Int("attempts", attempts).Msg("Post published")
	return result
}

func (r *PublishRunner) ensureAuthenticated(ctx context.Context, p interfaces.Publisher) error {
	r.mu.Lock()
	done := r.authenticated[p.Name()]
	r.mu.Unlock()
	if done {
		return nil
	}

	if _, err := r.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		return p.Authenticate(ctx)
	}); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	r.mu.Lock()
	r.authenticated[p.Name()] = true
	r.mu.Unlock()
	return nil
}

// AnySucceeded reports whether at least one platform published
func AnySucceeded(results []models.PublishResult) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}

var slugPattern = regexp.MustCompile(`[^a-z0-9가-힣]+`)

// Slugify builds a URL slug from a title, keeping Hangul
func Slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "post"
	}
	return slug
}

func isPermanentStatus(status int) bool {
	return status >= 400 && status < 500 && status != 408 && status != 429
}
