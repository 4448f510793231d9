package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ternarybob/briefing/internal/briefing"
	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/httpclient"
	"github.com/ternarybob/briefing/internal/interfaces"
)

// RESTPublisher posts HTML articles to a WordPress-compatible posts endpoint using OAuth2 client credentials
type RESTPublisher struct {
	config common.RESTBlogConfig
	oauth  *clientcredentials.Config
	base   *http.Client
	logger arbor.ILogger
}

type restPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
	Slug    string `json:"slug,omitempty"`
	Date    string `json:"date,omitempty"`
}

type restPostResponse struct {
	ID   json.Number `json:"id"`
	Link string      `json:"link"`
}

// NewRESTPublisher returns nil when endpoint or client credentials are missing
func NewRESTPublisher(config common.RESTBlogConfig, logger arbor.ILogger) *RESTPublisher {
	if len(config.MissingKeys()) > 0 {
		return nil
	}
	if config.Status == "" {
		config.Status = "publish"
	}
	return &RESTPublisher{
		config: config,
		oauth: &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
			Scopes:       config.Scopes,
		},
		base:   httpclient.NewDefaultHTTPClient(config.Timeout),
		logger: logger,
	}
}

// Name returns the platform name
func (p *RESTPublisher) Name() string {
	return "rest"
}

func (p *RESTPublisher) withBase(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.base)
}

// Authenticate fetches an access token from the token endpoint
func (p *RESTPublisher) Authenticate(ctx context.Context) error {
	if _, err := p.oauth.Token(p.withBase(ctx)); err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && isPermanentStatus(retrieveErr.Response.StatusCode) {
			return common.Permanent(fmt.Errorf("token request rejected: %w", err))
		}
		return fmt.Errorf("token request failed: %w", err)
	}
	return nil
}

// Transform converts the markdown body to HTML
func (p *RESTPublisher) Transform(post interfaces.BlogPost) (interfaces.BlogPost, error) {
	html, err := briefing.MarkdownToHTML(post.Body)
	if err != nil {
		return interfaces.BlogPost{}, err
	}
	out := post
	out.Body = html
	if out.Slug == "" {
		out.Slug = Slugify(post.Title)
	}
	return out, nil
}

// Publish creates the post and returns its id and public link
func (p *RESTPublisher) Publish(ctx context.Context, post interfaces.BlogPost) (string, string, error) {
	payload := restPostRequest{
		Title:   post.Title,
		Content: post.Body,
		Status:  p.config.Status,
		Slug:    post.Slug,
	}
	if !post.Date.IsZero() {
		payload.Date = post.Date.Format("2006-01-02T15:04:05")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", "", common.Permanent(fmt.Errorf("failed to marshal post: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", "", common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := p.oauth.Client(p.withBase(ctx))
	client.Timeout = p.base.Timeout

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		err := fmt.Errorf("blog API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if isPermanentStatus(resp.StatusCode) {
			return "", "", common.Permanent(err)
		}
		return "", "", err
	}

	// The post exists once the API answers 2xx; retrying would publish it twice
	var result restPostResponse
	if err := json.Unmarshal(body, &result); err != nil {
		p.logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("Blog post created but response was not readable")
		return "", "", nil
	}
	return result.ID.String(), result.Link, nil
}
