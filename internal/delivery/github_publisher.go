package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
)

// GitHubPublisher commits markdown posts with Jekyll front matter into a GitHub Pages repository
type GitHubPublisher struct {
	client *github.Client
	config common.GitHubBlogConfig
	logger arbor.ILogger
}

// NewGitHubPublisher returns nil when token, owner or repo is missing
func NewGitHubPublisher(ctx context.Context, config common.GitHubBlogConfig, logger arbor.ILogger) *GitHubPublisher {
	if len(config.MissingKeys()) > 0 {
		return nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token})
	return newGitHubPublisher(github.NewClient(oauth2.NewClient(ctx, ts)), config, logger)
}

func newGitHubPublisher(client *github.Client, config common.GitHubBlogConfig, logger arbor.ILogger) *GitHubPublisher {
	if config.Branch == "" {
		config.Branch = "main"
	}
	if config.PostDir == "" {
		config.PostDir = "_posts"
	}
	return &GitHubPublisher{client: client, config: config, logger: logger}
}

// WithBaseURL points the client at another API root, used for GitHub Enterprise and tests
func (p *GitHubPublisher) WithBaseURL(baseURL string) (*GitHubPublisher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	p.client.BaseURL = u
	return p, nil
}

// Name returns the platform name
func (p *GitHubPublisher) Name() string {
	return "github"
}

// Authenticate verifies the token by fetching the authenticated user
func (p *GitHubPublisher) Authenticate(ctx context.Context) error {
	if _, _, err := p.client.Users.Get(ctx, ""); err != nil {
		return classifyGitHubError(fmt.Errorf("github authentication failed: %w", err))
	}
	return nil
}

// Transform prepends Jekyll front matter to the markdown body
func (p *GitHubPublisher) Transform(post interfaces.BlogPost) (interfaces.BlogPost, error) {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %q\n", post.Title)
	fmt.Fprintf(&sb, "date: %s\n", post.Date.Format("2006-01-02 15:04:05 -0700"))
	if len(post.Tags) > 0 {
		quoted := make([]string, len(post.Tags))
		for i, tag := range post.Tags {
			quoted[i] = fmt.Sprintf("%q", tag)
		}
		fmt.Fprintf(&sb, "tags: [%s]\n", strings.Join(quoted, ", "))
	}
	sb.WriteString("---\n\n")
	sb.WriteString(post.Body)

	out := post
	out.Body = sb.String()
	if out.Slug == "" {
		out.Slug = Slugify(post.Title)
	}
	return out, nil
}

// Publish creates or updates the post file and returns the commit SHA and post URL
func (p *GitHubPublisher) Publish(ctx context.Context, post interfaces.BlogPost) (string, string, error) {
	filePath := path.Join(p.config.PostDir, fmt.Sprintf("%s-%s.md", post.Date.Format("2006-01-02"), post.Slug))

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("Publish %s", post.Title)),
		Content: []byte(post.Body),
		Branch:  github.String(p.config.Branch),
	}

	existing, _, resp, err := p.client.Repositories.GetContents(ctx, p.config.Owner, p.config.Repo, filePath,
		&github.RepositoryContentGetOptions{Ref: p.config.Branch})
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
	case resp != nil && resp.StatusCode == http.StatusNotFound:
	case err != nil:
		return "", "", classifyGitHubError(fmt.Errorf("failed to check %s: %w", filePath, err))
	}

	var result *github.RepositoryContentResponse
	if opts.SHA != nil {
		result, _, err = p.client.Repositories.UpdateFile(ctx, p.config.Owner, p.config.Repo, filePath, opts)
	} else {
		result, _, err = p.client.Repositories.CreateFile(ctx, p.config.Owner, p.config.Repo, filePath, opts)
	}
	if err != nil {
		return "", "", classifyGitHubError(fmt.Errorf("failed to commit %s: %w", filePath, err))
	}

	postURL := result.Content.GetHTMLURL()
	if p.config.SiteURL != "" {
		postURL = fmt.Sprintf("%s/%s/%s/", strings.TrimRight(p.config.SiteURL, "/"), post.Date.Format("2006/01/02"), post.Slug)
	}

	p.logger.Debug().Str("path", filePath).Str("sha", result.Commit.GetSHA()).Msg("GitHub post committed")
	return result.Commit.GetSHA(), postURL, nil
}

// classifyGitHubError marks client errors other than rate limits as not retryable
func classifyGitHubError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return err
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && isPermanentStatus(respErr.Response.StatusCode) {
		return common.Permanent(err)
	}
	return err
}
