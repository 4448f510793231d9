package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
)

type flakyPublisher struct {
	name      string
	failures  int32
	permanent bool
	authErr   error
	calls     atomic.Int32
	authCalls atomic.Int32
}

func (p *flakyPublisher) Name() string { return p.name }

func (p *flakyPublisher) Authenticate(ctx context.Context) error {
	p.authCalls.Add(1)
	return p.authErr
}

func (p *flakyPublisher) Transform(post interfaces.BlogPost) (interfaces.BlogPost, error) {
	post.Body = "[" + p.name + "] " + post.Body
	return post, nil
}

func (p *flakyPublisher) Publish(ctx context.Context, post interfaces.BlogPost) (string, string, error) {
	n := p.calls.Add(1)
	if n <= p.failures {
		err := errors.New("upstream 503")
		if p.permanent {
			return "", "", common.Permanent(err)
		}
		return "", "", err
	}
	return "id-" + p.name, "https://blog/" + p.name, nil
}

func noSleepRetry() *common.RetryPolicy {
	return common.NewRetryPolicy(common.RetryConfig{MaxAttempts: 3}).
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
}

func TestPublishAll(t *testing.T) {
	recovers := &flakyPublisher{name: "recovers", failures: 2}
	down := &flakyPublisher{name: "down", failures: 10}
	rejected := &flakyPublisher{name: "rejected", failures: 10, permanent: true}
	noAuth := &flakyPublisher{name: "noauth", authErr: common.Permanent(errors.New("bad credentials"))}

	runner := NewPublishRunner([]interfaces.Publisher{recovers, down, rejected, noAuth}, noSleepRetry(), arbor.NewLogger())
	results := runner.PublishAll(context.Background(), interfaces.BlogPost{Title: "t", Body: "b"})

	require.Len(t, results, 4)
	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, "https://blog/recovers", results[0].PostURL)

	assert.False(t, results[1].Success)
	assert.Equal(t, 3, results[1].Attempts)
	assert.Contains(t, results[1].Error, "503")

	assert.False(t, results[2].Success)
	assert.Equal(t, 1, results[2].Attempts)

	assert.False(t, results[3].Success)
	assert.Contains(t, results[3].Error, "bad credentials")
	assert.Equal(t, int32(0), noAuth.calls.Load())

	assert.True(t, AnySucceeded(results))
	assert.Equal(t, []string{"recovers", "down", "rejected", "noauth"}, runner.Publishers())

	// authentication happens once per publisher
	runner.PublishAll(context.Background(), interfaces.BlogPost{Title: "t"})
	assert.Equal(t, int32(1), recovers.authCalls.Load())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "데일리-마켓-브리핑-2026-10-16", Slugify("데일리 마켓 브리핑 2026-10-16"))
	assert.Equal(t, "post", Slugify("!!!"))
}

func TestGitHubPublisher(t *testing.T) {
	var committed map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/user":
			w.Write([]byte(`{"login":"bot"}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/repos/acme/blog/contents/"):
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not Found"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/repos/acme/blog/contents/_posts/2026-10-16-daily.md":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&committed))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"content":{"html_url":"https://github.com/acme/blog/blob/main/_posts/2026-10-16-daily.md"},"commit":{"sha":"abc123"}}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer server.Close()

	cfg := common.GitHubBlogConfig{Owner: "acme", Repo: "blog", SiteURL: "https://acme.github.io/"}
	p, err := newGitHubPublisher(github.NewClient(nil), cfg, arbor.NewLogger()).WithBaseURL(server.URL)
	require.NoError(t, err)

	require.NoError(t, p.Authenticate(context.Background()))

	post, err := p.Transform(interfaces.BlogPost{
		Title: "Daily",
		Body:  "# 브리핑",
		Tags:  []string{"market"},
		Date:  time.Date(2026, 10, 16, 7, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(post.Body, "---\ntitle: \"Daily\"\n"))
	assert.Contains(t, post.Body, `tags: ["market"]`)

	id, url, err := p.Publish(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
	assert.Equal(t, "https://acme.github.io/2026/10/16/daily/", url)
	assert.Equal(t, "main", committed["branch"])
	assert.Nil(t, committed["sha"])
}

func TestGitHubPublisher_ClientErrorsArePermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer server.Close()

	p, err := newGitHubPublisher(github.NewClient(nil), common.GitHubBlogConfig{Owner: "a", Repo: "b"}, arbor.NewLogger()).WithBaseURL(server.URL)
	require.NoError(t, err)

	attempts, err := noSleepRetry().Do(context.Background(), func(ctx context.Context, attempt int) error {
		return p.Authenticate(ctx)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRESTPublisher(t *testing.T) {
	var posted restPostRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
		case "/wp/v2/posts":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":42,"link":"https://blog.example.com/daily"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	assert.Nil(t, NewRESTPublisher(common.RESTBlogConfig{Endpoint: server.URL}, arbor.NewLogger()))

	p := NewRESTPublisher(common.RESTBlogConfig{
		Endpoint:     server.URL + "/wp/v2/posts",
		TokenURL:     server.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
	}, arbor.NewLogger())
	require.NotNil(t, p)
	require.NoError(t, p.Authenticate(context.Background()))

	post, err := p.Transform(interfaces.BlogPost{Title: "Daily", Body: "## 주요 뉴스\n\n- item"})
	require.NoError(t, err)
	assert.Contains(t, post.Body, "<h2>주요 뉴스</h2>")
	assert.Equal(t, "daily", post.Slug)

	id, url, err := p.Publish(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, "https://blog.example.com/daily", url)
	assert.Equal(t, "publish", posted.Status)
	assert.Contains(t, posted.Content, "<li>item</li>")
}

func TestRESTPublisher_UnreadableCreatedResponseIsNotRetried(t *testing.T) {
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
		case "/wp/v2/posts":
			posts.Add(1)
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`<html>created</html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewRESTPublisher(common.RESTBlogConfig{
		Endpoint:     server.URL + "/wp/v2/posts",
		TokenURL:     server.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
	}, arbor.NewLogger())
	require.NotNil(t, p)

	results := NewPublishRunner([]interfaces.Publisher{p}, noSleepRetry(), arbor.NewLogger()).
		PublishAll(context.Background(), interfaces.BlogPost{Title: "Daily", Body: "본문"})

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Empty(t, results[0].PostID)
	assert.Equal(t, int32(1), posts.Load())
}
