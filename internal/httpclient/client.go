package httpclient

import (
	"net/http"
	"time"
)

// DefaultUserAgent is sent when a caller does not configure one
const DefaultUserAgent = "briefing/1.0 (+https://github.com/ternarybob/briefing)"

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// NewUserAgentClient returns a client that stamps every request with userAgent
func NewUserAgentClient(timeout time.Duration, userAgent string) *http.Client {
	client := NewDefaultHTTPClient(timeout)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	client.Transport = &userAgentTransport{base: http.DefaultTransport, userAgent: userAgent}
	return client
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
