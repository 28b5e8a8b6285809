package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultUserAgent is sent when Client.UserAgent is empty. Mirrors serve
// rendered previews only to browser-like agents.
const DefaultUserAgent = "Mozilla/5.0 (compatible; xmirror/1.0; +https://github.com/hyperifyio/xmirror)"

// DefaultMaxBodyBytes caps page and JSON bodies read into memory.
const DefaultMaxBodyBytes = 8 << 20

// Response is the final response of a GET after retries and redirects.
type Response struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client wraps http.Client with timeouts, the shared retry policy, a
// redirect policy and an optional concurrency limit.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	Retry      RetryPolicy
	// PerRequestTimeout bounds each attempt. Zero means 15s.
	PerRequestTimeout time.Duration
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes caps bodies read by Get. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	initOnce sync.Once
	rc       *retryablehttp.Client

	// internal limiter initialized on first use when MaxConcurrent > 0
	limiter     chan struct{}
	limiterOnce sync.Once
}

// StatusError is returned when the final response is not 2xx.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (c *Client) retryable() *retryablehttp.Client {
	c.initOnce.Do(func() {
		rc := retryablehttp.NewClient()
		rc.HTTPClient = c.getHTTPClient()
		rc.Logger = newLeveledLogger()
		c.Retry.apply(rc)
		c.rc = rc
	})
	return c.rc
}

func (c *Client) getHTTPClient() *http.Client {
	timeout := c.PerRequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		if base.Timeout == 0 {
			base.Timeout = timeout
		}
		return &base
	}
	return &http.Client{Timeout: timeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a GET with context, user-agent, retry policy and a capped body.
// Non-2xx final responses return a *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := c.do(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		URL:         finalURL(resp, rawURL),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}

// GetJSON is Get plus a check that the body is a JSON document.
func (c *Client) GetJSON(ctx context.Context, rawURL string) ([]byte, error) {
	r, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !json.Valid(r.Body) {
		return nil, fmt.Errorf("invalid json from %s", rawURL)
	}
	return r.Body, nil
}

// Download streams the body of rawURL into dst, reading at most limit bytes
// when limit > 0. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, rawURL string, dst io.Writer, limit int64) (int64, error) {
	resp, err := c.do(ctx, rawURL, "*/*")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var src io.Reader = resp.Body
	if limit > 0 {
		src = io.LimitReader(resp.Body, limit+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("copy body: %w", err)
	}
	if limit > 0 && n > limit {
		return n, fmt.Errorf("body of %s exceeds %d bytes", rawURL, limit)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, rawURL string, accept string) (*http.Response, error) {
	c.acquire()
	defer c.release()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	// Reject non-HTTP(S) schemes early
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.retryable().Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func finalURL(resp *http.Response, fallback string) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return fallback
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		// Messages match what retryablehttp treats as permanent failures.
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported protocol scheme")
		}
		if matchHost(req.URL, stopHosts(req.Context())) {
			return fmt.Errorf("%w: %s", ErrRedirectedToOrigin, req.URL.Host)
		}
		return nil
	}
}

type stopHostsKey struct{}

// WithStopHosts returns a context under which the client refuses to follow
// redirects to any of hosts. The request fails with ErrRedirectedToOrigin
// and is not retried.
func WithStopHosts(ctx context.Context, hosts []string) context.Context {
	if len(hosts) == 0 {
		return ctx
	}
	return context.WithValue(ctx, stopHostsKey{}, hosts)
}

func stopHosts(ctx context.Context) []string {
	hosts, _ := ctx.Value(stopHostsKey{}).([]string)
	return hosts
}

// matchHost compares the host of u, without a leading "www.", to hosts.
func matchHost(u *url.URL, hosts []string) bool {
	if u == nil || len(hosts) == 0 {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, h := range hosts {
		if host == strings.ToLower(strings.TrimSpace(h)) {
			return true
		}
	}
	return false
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
		// should not happen, but avoid blocking
	}
}
