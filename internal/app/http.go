package app

import (
	"net"
	"net/http"
	"time"

	"github.com/hyperifyio/xmirror/internal/fetch"
)

// newHTTPClient returns a client with a dedicated transport. Per-request
// timeouts are applied by fetch.Client; the transport only bounds dialing
// and handshakes.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// newFetchClient wires the shared retry policy, user agent and timeout.
func newFetchClient(cfg Config) *fetch.Client {
	return &fetch.Client{
		HTTPClient:        newHTTPClient(),
		UserAgent:         cfg.UserAgent,
		Retry:             cfg.RetryPolicy(),
		PerRequestTimeout: cfg.HTTPTimeout,
		MaxConcurrent:     16,
	}
}
