package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is the transport-neutral request a source hands to its fetcher.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values
	Body    []byte
}

// Response is the buffered result of a fetch. FinalURL reflects redirects.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
}

// NetworkError wraps a transport-level failure (connection, DNS, TLS,
// deadline). Sources fall back on it; it never reaches the caller raw.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// Fetcher is the pluggable HTTP transport every source issues requests
// through. No retry happens at this layer; retry and fallback policy live
// above it.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

const maxResponseBytes = 10 << 20 // scraped pages and manifests, never media

// HTTPFetcher issues requests directly from the local network context.
// Caller-supplied default headers are merged beneath request headers;
// request-specific values win on conflict.
type HTTPFetcher struct {
	client   *http.Client
	defaults map[string]string
}

// NewHTTPFetcher builds a standard fetcher. A nil client falls back to a
// plain http.Client with a transport timeout; callers that scrape
// fingerprint-sensitive sites should pass NewBrowserClient(). Nil defaults
// fall back to ordinary browser headers; pass an empty map to send none.
func NewHTTPFetcher(client *http.Client, defaults map[string]string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if defaults == nil {
		defaults = browserDefaultHeaders()
	}
	return &HTTPFetcher{client: client, defaults: defaults}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &NetworkError{URL: req.URL, Err: err}
	}
	for k, v := range f.defaults {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{URL: req.URL, Err: err}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// ProxyFetcher routes every request through a configured intermediary, for
// manifests and pages that must appear to originate from a specific egress
// point. The destination URL travels as a query parameter; original request
// headers are forwarded for the proxy to replay.
type ProxyFetcher struct {
	base  *url.URL
	inner Fetcher
}

// NewProxyFetcher wraps inner with the proxy base URL. The base is set once
// at startup and never mutated during a run.
func NewProxyFetcher(baseURL string, inner Fetcher) (*ProxyFetcher, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid proxy url %q: %v", baseURL, err)}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &ConfigError{Reason: fmt.Sprintf("proxy url %q must be absolute", baseURL)}
	}
	return &ProxyFetcher{base: base, inner: inner}, nil
}

func (p *ProxyFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	destination := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(destination, "?") {
			sep = "&"
		}
		destination += sep + req.Query.Encode()
	}

	proxied := *p.base
	q := proxied.Query()
	q.Set("destination", destination)
	proxied.RawQuery = q.Encode()

	return p.inner.Fetch(ctx, Request{
		Method:  req.Method,
		URL:     proxied.String(),
		Headers: req.Headers,
		Body:    req.Body,
	})
}

// browserDefaultHeaders are merged beneath source headers so scraped sites
// see ordinary browser traffic.
func browserDefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"Accept":          "application/json,text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
}
