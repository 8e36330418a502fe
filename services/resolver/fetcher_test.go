package resolver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newFakeClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func okResponse(req *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func TestHTTPFetcherMergesDefaultHeadersBeneathRequest(t *testing.T) {
	var captured http.Header
	client := newFakeClient(func(req *http.Request) (*http.Response, error) {
		captured = req.Header.Clone()
		return okResponse(req, "ok"), nil
	})

	f := NewHTTPFetcher(client, map[string]string{
		"User-Agent": "default-agent",
		"Referer":    "https://default.example/",
	})
	resp, err := f.Fetch(context.Background(), Request{
		URL:     "https://site.example/page",
		Headers: map[string]string{"Referer": "https://override.example/"},
	})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "ok" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
	if got := captured.Get("User-Agent"); got != "default-agent" {
		t.Fatalf("expected default user agent, got %q", got)
	}
	// Request-specific headers win on conflict.
	if got := captured.Get("Referer"); got != "https://override.example/" {
		t.Fatalf("expected request referer to win, got %q", got)
	}
}

func TestHTTPFetcherWrapsTransportErrors(t *testing.T) {
	client := newFakeClient(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	f := NewHTTPFetcher(client, map[string]string{})
	_, err := f.Fetch(context.Background(), Request{URL: "https://down.example/"})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if ne.URL != "https://down.example/" {
		t.Fatalf("network error should carry the target url, got %q", ne.URL)
	}
}

func TestProxyFetcherRewritesDestination(t *testing.T) {
	var captured *http.Request
	client := newFakeClient(func(req *http.Request) (*http.Response, error) {
		captured = req
		return okResponse(req, "#EXTM3U"), nil
	})
	inner := NewHTTPFetcher(client, map[string]string{})

	proxy, err := NewProxyFetcher("https://proxy.example/fetch", inner)
	if err != nil {
		t.Fatalf("proxy fetcher: %v", err)
	}
	_, err = proxy.Fetch(context.Background(), Request{
		URL:     "https://cdn.example/master.m3u8",
		Headers: map[string]string{"Referer": "https://site.example/"},
	})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if captured.URL.Host != "proxy.example" || captured.URL.Path != "/fetch" {
		t.Fatalf("request did not route through proxy: %s", captured.URL)
	}
	if got := captured.URL.Query().Get("destination"); got != "https://cdn.example/master.m3u8" {
		t.Fatalf("unexpected destination param %q", got)
	}
	// Original headers are forwarded for the proxy to replay.
	if got := captured.Header.Get("Referer"); got != "https://site.example/" {
		t.Fatalf("expected forwarded referer, got %q", got)
	}
}

func TestNewProxyFetcherRejectsRelativeURL(t *testing.T) {
	_, err := NewProxyFetcher("/not-absolute", NewHTTPFetcher(nil, map[string]string{}))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
}
