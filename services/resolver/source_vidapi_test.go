package resolver

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"streamscout/models"
)

// fetcherFunc adapts a function into a Fetcher for provider tests.
type fetcherFunc func(ctx context.Context, req Request) (*Response, error)

func (f fetcherFunc) Fetch(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

func jsonResponse(status int, body string) *Response {
	return &Response{StatusCode: status, Body: []byte(body)}
}

func TestVidapiResolveMovie(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, req Request) (*Response, error) {
		switch {
		case strings.HasSuffix(req.URL, "/api/search"):
			if got := req.Query.Get("q"); got != "Heat" {
				t.Fatalf("unexpected search query %q", got)
			}
			// The 2013 entry is filtered by the year window; the remake
			// ranks behind the exact title match.
			return jsonResponse(200, `{"results":[
				{"id":"m-77","title":"Heat","year":1995},
				{"id":"m-12","title":"Heat","year":2013},
				{"id":"m-90","title":"Heat Wave Remake","year":1996}
			]}`), nil
		case strings.Contains(req.URL, "/api/media/m-77/sources"):
			return jsonResponse(200, `{
				"sources":[
					{"quality":"1080p","url":"https://cdn.example/1080.mp4","type":"mp4"},
					{"quality":"720p","url":"https://cdn.example/720.mp4","type":"mp4"}
				],
				"captions":[{"url":"https://cdn.example/en.vtt","lang":"en"}]
			}`), nil
		default:
			t.Fatalf("unexpected fetch %s", req.URL)
			return nil, nil
		}
	})

	src := NewVidapiSource("https://vidapi.test")
	embeds, err := src.Resolve(context.Background(), testMovie(), fetcher)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(embeds) != 1 || embeds[0].Stream == nil {
		t.Fatalf("expected one final stream embed, got %+v", embeds)
	}
	stream := embeds[0].Stream
	if stream.Type != models.StreamTypeFile {
		t.Fatalf("expected file stream, got %q", stream.Type)
	}
	if got := stream.Qualities[models.Quality1080].URL; got != "https://cdn.example/1080.mp4" {
		t.Fatalf("missing 1080 quality, got %q", got)
	}
	if len(stream.Captions) != 1 || stream.Captions[0].Language != "en" {
		t.Fatalf("captions not carried over: %+v", stream.Captions)
	}
	if err := stream.Validate(); err != nil {
		t.Fatalf("resolved stream must validate: %v", err)
	}
}

func TestVidapiResolveShowPassesSeasonEpisode(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, req Request) (*Response, error) {
		if strings.HasSuffix(req.URL, "/api/search") {
			return jsonResponse(200, `{"results":[{"id":"s-5","title":"Breaking Bad","year":2008}]}`), nil
		}
		if req.Query.Get("season") != "2" || req.Query.Get("episode") != "5" {
			t.Fatalf("season/episode not forwarded: %v", req.Query)
		}
		return jsonResponse(200, `{"sources":[{"url":"https://cdn.example/master.m3u8","type":"hls"}]}`), nil
	})

	show := models.MediaDescriptor{
		Type: models.MediaTypeShow, Title: "Breaking Bad", ReleaseYear: 2008,
		Season: &models.SeasonRef{Number: 2}, Episode: &models.EpisodeRef{Number: 5},
	}
	embeds, err := NewVidapiSource("https://vidapi.test").Resolve(context.Background(), show, fetcher)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if embeds[0].Stream.Type != models.StreamTypeHLS || embeds[0].Stream.Playlist == "" {
		t.Fatalf("hls source must map to a playlist stream: %+v", embeds[0].Stream)
	}
}

func TestVidapiNoCatalogMatchIsNoResults(t *testing.T) {
	fetcher := fetcherFunc(func(context.Context, Request) (*Response, error) {
		return jsonResponse(200, `{"results":[{"id":"x","title":"Completely Different","year":1960}]}`), nil
	})
	embeds, err := NewVidapiSource("https://vidapi.test").Resolve(context.Background(), testMovie(), fetcher)
	if err != nil {
		t.Fatalf("no catalog match must not be an error: %v", err)
	}
	if len(embeds) != 0 {
		t.Fatalf("expected no results, got %d embeds", len(embeds))
	}
}

func TestVidapiRetriesTransientUpstream(t *testing.T) {
	var calls atomic.Int32
	fetcher := fetcherFunc(func(_ context.Context, req Request) (*Response, error) {
		if strings.HasSuffix(req.URL, "/api/search") {
			if calls.Add(1) == 1 {
				return jsonResponse(503, "upstream busy"), nil
			}
			return jsonResponse(200, `{"results":[{"id":"m-77","title":"Heat","year":1995}]}`), nil
		}
		return jsonResponse(200, `{"sources":[{"quality":"720p","url":"https://cdn.example/720.mp4"}]}`), nil
	})

	embeds, err := NewVidapiSource("https://vidapi.test").Resolve(context.Background(), testMovie(), fetcher)
	if err != nil {
		t.Fatalf("resolve after retry: %v", err)
	}
	if len(embeds) != 1 {
		t.Fatalf("expected a stream after the retry, got %d embeds", len(embeds))
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly one retry, search was fetched %d times", calls.Load())
	}
}

func TestVidapiNotFoundClassified(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, req Request) (*Response, error) {
		if strings.HasSuffix(req.URL, "/api/search") {
			return jsonResponse(200, `{"results":[{"id":"gone","title":"Heat","year":1995}]}`), nil
		}
		return jsonResponse(404, "not found"), nil
	})
	_, err := NewVidapiSource("https://vidapi.test").Resolve(context.Background(), testMovie(), fetcher)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindNotFound {
		t.Fatalf("expected not_found provider error, got %T: %v", err, err)
	}
}

func TestNormalizeQuality(t *testing.T) {
	cases := map[string]models.Quality{
		"1080p":  models.Quality1080,
		"720":    models.Quality720,
		"4K":     models.Quality4K,
		"2160p":  models.Quality4K,
		"480p":   models.Quality480,
		"weird":  models.QualityUnknown,
		"":       models.QualityUnknown,
		" 360p ": models.Quality360,
	}
	for label, want := range cases {
		if got := normalizeQuality(label); got != want {
			t.Fatalf("normalizeQuality(%q) = %q, want %q", label, got, want)
		}
	}
}
