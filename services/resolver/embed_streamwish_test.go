package resolver

import (
	"context"
	"errors"
	"testing"

	"streamscout/models"
)

// A p.a.c.k.e.r-packed jwplayer setup of the shape streamwish hosts serve.
const streamwishEmbedPage = `<html><script>eval(function(p,a,c,k,e,d){e=function(c){return c};if(!''.replace(/^/,String)){while(c--){d[c]=k[c]||c}k=[function(e){return d[e]}];e=function(){return'\\w+'};c=1};while(c--){if(k[c]){p=p.replace(new RegExp('\\b'+e(c)+'\\b','g'),k[c])}}return p}('0("1").2({3:[{4:"5",6:"7"},{4:"8",6:"9"}]})',10,10,'jwplayer|player|setup|sources|file|https://cdn.example/v/720.mp4|label|720p|https://cdn.example/v/1080.mp4|1080p'.split('|'),0,{}))</script></html>`

func TestStreamwishResolveEmbed(t *testing.T) {
	fetcher := fetcherFunc(func(_ context.Context, req Request) (*Response, error) {
		if req.URL != "https://wishhost.example/e/def456" {
			t.Fatalf("unexpected fetch %s", req.URL)
		}
		return &Response{StatusCode: 200, Body: []byte(streamwishEmbedPage)}, nil
	})

	ref := EmbedRef{ResolverID: "streamwish", URL: "https://wishhost.example/e/def456"}
	embeds, err := StreamwishEmbed{}.ResolveEmbed(context.Background(), ref, fetcher)
	if err != nil {
		t.Fatalf("resolve embed: %v", err)
	}
	if len(embeds) != 1 || embeds[0].Stream == nil {
		t.Fatalf("expected one final stream, got %+v", embeds)
	}

	stream := embeds[0].Stream
	if stream.Type != models.StreamTypeFile {
		t.Fatalf("expected file stream, got %q", stream.Type)
	}
	if got := stream.Qualities[models.Quality720].URL; got != "https://cdn.example/v/720.mp4" {
		t.Fatalf("missing 720 quality, got %q", got)
	}
	if got := stream.Qualities[models.Quality1080].URL; got != "https://cdn.example/v/1080.mp4" {
		t.Fatalf("missing 1080 quality, got %q", got)
	}
	if stream.Headers["Referer"] != ref.URL {
		t.Fatalf("playback must use the embed page as referer, got %q", stream.Headers["Referer"])
	}
	if err := stream.Validate(); err != nil {
		t.Fatalf("resolved stream must validate: %v", err)
	}
}

func TestStreamwishUnpackedWithoutFilesIsParseError(t *testing.T) {
	// Packs to a setup with no file declarations at all.
	page := `<script>eval(function(p,a,c,k,e,d){e=function(c){return c};if(!''.replace(/^/,String)){while(c--){d[c]=k[c]||c}k=[function(e){return d[e]}];e=function(){return'\\w+'};c=1};while(c--){if(k[c]){p=p.replace(new RegExp('\\b'+e(c)+'\\b','g'),k[c])}}return p}('0("1")',2,2,'jwplayer|player'.split('|'),0,{}))</script>`
	fetcher := fetcherFunc(func(context.Context, Request) (*Response, error) {
		return &Response{StatusCode: 200, Body: []byte(page)}, nil
	})
	_, err := StreamwishEmbed{}.ResolveEmbed(context.Background(), EmbedRef{URL: "https://x.example/e/1"}, fetcher)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindParse {
		t.Fatalf("expected parse error, got %T: %v", err, err)
	}
}

func TestStreamwishPlainPageIsParseError(t *testing.T) {
	fetcher := fetcherFunc(func(context.Context, Request) (*Response, error) {
		return &Response{StatusCode: 200, Body: []byte(`<html>file deleted</html>`)}, nil
	})
	_, err := StreamwishEmbed{}.ResolveEmbed(context.Background(), EmbedRef{URL: "https://x.example/e/1"}, fetcher)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindParse {
		t.Fatalf("expected parse error, got %T: %v", err, err)
	}
}

func TestStreamwishUpstreamStatusClassified(t *testing.T) {
	fetcher := fetcherFunc(func(context.Context, Request) (*Response, error) {
		return &Response{StatusCode: 503, Body: []byte("maintenance")}, nil
	})
	_, err := StreamwishEmbed{}.ResolveEmbed(context.Background(), EmbedRef{URL: "https://x.example/e/1"}, fetcher)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindUpstream {
		t.Fatalf("expected upstream error, got %T: %v", err, err)
	}
}
