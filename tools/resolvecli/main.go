// resolvecli resolves a single title from the command line and prints the
// resulting stream descriptor as JSON. Useful for probing source health
// without running the full server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"streamscout/config"
	"streamscout/models"
	"streamscout/services/resolver"
)

func main() {
	var (
		configPath = flag.String("config", "cache/settings.json", "path to settings.json")
		mediaType  = flag.String("type", "movie", "movie or show")
		title      = flag.String("title", "", "media title (required)")
		year       = flag.Int("year", 0, "release year")
		imdbID     = flag.String("imdb", "", "IMDb ID (e.g. tt0903747)")
		tmdbID     = flag.String("tmdb", "", "TMDB ID")
		season     = flag.Int("season", 0, "season number (shows)")
		episode    = flag.Int("episode", 0, "episode number (shows)")
		all        = flag.Bool("all", false, "collect streams from every source instead of first success")
		order      = flag.String("order", "", "comma-separated source-id order override")
	)
	flag.Parse()

	if *title == "" {
		log.Fatal("-title is required")
	}

	mgr := config.NewManager(*configPath)
	settings, err := mgr.Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	media := models.MediaDescriptor{
		Type:        models.MediaType(*mediaType),
		Title:       *title,
		ReleaseYear: *year,
		IMDBID:      *imdbID,
		TMDBID:      *tmdbID,
	}
	if media.Type == models.MediaTypeShow {
		media.Season = &models.SeasonRef{Number: *season}
		media.Episode = &models.EpisodeRef{Number: *episode}
	}
	if err := media.Validate(); err != nil {
		log.Fatalf("invalid media: %v", err)
	}

	var client *http.Client
	if settings.Resolver.ImpersonateBrowser {
		client = resolver.NewBrowserClient()
	}
	fetcher := resolver.NewHTTPFetcher(client, nil)
	var proxyFetcher resolver.Fetcher
	if settings.Resolver.ProxyURL != "" {
		proxyFetcher, err = resolver.NewProxyFetcher(settings.Resolver.ProxyURL, fetcher)
		if err != nil {
			log.Fatalf("proxy fetcher: %v", err)
		}
	}

	registry := resolver.BuildRegistry(settings)
	runner := resolver.NewRunner(registry, resolver.RunnerConfig{
		Fetcher:          fetcher,
		ProxyFetcher:     proxyFetcher,
		PerSourceTimeout: time.Duration(settings.Resolver.PerSourceTimeoutMs) * time.Millisecond,
		CollectTimeout:   time.Duration(settings.Resolver.CollectTimeoutMs) * time.Millisecond,
		MaxEmbedDepth:    settings.Resolver.MaxEmbedDepth,
	})

	opts := resolver.Options{}
	if *order != "" {
		for _, id := range strings.Split(*order, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				opts.Order = append(opts.Order, trimmed)
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *all {
		results, err := runner.ResolveAll(ctx, media, opts)
		if err != nil {
			log.Fatalf("resolve failed: %v", err)
		}
		_ = enc.Encode(results)
		return
	}

	result, err := runner.ResolveStream(ctx, media, opts)
	if err != nil {
		log.Fatalf("resolve failed: %v", err)
	}
	_ = enc.Encode(result)
}
