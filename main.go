package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"streamscout/api"
	"streamscout/config"
	"streamscout/handlers"
	"streamscout/services/resolver"
)

func main() {
	configPath := flag.String("config", "", "path to settings.json (default cache/settings.json)")
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("STREAMSCOUT_CONFIG")
	}
	if path == "" {
		path = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(path)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation, mirrored to stdout.
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	runner, registry, err := buildEngine(settings)
	if err != nil {
		log.Fatalf("failed to build resolution engine: %v", err)
	}

	r := mux.NewRouter()
	resultTTL := time.Duration(settings.Cache.ResultTTLMinutes) * time.Minute
	resolveHandler := handlers.NewResolveHandler(runner, registry, resultTTL)
	api.Register(r, resolveHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("streamscout listening on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("shutdown complete")
}

// buildEngine wires fetchers, registry and runner from settings. The proxy
// base URL, timeouts and registry order are process-wide read-only state
// from here on.
func buildEngine(settings config.Settings) (*resolver.Runner, *resolver.Registry, error) {
	var client *http.Client
	if settings.Resolver.ImpersonateBrowser {
		client = resolver.NewBrowserClient()
	}
	fetcher := resolver.NewHTTPFetcher(client, nil)

	var proxyFetcher resolver.Fetcher
	if settings.Resolver.ProxyURL != "" {
		pf, err := resolver.NewProxyFetcher(settings.Resolver.ProxyURL, fetcher)
		if err != nil {
			return nil, nil, err
		}
		proxyFetcher = pf
		log.Printf("[main] proxy fetcher configured: %s", settings.Resolver.ProxyURL)
	} else {
		log.Printf("[main] no proxy configured; requires-proxy sources will be skipped")
	}

	registry := resolver.BuildRegistry(settings)
	runner := resolver.NewRunner(registry, resolver.RunnerConfig{
		Fetcher:          fetcher,
		ProxyFetcher:     proxyFetcher,
		PerSourceTimeout: time.Duration(settings.Resolver.PerSourceTimeoutMs) * time.Millisecond,
		CollectTimeout:   time.Duration(settings.Resolver.CollectTimeoutMs) * time.Millisecond,
		MaxEmbedDepth:    settings.Resolver.MaxEmbedDepth,
	})
	return runner, registry, nil
}
