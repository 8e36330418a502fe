package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	"streamscout/models"
	"streamscout/services/resolver"
)

// streamResolver is the slice of the runner the handler needs.
type streamResolver interface {
	ResolveStream(ctx context.Context, media models.MediaDescriptor, opts resolver.Options) (*models.RunResult, error)
	ResolveAll(ctx context.Context, media models.MediaDescriptor, opts resolver.Options) ([]models.RunResult, error)
}

var _ streamResolver = (*resolver.Runner)(nil)

// ResolveHandler exposes the resolution engine over HTTP. Result caching by
// media fingerprint lives here, on the calling side of the engine boundary:
// the runner itself constructs every RunResult fresh.
type ResolveHandler struct {
	runner   streamResolver
	registry *resolver.Registry
	cache    *gocache.Cache
}

func NewResolveHandler(runner streamResolver, registry *resolver.Registry, resultTTL time.Duration) *ResolveHandler {
	if resultTTL <= 0 {
		resultTTL = 10 * time.Minute
	}
	return &ResolveHandler{
		runner:   runner,
		registry: registry,
		cache:    gocache.New(resultTTL, 2*resultTTL),
	}
}

type resolveRequest struct {
	Media              models.MediaDescriptor `json:"media"`
	Order              []string               `json:"order,omitempty"`
	PreferredQualities []models.Quality       `json:"preferredQualities,omitempty"`
	PerSourceTimeoutMs int                    `json:"perSourceTimeoutMs,omitempty"`
}

func (req resolveRequest) options() resolver.Options {
	opts := resolver.Options{
		Order:              req.Order,
		PreferredQualities: req.PreferredQualities,
	}
	if req.PerSourceTimeoutMs > 0 {
		opts.PerSourceTimeout = time.Duration(req.PerSourceTimeoutMs) * time.Millisecond
	}
	return opts
}

// defaultOptions reports whether the request can be served from / stored in
// the fingerprint cache. Requests with overrides bypass it.
func (req resolveRequest) defaultOptions() bool {
	return len(req.Order) == 0 && len(req.PreferredQualities) == 0 && req.PerSourceTimeoutMs == 0
}

// Resolve handles POST /api/resolve: first validated stream wins.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()[:8]
	var req resolveRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Media.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cacheable := req.defaultOptions()
	if cacheable {
		if cached, ok := h.cache.Get(req.Media.Fingerprint()); ok {
			log.Printf("[resolve-handler] %s cache hit for %q", reqID, req.Media.Fingerprint())
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	start := time.Now()
	log.Printf("[resolve-handler] %s resolving %s %q (%d)", reqID, req.Media.Type, req.Media.Title, req.Media.ReleaseYear)
	result, err := h.runner.ResolveStream(r.Context(), req.Media, req.options())
	if err != nil {
		h.writeRunError(w, reqID, err)
		return
	}
	log.Printf("[resolve-handler] %s resolved via %s/%s in %v", reqID, result.SourceID, result.EmbedID, time.Since(start).Round(time.Millisecond))

	if cacheable {
		h.cache.SetDefault(req.Media.Fingerprint(), result)
	}
	writeJSON(w, http.StatusOK, result)
}

// ResolveAll handles POST /api/resolve/all: every validated stream, ordered
// by registry priority.
func (h *ResolveHandler) ResolveAll(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()[:8]
	var req resolveRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Media.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("[resolve-handler] %s collecting all streams for %s %q", reqID, req.Media.Type, req.Media.Title)
	results, err := h.runner.ResolveAll(r.Context(), req.Media, req.options())
	if err != nil {
		h.writeRunError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Providers handles GET /api/providers: the inspectable priority list.
func (h *ResolveHandler) Providers(w http.ResponseWriter, r *http.Request) {
	type sourceInfo struct {
		ID            string             `json:"id"`
		Priority      int                `json:"priority"`
		MediaTypes    []models.MediaType `json:"mediaTypes"`
		RequiresProxy bool               `json:"requiresProxy"`
		EmbedOnly     bool               `json:"embedOnly"`
	}
	sources := h.registry.Sources()
	infos := lo.Map(sources, func(s resolver.Source, i int) sourceInfo {
		caps := s.Capabilities()
		return sourceInfo{
			ID:            s.ID(),
			Priority:      i,
			MediaTypes:    caps.MediaTypes,
			RequiresProxy: caps.RequiresProxy,
			EmbedOnly:     caps.EmbedOnly,
		}
	})
	writeJSON(w, http.StatusOK, map[string]any{"sources": infos})
}

func (h *ResolveHandler) writeRunError(w http.ResponseWriter, reqID string, err error) {
	var exhausted *resolver.ExhaustedError
	if errors.As(err, &exhausted) {
		log.Printf("[resolve-handler] %s exhausted: %v", reqID, err)
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    "no source produced a usable stream",
			"attempts": exhausted.Attempts,
		})
		return
	}
	var cfgErr *resolver.ConfigError
	if errors.As(err, &cfgErr) {
		http.Error(w, cfgErr.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("[resolve-handler] %s resolve failed: %v", reqID, err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[resolve-handler] failed to encode response: %v", err)
	}
}
