package resolver

import (
	"fmt"

	"streamscout/models"
)

// Registry is the ordered, append-only catalog of sources and embed
// resolvers, built once at process start. Registration order defines the
// default priority: when two sources are otherwise equally eligible, the
// one registered first wins. The order is explicit and inspectable so tests
// can assert fallback behavior directly.
type Registry struct {
	sources  []Source
	byID     map[string]Source
	embeds   map[string]EmbedResolver
	embedIDs []string
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]Source),
		embeds: make(map[string]EmbedResolver),
	}
}

// RegisterSource appends a source at the lowest remaining priority.
// Duplicate IDs are a wiring bug and fail loudly.
func (r *Registry) RegisterSource(s Source) error {
	id := s.ID()
	if _, exists := r.byID[id]; exists {
		return &ConfigError{Reason: fmt.Sprintf("duplicate source id %q", id)}
	}
	r.sources = append(r.sources, s)
	r.byID[id] = s
	return nil
}

// RegisterEmbed adds an embed resolver keyed by its ID.
func (r *Registry) RegisterEmbed(e EmbedResolver) error {
	id := e.ID()
	if _, exists := r.embeds[id]; exists {
		return &ConfigError{Reason: fmt.Sprintf("duplicate embed resolver id %q", id)}
	}
	r.embeds[id] = e
	r.embedIDs = append(r.embedIDs, id)
	return nil
}

// Sources returns the catalog in priority order.
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Source looks up a source by ID.
func (r *Registry) Source(id string) (Source, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Embed looks up an embed resolver by ID.
func (r *Registry) Embed(id string) (EmbedResolver, bool) {
	e, ok := r.embeds[id]
	return e, ok
}

// Eligible computes the ordered list of sources to try for the given media.
// An explicit order override replaces registry priority after being
// validated against the catalog; media-type and proxy-availability filters
// apply either way. Sources that require the proxy are skipped entirely when
// none is configured — attempting them directly would produce non-functional
// results.
func (r *Registry) Eligible(media models.MediaDescriptor, proxyConfigured bool, order []string) ([]Source, error) {
	candidates := r.sources
	if len(order) > 0 {
		candidates = make([]Source, 0, len(order))
		for _, id := range order {
			s, ok := r.byID[id]
			if !ok {
				return nil, &ConfigError{Reason: fmt.Sprintf("order override names unknown source %q", id)}
			}
			candidates = append(candidates, s)
		}
	}

	eligible := make([]Source, 0, len(candidates))
	for _, s := range candidates {
		caps := s.Capabilities()
		if !caps.Supports(media.Type) {
			continue
		}
		if caps.RequiresProxy && !proxyConfigured {
			continue
		}
		eligible = append(eligible, s)
	}
	return eligible, nil
}
