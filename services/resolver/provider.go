package resolver

import (
	"context"

	"streamscout/models"
)

// Capabilities declares ahead of time what a source can handle. The runner
// filters on these before invoking Resolve, so a resolve body may assume
// type compatibility and proxy availability.
type Capabilities struct {
	MediaTypes    []models.MediaType
	RequiresProxy bool
	// EmbedOnly sources never return a final stream directly; every embed
	// they produce carries a nested reference for an embed resolver.
	EmbedOnly bool
}

// Supports reports whether the source handles the given media type.
func (c Capabilities) Supports(t models.MediaType) bool {
	for _, mt := range c.MediaTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// EmbedRef points at a further resolution step: a third-party embed page
// that must itself be scraped before a stream comes out.
type EmbedRef struct {
	ResolverID string            `json:"resolverId"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// Embed is the intermediate result of a resolve step: either a final stream
// or a nested reference, never both. The tagged shape keeps the two-hop
// structure several sites use (site -> embed iframe -> media URL) bounded
// and inspectable.
type Embed struct {
	EmbedID   string
	Stream    *models.Stream
	Reference *EmbedRef
}

// Source is one independent scraper or API client for a third-party
// streaming site. Implementations are stateless: no per-request state is
// retained across calls, so concurrent invocations need no locking.
//
// Resolve returns a finite list of embeds. An empty list means "no results",
// which is success; genuine failure is a ProviderError.
type Source interface {
	ID() string
	Capabilities() Capabilities
	Resolve(ctx context.Context, media models.MediaDescriptor, fetcher Fetcher) ([]Embed, error)
}

// EmbedResolver turns a nested embed reference into further embeds, usually
// a single final stream. Resolution shares the parent source's time budget.
type EmbedResolver interface {
	ID() string
	ResolveEmbed(ctx context.Context, ref EmbedRef, fetcher Fetcher) ([]Embed, error)
}
