package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"streamscout/models"
)

const (
	// DefaultPerSourceTimeout bounds one source's whole resolve, including
	// any nested embed hops. A single slow or broken site must not block
	// resolution.
	DefaultPerSourceTimeout = 10 * time.Second
	// DefaultCollectTimeout is the single overall deadline for collect-all
	// runs, where no early return is possible.
	DefaultCollectTimeout = 25 * time.Second
	// DefaultMaxEmbedDepth bounds embed-within-embed recursion so malformed
	// provider data cannot loop forever.
	DefaultMaxEmbedDepth = 3
)

// Options tune a single resolution run.
type Options struct {
	// Order overrides registry priority with an explicit source-id sequence.
	Order []string
	// PreferredQualities picks among qualities already present on a returned
	// stream. It never filters sources.
	PreferredQualities []models.Quality
	// PerSourceTimeout overrides the runner default for this run.
	PerSourceTimeout time.Duration
	// CollectTimeout overrides the overall collect-all deadline.
	CollectTimeout time.Duration
}

// Runner executes registered sources against a media descriptor following
// the registry's ranking and fallback policy. It owns no background work:
// each call is a self-contained unit, and two concurrent calls are fully
// independent.
type Runner struct {
	registry      *Registry
	fetcher       Fetcher
	proxyFetcher  Fetcher // nil when no proxy is configured
	timeout       time.Duration
	collectWindow time.Duration
	maxEmbedDepth int
}

// RunnerConfig is the process-wide, set-once configuration for a Runner.
type RunnerConfig struct {
	Fetcher          Fetcher
	ProxyFetcher     Fetcher
	PerSourceTimeout time.Duration
	CollectTimeout   time.Duration
	MaxEmbedDepth    int
}

func NewRunner(registry *Registry, cfg RunnerConfig) *Runner {
	r := &Runner{
		registry:      registry,
		fetcher:       cfg.Fetcher,
		proxyFetcher:  cfg.ProxyFetcher,
		timeout:       cfg.PerSourceTimeout,
		collectWindow: cfg.CollectTimeout,
		maxEmbedDepth: cfg.MaxEmbedDepth,
	}
	if r.fetcher == nil {
		r.fetcher = NewHTTPFetcher(nil, browserDefaultHeaders())
	}
	if r.timeout <= 0 {
		r.timeout = DefaultPerSourceTimeout
	}
	if r.collectWindow <= 0 {
		r.collectWindow = DefaultCollectTimeout
	}
	if r.maxEmbedDepth <= 0 {
		r.maxEmbedDepth = DefaultMaxEmbedDepth
	}
	return r
}

// ProxyConfigured reports whether requires-proxy sources are runnable.
func (r *Runner) ProxyConfigured() bool { return r.proxyFetcher != nil }

// ResolveStream tries eligible sources in priority order and returns the
// first validated stream. On exhaustion it fails with *ExhaustedError
// carrying the ordered per-source diagnostic trail.
func (r *Runner) ResolveStream(ctx context.Context, media models.MediaDescriptor, opts Options) (*models.RunResult, error) {
	if err := media.Validate(); err != nil {
		return nil, err
	}
	eligible, err := r.registry.Eligible(media, r.ProxyConfigured(), opts.Order)
	if err != nil {
		return nil, err
	}

	timeout := opts.PerSourceTimeout
	if timeout <= 0 {
		timeout = r.timeout
	}

	attempts := make([]Attempt, 0, len(eligible))
	for _, src := range eligible {
		start := time.Now()
		result, attempt := r.runSource(ctx, src, media, opts.PreferredQualities, timeout)
		if result != nil {
			log.Printf("[runner] %s produced stream %s in %s", src.ID(), result.Stream.ID, time.Since(start).Round(10*time.Millisecond))
			return result, nil
		}
		log.Printf("[runner] %s: %s (%s, took %s)", src.ID(), attempt.Reason, attempt.Kind, time.Since(start).Round(10*time.Millisecond))
		attempts = append(attempts, attempt)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

// ResolveAll runs every eligible source in parallel under a single overall
// deadline and returns all validated streams, ordered by registry priority
// regardless of completion order. Used by callers presenting multiple
// playback options rather than auto-picking one.
func (r *Runner) ResolveAll(ctx context.Context, media models.MediaDescriptor, opts Options) ([]models.RunResult, error) {
	if err := media.Validate(); err != nil {
		return nil, err
	}
	eligible, err := r.registry.Eligible(media, r.ProxyConfigured(), opts.Order)
	if err != nil {
		return nil, err
	}

	window := opts.CollectTimeout
	if window <= 0 {
		window = r.collectWindow
	}
	runCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	// One slot per source: slots are written only by their own goroutine,
	// so collection needs no locking.
	results := make([]*models.RunResult, len(eligible))
	attempts := make([]Attempt, len(eligible))

	p := pool.New().WithContext(runCtx)
	for i, src := range eligible {
		p.Go(func(ctx context.Context) error {
			result, attempt := r.runSource(ctx, src, media, opts.PreferredQualities, window)
			results[i] = result
			attempts[i] = attempt
			return nil
		})
	}
	_ = p.Wait()

	out := make([]models.RunResult, 0, len(eligible))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	if len(out) == 0 {
		trail := make([]Attempt, 0, len(attempts))
		for i, a := range attempts {
			if results[i] == nil {
				trail = append(trail, a)
			}
		}
		return nil, &ExhaustedError{Attempts: trail}
	}
	return out, nil
}

// runSource executes one source under its bounded-time guard and walks the
// embeds it yields. A source that never returns is abandoned at the deadline
// and its in-flight work cancelled; the goroutine's late result is discarded.
func (r *Runner) runSource(ctx context.Context, src Source, media models.MediaDescriptor, prefs []models.Quality, timeout time.Duration) (*models.RunResult, Attempt) {
	srcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetcher := r.fetcher
	if src.Capabilities().RequiresProxy {
		fetcher = r.proxyFetcher
	}

	type outcome struct {
		embeds []Embed
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		embeds, err := src.Resolve(srcCtx, media, fetcher)
		done <- outcome{embeds: embeds, err: err}
	}()

	var embeds []Embed
	select {
	case <-srcCtx.Done():
		return nil, Attempt{SourceID: src.ID(), Kind: KindTimeout, Reason: "resolve exceeded time budget"}
	case res := <-done:
		if res.err != nil {
			return nil, Attempt{SourceID: src.ID(), Kind: Classify(res.err), Reason: res.err.Error()}
		}
		embeds = res.embeds
	}

	if len(embeds) == 0 {
		return nil, Attempt{SourceID: src.ID(), Reason: "no results"}
	}

	result, err := r.walkEmbeds(srcCtx, src.ID(), fetcher, embeds, prefs, 0)
	if err != nil {
		return nil, Attempt{SourceID: src.ID(), Kind: Classify(err), Reason: err.Error()}
	}
	if result == nil {
		return nil, Attempt{SourceID: src.ID(), Reason: "no embed yielded a valid stream"}
	}
	return result, Attempt{}
}

// walkEmbeds scans embeds in order, returning the first validated stream.
// Nested references resolve recursively within the parent source's remaining
// budget; depth is bounded so malformed data terminates.
func (r *Runner) walkEmbeds(ctx context.Context, sourceID string, fetcher Fetcher, embeds []Embed, prefs []models.Quality, depth int) (*models.RunResult, error) {
	if depth > r.maxEmbedDepth {
		return nil, ParseError(fmt.Errorf("embed recursion exceeded depth %d", r.maxEmbedDepth))
	}
	var lastErr error
	for _, embed := range embeds {
		if ctx.Err() != nil {
			return nil, TimeoutError(ctx.Err())
		}
		if embed.Stream != nil {
			result, ok := r.finalize(sourceID, embed, prefs)
			if !ok {
				log.Printf("[runner] %s: embed %s returned invalid stream, skipping", sourceID, embed.EmbedID)
				lastErr = ParseError(errors.New("source returned unplayable stream"))
				continue
			}
			return result, nil
		}
		if embed.Reference == nil {
			continue
		}
		nested, ok := r.registry.Embed(embed.Reference.ResolverID)
		if !ok {
			log.Printf("[runner] %s: no resolver registered for embed %q", sourceID, embed.Reference.ResolverID)
			continue
		}
		children, err := nested.ResolveEmbed(ctx, *embed.Reference, fetcher)
		if err != nil {
			lastErr = err
			continue
		}
		result, err := r.walkEmbeds(ctx, sourceID, fetcher, children, prefs, depth+1)
		if err != nil {
			lastErr = err
			continue
		}
		if result != nil {
			if result.EmbedID == "" {
				result.EmbedID = embed.EmbedID
			}
			return result, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// finalize validates the stream invariant and picks the preferred quality.
func (r *Runner) finalize(sourceID string, embed Embed, prefs []models.Quality) (*models.RunResult, bool) {
	stream := embed.Stream
	if err := stream.Validate(); err != nil {
		return nil, false
	}
	quality, _, ok := stream.SelectQuality(prefs)
	if !ok {
		return nil, false
	}
	if stream.ID == "" {
		stream.ID = uuid.NewString()
	}
	return &models.RunResult{
		SourceID: sourceID,
		EmbedID:  embed.EmbedID,
		Quality:  quality,
		Stream:   stream,
	}, true
}
