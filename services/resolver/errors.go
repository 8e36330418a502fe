package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a source-level failure. Every kind is recoverable by
// falling back to the next eligible source.
type ErrorKind string

const (
	KindNotFound ErrorKind = "not_found"
	KindUpstream ErrorKind = "upstream"
	KindParse    ErrorKind = "parse"
	KindTimeout  ErrorKind = "timeout"
)

// ProviderError is a classified failure from a source or embed resolver.
// "No results" is never a ProviderError; sources represent it as an empty
// embed list, which is a success outcome.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotFoundError, UpstreamError, ParseError and TimeoutError build classified
// provider failures.
func NotFoundError(err error) *ProviderError { return &ProviderError{Kind: KindNotFound, Err: err} }
func UpstreamError(err error) *ProviderError { return &ProviderError{Kind: KindUpstream, Err: err} }
func ParseError(err error) *ProviderError    { return &ProviderError{Kind: KindParse, Err: err} }
func TimeoutError(err error) *ProviderError  { return &ProviderError{Kind: KindTimeout, Err: err} }

// Classify maps an arbitrary error returned by a source into an ErrorKind.
// Context deadlines become timeouts, transport failures become upstream
// errors, everything unrecognized is treated as upstream.
func Classify(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return KindUpstream
	}
	return KindUpstream
}

// ConfigError reports invalid run configuration, e.g. an order override
// naming an unregistered source. It surfaces to the caller unchanged.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config error: " + e.Reason }

// Attempt records one source's outcome in the diagnostic trail. Kind is
// empty when the source succeeded with zero embeds ("no results").
type Attempt struct {
	SourceID string    `json:"sourceId"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Reason   string    `json:"reason"`
}

// ExhaustedError is the terminal failure: every eligible source was tried
// and none produced a valid stream. Attempts preserves the order sources
// were tried in.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no eligible sources for media"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Kind == "" {
			parts = append(parts, fmt.Sprintf("%s: %s", a.SourceID, a.Reason))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", a.SourceID, a.Reason, a.Kind))
	}
	return "all sources exhausted: " + strings.Join(parts, "; ")
}
