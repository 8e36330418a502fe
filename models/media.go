package models

import (
	"errors"
	"fmt"
	"strings"
)

// MediaType identifies the kind of media a descriptor refers to.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "show"
)

// SeasonRef identifies a season within a show.
type SeasonRef struct {
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

// EpisodeRef identifies an episode within a season.
type EpisodeRef struct {
	Number int    `json:"number"`
	Title  string `json:"title,omitempty"`
}

// MediaDescriptor is the immutable input to a resolution run. The caller has
// already resolved title/year/external IDs against its own catalog; sources
// only consume this normalized form.
type MediaDescriptor struct {
	Type        MediaType   `json:"type"`
	Title       string      `json:"title"`
	ReleaseYear int         `json:"releaseYear"`
	TMDBID      string      `json:"tmdbId,omitempty"`
	IMDBID      string      `json:"imdbId,omitempty"`
	Season      *SeasonRef  `json:"season,omitempty"`
	Episode     *EpisodeRef `json:"episode,omitempty"`
}

// Validate checks the descriptor invariants before any source is invoked.
// Shows require season and episode numbers; movies must not carry them.
func (m MediaDescriptor) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return errors.New("media descriptor: title is required")
	}
	switch m.Type {
	case MediaTypeMovie:
		if m.Season != nil || m.Episode != nil {
			return errors.New("media descriptor: movie must not carry season or episode")
		}
	case MediaTypeShow:
		if m.Season == nil || m.Season.Number <= 0 {
			return errors.New("media descriptor: show requires a season number")
		}
		if m.Episode == nil || m.Episode.Number <= 0 {
			return errors.New("media descriptor: show requires an episode number")
		}
	default:
		return fmt.Errorf("media descriptor: unknown media type %q", m.Type)
	}
	return nil
}

// Fingerprint returns a stable key for this descriptor, suitable for
// caller-side result caching. The engine itself never caches by it.
func (m MediaDescriptor) Fingerprint() string {
	b := strings.Builder{}
	b.WriteString(string(m.Type))
	b.WriteString("|")
	b.WriteString(strings.ToLower(strings.TrimSpace(m.Title)))
	b.WriteString(fmt.Sprintf("|%d", m.ReleaseYear))
	if m.TMDBID != "" {
		b.WriteString("|tmdb:" + m.TMDBID)
	}
	if m.IMDBID != "" {
		b.WriteString("|imdb:" + m.IMDBID)
	}
	if m.Type == MediaTypeShow && m.Season != nil && m.Episode != nil {
		b.WriteString(fmt.Sprintf("|s%02de%02d", m.Season.Number, m.Episode.Number))
	}
	return b.String()
}
