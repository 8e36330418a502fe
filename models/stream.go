package models

import (
	"errors"
	"fmt"
	"strings"
)

// StreamType distinguishes direct file streams from HLS playlists.
type StreamType string

const (
	StreamTypeFile StreamType = "file"
	StreamTypeHLS  StreamType = "hls"
)

// Quality is a coarse label for a playable rendition. Keys in a stream's
// quality map are not guaranteed exhaustive.
type Quality string

const (
	Quality4K      Quality = "4k"
	Quality1080    Quality = "1080"
	Quality720     Quality = "720"
	Quality480     Quality = "480"
	Quality360     Quality = "360"
	QualityUnknown Quality = "unknown"
)

// DefaultQualityOrder is the fallback preference used when the caller
// supplies no explicit ordering: highest first, unknown last.
var DefaultQualityOrder = []Quality{Quality4K, Quality1080, Quality720, Quality480, Quality360, QualityUnknown}

// Flag is a free-form capability marker attached to a stream.
type Flag string

const (
	// FlagRequiresProxy marks streams whose segments must be fetched through
	// the configured proxy to play at all.
	FlagRequiresProxy Flag = "requires-proxy"
	FlagCORSAllowed   Flag = "cors-allowed"
)

// MediaFile is one quality entry: a playable URL and its container type.
type MediaFile struct {
	Type StreamType `json:"type"`
	URL  string     `json:"url"`
}

// Caption is a subtitle track attached to a stream.
type Caption struct {
	URL      string `json:"url"`
	Language string `json:"language"`
}

// Stream is the canonical, player-ready descriptor of a playable resource.
// Headers must be replayed by the player on every request; PreferredHeaders
// improve compatibility but are not mandatory.
type Stream struct {
	ID               string                `json:"id"`
	Type             StreamType            `json:"type"`
	Playlist         string                `json:"playlist,omitempty"`
	Qualities        map[Quality]MediaFile `json:"qualities,omitempty"`
	Captions         []Caption             `json:"captions,omitempty"`
	Headers          map[string]string     `json:"headers,omitempty"`
	PreferredHeaders map[string]string     `json:"preferredHeaders,omitempty"`
	Flags            []Flag                `json:"flags,omitempty"`
	Title            string                `json:"title,omitempty"`
}

// Validate enforces the playability invariant: an HLS stream needs a
// playlist, a file stream needs at least one quality with a usable URL.
// A stream with neither must never reach the caller.
func (s *Stream) Validate() error {
	if s == nil {
		return errors.New("stream: nil")
	}
	switch s.Type {
	case StreamTypeHLS:
		if strings.TrimSpace(s.Playlist) == "" {
			return errors.New("stream: hls stream missing playlist")
		}
	case StreamTypeFile:
		for _, f := range s.Qualities {
			if strings.TrimSpace(f.URL) != "" {
				return nil
			}
		}
		return errors.New("stream: file stream has no usable quality entry")
	default:
		return fmt.Errorf("stream: unknown stream type %q", s.Type)
	}
	return nil
}

// HasFlag reports whether the stream carries the given capability marker.
func (s *Stream) HasFlag(flag Flag) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// SelectQuality picks the best available rendition following the caller's
// preference order, falling back to DefaultQualityOrder. It never filters:
// selection only chooses among qualities already present on the stream.
// HLS streams have a single adaptive playlist, reported as QualityUnknown.
func (s *Stream) SelectQuality(preferred []Quality) (Quality, MediaFile, bool) {
	if s.Type == StreamTypeHLS {
		if strings.TrimSpace(s.Playlist) == "" {
			return "", MediaFile{}, false
		}
		return QualityUnknown, MediaFile{Type: StreamTypeHLS, URL: s.Playlist}, true
	}
	order := preferred
	if len(order) == 0 {
		order = DefaultQualityOrder
	}
	for _, q := range order {
		if f, ok := s.Qualities[q]; ok && strings.TrimSpace(f.URL) != "" {
			return q, f, true
		}
	}
	// Preference list may not cover every key the source produced.
	for _, q := range DefaultQualityOrder {
		if f, ok := s.Qualities[q]; ok && strings.TrimSpace(f.URL) != "" {
			return q, f, true
		}
	}
	return "", MediaFile{}, false
}
