package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"streamscout/models"
	"streamscout/utils/decode"
)

const kinocdnDefaultBaseURL = "https://kinocdn.live"

// KinocdnSource serves HLS manifests that only play when fetched from an
// allowed egress point, so the whole source is flagged requires-proxy: the
// runner skips it outright when no proxy is configured, and routes every
// request through the proxy fetcher when one is.
type KinocdnSource struct {
	baseURL string
}

func NewKinocdnSource(baseURL string) *KinocdnSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = kinocdnDefaultBaseURL
	}
	return &KinocdnSource{baseURL: strings.TrimRight(baseURL, "/")}
}

func (k *KinocdnSource) ID() string { return "kinocdn" }

func (k *KinocdnSource) Capabilities() Capabilities {
	return Capabilities{
		MediaTypes:    []models.MediaType{models.MediaTypeMovie, models.MediaTypeShow},
		RequiresProxy: true,
	}
}

type kinocdnResponse struct {
	Playlist string `json:"playlist"`
	Subs     []struct {
		URL  string `json:"url"`
		Lang string `json:"lang"`
	} `json:"subs"`
}

func (k *KinocdnSource) Resolve(ctx context.Context, media models.MediaDescriptor, fetcher Fetcher) ([]Embed, error) {
	if media.IMDBID == "" {
		return nil, nil // kinocdn is keyed by IMDb ID only
	}

	query := url.Values{}
	query.Set("imdb", media.IMDBID)
	if media.Type == models.MediaTypeShow {
		query.Set("s", strconv.Itoa(media.Season.Number))
		query.Set("e", strconv.Itoa(media.Episode.Number))
	}
	resp, err := fetcher.Fetch(ctx, Request{URL: k.baseURL + "/api/v1/lookup", Query: query})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 404 {
		return nil, nil
	}
	if resp.StatusCode != 200 {
		return nil, UpstreamError(fmt.Errorf("kinocdn returned %d", resp.StatusCode))
	}

	var payload kinocdnResponse
	if err := decode.Unmarshal(string(resp.Body), &payload); err != nil {
		return nil, ParseError(err)
	}
	if strings.TrimSpace(payload.Playlist) == "" {
		return nil, nil
	}

	stream := &models.Stream{
		ID:       "kinocdn-" + media.IMDBID,
		Type:     models.StreamTypeHLS,
		Playlist: payload.Playlist,
		Flags:    []models.Flag{models.FlagRequiresProxy},
		Headers: map[string]string{
			"Referer": k.baseURL + "/",
			"Origin":  k.baseURL,
		},
		Title: media.Title,
	}
	for _, sub := range payload.Subs {
		if sub.URL == "" {
			continue
		}
		stream.Captions = append(stream.Captions, models.Caption{URL: sub.URL, Language: sub.Lang})
	}

	return []Embed{{EmbedID: "kinocdn-hls", Stream: stream}}, nil
}
