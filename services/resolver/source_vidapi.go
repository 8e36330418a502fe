package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"streamscout/models"
	"streamscout/utils/decode"
)

const vidapiDefaultBaseURL = "https://api.vidapi.club"

// VidapiSource talks to a vidsrc-style JSON API: a catalog search endpoint
// followed by a sources endpoint keyed by catalog ID. It returns final
// streams directly, no embed hop.
type VidapiSource struct {
	baseURL string
}

// NewVidapiSource constructs the source. An empty baseURL falls back to the
// public endpoint; tests point it at a local server.
func NewVidapiSource(baseURL string) *VidapiSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = vidapiDefaultBaseURL
	}
	return &VidapiSource{baseURL: strings.TrimRight(baseURL, "/")}
}

func (v *VidapiSource) ID() string { return "vidapi" }

func (v *VidapiSource) Capabilities() Capabilities {
	return Capabilities{MediaTypes: []models.MediaType{models.MediaTypeMovie, models.MediaTypeShow}}
}

type vidapiSearchResponse struct {
	Results []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Year  int    `json:"year"`
	} `json:"results"`
}

type vidapiSourcesResponse struct {
	Sources []struct {
		Quality string `json:"quality"`
		URL     string `json:"url"`
		Type    string `json:"type"`
	} `json:"sources"`
	Captions []struct {
		URL      string `json:"url"`
		Language string `json:"lang"`
	} `json:"captions"`
}

func (v *VidapiSource) Resolve(ctx context.Context, media models.MediaDescriptor, fetcher Fetcher) ([]Embed, error) {
	catalogID, err := v.lookupCatalogID(ctx, media, fetcher)
	if err != nil {
		return nil, err
	}
	if catalogID == "" {
		return nil, nil // title not in this site's catalog: no results
	}

	query := url.Values{}
	if media.Type == models.MediaTypeShow {
		query.Set("season", strconv.Itoa(media.Season.Number))
		query.Set("episode", strconv.Itoa(media.Episode.Number))
	}
	resp, err := v.get(ctx, fetcher, fmt.Sprintf("%s/api/media/%s/sources", v.baseURL, url.PathEscape(catalogID)), query)
	if err != nil {
		return nil, err
	}

	var payload vidapiSourcesResponse
	if err := decode.Unmarshal(string(resp.Body), &payload); err != nil {
		return nil, ParseError(err)
	}
	if len(payload.Sources) == 0 {
		return nil, nil
	}

	stream := &models.Stream{
		ID:        "vidapi-" + catalogID,
		Type:      models.StreamTypeFile,
		Qualities: map[models.Quality]models.MediaFile{},
		Title:     media.Title,
	}
	for _, src := range payload.Sources {
		if strings.TrimSpace(src.URL) == "" {
			continue
		}
		if src.Type == "hls" || strings.Contains(src.URL, ".m3u8") {
			stream.Type = models.StreamTypeHLS
			stream.Playlist = src.URL
			continue
		}
		stream.Qualities[normalizeQuality(src.Quality)] = models.MediaFile{
			Type: models.StreamTypeFile,
			URL:  src.URL,
		}
	}
	for _, cap := range payload.Captions {
		if cap.URL == "" {
			continue
		}
		stream.Captions = append(stream.Captions, models.Caption{URL: cap.URL, Language: cap.Language})
	}

	return []Embed{{EmbedID: "vidapi-direct", Stream: stream}}, nil
}

// lookupCatalogID searches the upstream catalog and fuzzy-matches the best
// candidate against the requested title and year. Returns "" when nothing
// in the catalog resembles the request.
func (v *VidapiSource) lookupCatalogID(ctx context.Context, media models.MediaDescriptor, fetcher Fetcher) (string, error) {
	query := url.Values{}
	query.Set("q", media.Title)
	query.Set("type", string(media.Type))
	resp, err := v.get(ctx, fetcher, v.baseURL+"/api/search", query)
	if err != nil {
		return "", err
	}

	var payload vidapiSearchResponse
	if err := decode.Unmarshal(string(resp.Body), &payload); err != nil {
		return "", ParseError(err)
	}

	bestID := ""
	bestRank := -1
	for _, candidate := range payload.Results {
		if media.ReleaseYear > 0 && candidate.Year > 0 && absInt(media.ReleaseYear-candidate.Year) > 1 {
			continue
		}
		rank := fuzzy.RankMatchNormalizedFold(media.Title, candidate.Title)
		if rank < 0 {
			continue
		}
		if bestRank < 0 || rank < bestRank {
			bestRank = rank
			bestID = candidate.ID
		}
	}
	return bestID, nil
}

// get issues a GET with a short bounded retry on transient upstream
// failures. The fetch layer itself never retries; this is this provider's
// own policy against a flaky API.
func (v *VidapiSource) get(ctx context.Context, fetcher Fetcher, target string, query url.Values) (*Response, error) {
	var resp *Response
	err := retry.Do(
		func() error {
			var err error
			resp, err = fetcher.Fetch(ctx, Request{URL: target, Query: query})
			if err != nil {
				return err
			}
			if resp.StatusCode >= 500 {
				return UpstreamError(fmt.Errorf("vidapi returned %d", resp.StatusCode))
			}
			return nil
		},
		retry.Attempts(2),
		retry.Delay(250*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == 404 {
		return nil, NotFoundError(fmt.Errorf("vidapi has no entry for %s", target))
	}
	if resp.StatusCode != 200 {
		return nil, UpstreamError(fmt.Errorf("vidapi returned %d for %s", resp.StatusCode, target))
	}
	return resp, nil
}

func normalizeQuality(label string) models.Quality {
	switch strings.ToLower(strings.TrimSpace(strings.TrimSuffix(label, "p"))) {
	case "2160", "4k":
		return models.Quality4K
	case "1080":
		return models.Quality1080
	case "720":
		return models.Quality720
	case "480":
		return models.Quality480
	case "360":
		return models.Quality360
	default:
		return models.QualityUnknown
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
