package resolver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"streamscout/models"
)

const mflixDefaultBaseURL = "https://mflix.to"

// MflixSource scrapes an HTML catalog site. It is embed-only: the watch page
// lists third-party embed servers, each of which needs its own resolver hop
// before a stream comes out.
type MflixSource struct {
	baseURL string
}

func NewMflixSource(baseURL string) *MflixSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = mflixDefaultBaseURL
	}
	return &MflixSource{baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *MflixSource) ID() string { return "mflix" }

func (m *MflixSource) Capabilities() Capabilities {
	return Capabilities{
		MediaTypes: []models.MediaType{models.MediaTypeMovie, models.MediaTypeShow},
		EmbedOnly:  true,
	}
}

var mflixYearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func (m *MflixSource) Resolve(ctx context.Context, media models.MediaDescriptor, fetcher Fetcher) ([]Embed, error) {
	detailPath, err := m.search(ctx, media, fetcher)
	if err != nil {
		return nil, err
	}
	if detailPath == "" {
		return nil, nil
	}

	watchURL := m.baseURL + detailPath
	if media.Type == models.MediaTypeShow {
		q := url.Values{}
		q.Set("season", strconv.Itoa(media.Season.Number))
		q.Set("episode", strconv.Itoa(media.Episode.Number))
		watchURL += "?" + q.Encode()
	}
	resp, err := fetcher.Fetch(ctx, Request{URL: watchURL, Headers: map[string]string{"Referer": m.baseURL + "/"}})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, UpstreamError(fmt.Errorf("mflix watch page returned %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, ParseError(err)
	}

	var embeds []Embed
	doc.Find(".server-item").Each(func(_ int, s *goquery.Selection) {
		embedURL, ok := s.Attr("data-embed")
		if !ok || strings.TrimSpace(embedURL) == "" {
			return
		}
		server := strings.ToLower(strings.TrimSpace(s.AttrOr("data-server", s.Text())))
		resolverID, ok := mflixServerResolver(server)
		if !ok {
			return
		}
		embeds = append(embeds, Embed{
			EmbedID: "mflix-" + server,
			Reference: &EmbedRef{
				ResolverID: resolverID,
				URL:        embedURL,
				Headers:    map[string]string{"Referer": m.baseURL + "/"},
			},
		})
	})
	return embeds, nil
}

// search scrapes the catalog search page and returns the detail path of the
// best title match, or "" when the site does not carry the requested media.
func (m *MflixSource) search(ctx context.Context, media models.MediaDescriptor, fetcher Fetcher) (string, error) {
	slug := strings.ReplaceAll(strings.TrimSpace(media.Title), " ", "-")
	resp, err := fetcher.Fetch(ctx, Request{URL: m.baseURL + "/search/" + url.PathEscape(slug)})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != 200 {
		return "", UpstreamError(fmt.Errorf("mflix search returned %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", ParseError(err)
	}

	wantPrefix := "/movie/"
	if media.Type == models.MediaTypeShow {
		wantPrefix = "/tv/"
	}

	bestPath := ""
	bestRank := -1
	doc.Find(".film-item").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a.film-link").Attr("href")
		if !ok || !strings.HasPrefix(href, wantPrefix) {
			return
		}
		title := strings.TrimSpace(s.Find(".film-title").Text())
		if title == "" {
			return
		}
		if media.ReleaseYear > 0 {
			meta := s.Find(".film-meta").Text()
			if match := mflixYearPattern.FindString(meta); match != "" {
				if year, err := strconv.Atoi(match); err == nil && absInt(year-media.ReleaseYear) > 1 {
					return
				}
			}
		}
		rank := fuzzy.RankMatchNormalizedFold(media.Title, title)
		if rank < 0 {
			return
		}
		if bestRank < 0 || rank < bestRank {
			bestRank = rank
			bestPath = href
		}
	})
	return bestPath, nil
}

// mflixServerResolver maps the site's server labels onto registered embed
// resolvers. Unknown servers are skipped rather than guessed at.
func mflixServerResolver(server string) (string, bool) {
	switch {
	case strings.Contains(server, "vidcloud"), strings.Contains(server, "upcloud"):
		return "vidcloud", true
	case strings.Contains(server, "streamwish"), strings.Contains(server, "wish"):
		return "streamwish", true
	default:
		return "", false
	}
}
