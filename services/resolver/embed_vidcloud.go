package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"streamscout/models"
	"streamscout/utils/decode"
)

// VidcloudEmbed resolves vidcloud-style embed pages. The page carries its
// player setup in a data-payload attribute, obfuscated as
// reverse(base64(base64(json))); the decode pipeline below mirrors that
// scheme exactly and is swapped wholesale when the site rotates it.
type VidcloudEmbed struct{}

func (VidcloudEmbed) ID() string { return "vidcloud" }

var vidcloudPayloadPattern = regexp.MustCompile(`data-payload="([^"]+)"`)

var vidcloudPipeline = decode.Pipeline{
	decode.Reverse(),
	decode.Base64Layers(2),
}

type vidcloudPayload struct {
	Sources []struct {
		File string `json:"file"`
		Type string `json:"type"`
	} `json:"sources"`
	Tracks []struct {
		File  string `json:"file"`
		Label string `json:"label"`
		Kind  string `json:"kind"`
	} `json:"tracks"`
}

func (VidcloudEmbed) ResolveEmbed(ctx context.Context, ref EmbedRef, fetcher Fetcher) ([]Embed, error) {
	resp, err := fetcher.Fetch(ctx, Request{URL: ref.URL, Headers: ref.Headers})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, UpstreamError(fmt.Errorf("vidcloud embed returned %d", resp.StatusCode))
	}

	match := vidcloudPayloadPattern.FindSubmatch(resp.Body)
	if match == nil {
		return nil, ParseError(errors.New("vidcloud page has no player payload"))
	}

	raw, err := vidcloudPipeline.Run(string(match[1]))
	if err != nil {
		return nil, ParseError(err)
	}
	var payload vidcloudPayload
	if err := decode.Unmarshal(raw, &payload); err != nil {
		return nil, ParseError(err)
	}

	playlist := ""
	for _, src := range payload.Sources {
		if strings.Contains(src.File, ".m3u8") || src.Type == "hls" {
			playlist = src.File
			break
		}
	}
	if playlist == "" {
		return nil, nil
	}

	origin := embedOrigin(ref.URL)
	stream := &models.Stream{
		Type:     models.StreamTypeHLS,
		Playlist: playlist,
		Headers:  map[string]string{"Referer": ref.URL},
		PreferredHeaders: map[string]string{
			"Origin": origin,
		},
	}
	for _, track := range payload.Tracks {
		if track.Kind != "" && track.Kind != "captions" && track.Kind != "subtitles" {
			continue
		}
		if track.File == "" {
			continue
		}
		stream.Captions = append(stream.Captions, models.Caption{URL: track.File, Language: track.Label})
	}

	return []Embed{{EmbedID: "vidcloud", Stream: stream}}, nil
}

func embedOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
