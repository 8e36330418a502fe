package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"streamscout/models"
	"streamscout/utils/decode"
)

// StreamwishEmbed resolves streamwish-style hosts, which hide their jwplayer
// setup inside a p.a.c.k.e.r-packed script. Unpacking yields plain source
// declarations to pull file URLs out of.
type StreamwishEmbed struct{}

func (StreamwishEmbed) ID() string { return "streamwish" }

var streamwishPipeline = decode.Pipeline{
	decode.UnpackJS(),
}

// e.g. file:"https://host/v/720p.mp4",label:"720p"
var streamwishFilePattern = regexp.MustCompile(`file\s*:\s*"([^"]+)"(?:\s*,\s*label\s*:\s*"([^"]*)")?`)

func (StreamwishEmbed) ResolveEmbed(ctx context.Context, ref EmbedRef, fetcher Fetcher) ([]Embed, error) {
	resp, err := fetcher.Fetch(ctx, Request{URL: ref.URL, Headers: ref.Headers})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, UpstreamError(fmt.Errorf("streamwish embed returned %d", resp.StatusCode))
	}

	unpacked, err := streamwishPipeline.Run(string(resp.Body))
	if err != nil {
		return nil, ParseError(err)
	}

	matches := streamwishFilePattern.FindAllStringSubmatch(unpacked, -1)
	if len(matches) == 0 {
		return nil, ParseError(errors.New("unpacked player setup has no file entries"))
	}

	stream := &models.Stream{
		Type:      models.StreamTypeFile,
		Qualities: map[models.Quality]models.MediaFile{},
		Headers:   map[string]string{"Referer": ref.URL},
	}
	for _, m := range matches {
		fileURL, label := m[1], m[2]
		if fileURL == "" {
			continue
		}
		stream.Qualities[normalizeQuality(label)] = models.MediaFile{
			Type: models.StreamTypeFile,
			URL:  fileURL,
		}
	}

	return []Embed{{EmbedID: "streamwish", Stream: stream}}, nil
}
