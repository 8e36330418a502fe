package models

import "testing"

func TestMediaDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		media   MediaDescriptor
		wantErr bool
	}{
		{
			name:  "valid movie",
			media: MediaDescriptor{Type: MediaTypeMovie, Title: "Heat", ReleaseYear: 1995},
		},
		{
			name: "valid show",
			media: MediaDescriptor{
				Type: MediaTypeShow, Title: "Breaking Bad", ReleaseYear: 2008,
				Season: &SeasonRef{Number: 1}, Episode: &EpisodeRef{Number: 1},
			},
		},
		{
			name:    "show missing season",
			media:   MediaDescriptor{Type: MediaTypeShow, Title: "Breaking Bad", Episode: &EpisodeRef{Number: 1}},
			wantErr: true,
		},
		{
			name:    "show missing episode",
			media:   MediaDescriptor{Type: MediaTypeShow, Title: "Breaking Bad", Season: &SeasonRef{Number: 1}},
			wantErr: true,
		},
		{
			name:    "movie with season",
			media:   MediaDescriptor{Type: MediaTypeMovie, Title: "Heat", Season: &SeasonRef{Number: 1}},
			wantErr: true,
		},
		{
			name:    "empty title",
			media:   MediaDescriptor{Type: MediaTypeMovie, Title: "  "},
			wantErr: true,
		},
		{
			name:    "unknown type",
			media:   MediaDescriptor{Type: "podcast", Title: "Heat"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.media.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprintStable(t *testing.T) {
	a := MediaDescriptor{
		Type: MediaTypeShow, Title: "Breaking Bad", ReleaseYear: 2008, IMDBID: "tt0903747",
		Season: &SeasonRef{Number: 2}, Episode: &EpisodeRef{Number: 5},
	}
	b := MediaDescriptor{
		Type: MediaTypeShow, Title: "breaking bad ", ReleaseYear: 2008, IMDBID: "tt0903747",
		Season: &SeasonRef{Number: 2, Title: "Season Two"}, Episode: &EpisodeRef{Number: 5},
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected equal fingerprints, got %q vs %q", a.Fingerprint(), b.Fingerprint())
	}

	c := a
	c.Episode = &EpisodeRef{Number: 6}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("different episodes must not share a fingerprint")
	}
}
