package resolver

import (
	"testing"

	"streamscout/config"
)

func TestBuildRegistryFollowsConfigOrder(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Resolver.Sources = []config.SourceConfig{
		{ID: "mflix", Enabled: true},
		{ID: "kinocdn", Enabled: false},
		{ID: "vidapi", Enabled: true},
		{ID: "long-gone", Enabled: true},
	}

	registry := BuildRegistry(settings)
	sources := registry.Sources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 registered sources, got %d", len(sources))
	}
	// Disabled and unknown entries are skipped; the rest keep config order.
	if sources[0].ID() != "mflix" || sources[1].ID() != "vidapi" {
		t.Fatalf("config order not preserved: %s, %s", sources[0].ID(), sources[1].ID())
	}
}

func TestBuildRegistryRegistersEmbedResolvers(t *testing.T) {
	registry := BuildRegistry(config.DefaultSettings())
	for _, id := range []string{"vidcloud", "streamwish"} {
		if _, ok := registry.Embed(id); !ok {
			t.Fatalf("embed resolver %q not registered", id)
		}
	}
}

func TestBuildRegistryEmptyConfigFallsBackToDefaults(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Resolver.Sources = nil

	registry := BuildRegistry(settings)
	if len(registry.Sources()) == 0 {
		t.Fatalf("empty source list must fall back to the default catalog")
	}
	if registry.Sources()[0].ID() != "vidapi" {
		t.Fatalf("unexpected default priority head %q", registry.Sources()[0].ID())
	}
}
