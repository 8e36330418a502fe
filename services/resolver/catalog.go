package resolver

import (
	"log"
	"strings"

	"streamscout/config"
)

// BuildRegistry assembles the source catalog from settings. Config order is
// registry order, which makes source priority a user-editable, inspectable
// list rather than an accident of file layout. Unknown IDs are logged and
// skipped so a stale config cannot prevent startup.
func BuildRegistry(settings config.Settings) *Registry {
	registry := NewRegistry()

	for _, e := range []EmbedResolver{VidcloudEmbed{}, StreamwishEmbed{}} {
		if err := registry.RegisterEmbed(e); err != nil {
			log.Printf("[resolver] skipping embed resolver: %v", err)
		}
	}

	entries := settings.Resolver.Sources
	if len(entries) == 0 {
		entries = config.DefaultSettings().Resolver.Sources
	}
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		src := builtinSource(entry.ID)
		if src == nil {
			log.Printf("[resolver] unknown source id %q in config, skipping", entry.ID)
			continue
		}
		if err := registry.RegisterSource(src); err != nil {
			log.Printf("[resolver] skipping source %q: %v", entry.ID, err)
			continue
		}
		log.Printf("[resolver] registered source %q (proxy=%v, embedOnly=%v)",
			src.ID(), src.Capabilities().RequiresProxy, src.Capabilities().EmbedOnly)
	}
	return registry
}

func builtinSource(id string) Source {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "vidapi":
		return NewVidapiSource("")
	case "mflix":
		return NewMflixSource("")
	case "kinocdn":
		return NewKinocdnSource("")
	default:
		return nil
	}
}
