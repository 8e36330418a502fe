package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings represents the application configuration persisted to disk. All
// of it is read once at startup and treated as read-only for the process
// lifetime; the resolution engine never mutates configuration mid-run.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Resolver ResolverSettings `json:"resolver"`
	Cache    CacheSettings    `json:"cache"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SourceConfig is one entry in the ordered source list. List order defines
// registry priority.
type SourceConfig struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// ResolverSettings configures the resolution engine.
type ResolverSettings struct {
	// ProxyURL is the intermediary for requires-proxy sources. Empty means
	// no proxy: those sources are skipped, never attempted directly.
	ProxyURL string `json:"proxyUrl"`
	// PerSourceTimeoutMs bounds each source's resolve, embed hops included.
	PerSourceTimeoutMs int `json:"perSourceTimeoutMs"`
	// CollectTimeoutMs is the single overall deadline for collect-all runs.
	CollectTimeoutMs int `json:"collectTimeoutMs"`
	// MaxEmbedDepth bounds embed-within-embed recursion.
	MaxEmbedDepth int `json:"maxEmbedDepth"`
	// ImpersonateBrowser enables the Chrome-fingerprint TLS client for
	// sources scraping fingerprint-sensitive sites.
	ImpersonateBrowser bool `json:"impersonateBrowser"`
	// Sources is the ordered priority list of enabled sources.
	Sources []SourceConfig `json:"sources"`
}

// CacheSettings controls caller-side result caching in the HTTP layer.
type CacheSettings struct {
	ResultTTLMinutes int `json:"resultTtlMinutes"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7878},
		Resolver: ResolverSettings{
			ProxyURL:           "",
			PerSourceTimeoutMs: 10000,
			CollectTimeoutMs:   25000,
			MaxEmbedDepth:      3,
			ImpersonateBrowser: true,
			Sources: []SourceConfig{
				{ID: "vidapi", Enabled: true},
				{ID: "mflix", Enabled: true},
				{ID: "kinocdn", Enabled: true},
			},
		},
		Cache: CacheSettings{ResultTTLMinutes: 10},
		Log: LogConfig{
			File:       "cache/logs/streamscout.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk, creating the file with defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	if s.Resolver.PerSourceTimeoutMs <= 0 {
		s.Resolver.PerSourceTimeoutMs = 10000
	}
	if s.Resolver.CollectTimeoutMs <= 0 {
		s.Resolver.CollectTimeoutMs = 25000
	}
	if s.Resolver.MaxEmbedDepth <= 0 {
		s.Resolver.MaxEmbedDepth = 3
	}
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
