package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds all application configuration for the ingestion service:
// the HTTP listen surface, the snapshot store backend, cache TTL policy,
// fetch timeouts and the configured playlist sources.
type Config struct {
	ListenAddr          string         `json:"listenAddr"`          // Address the HTTP surface binds to
	StoreBackend        string         `json:"storeBackend"`        // Snapshot store backend: "file" or "sqlite"
	CacheDir            string         `json:"cacheDir"`            // Directory for the file store backend
	DatabasePath        string         `json:"databasePath"`        // SQLite database path for the sqlite backend
	PlaylistTTL         time.Duration  `json:"playlistTTL"`         // Max age at which a cached playlist snapshot is fresh
	EPGTTL              time.Duration  `json:"epgTTL"`              // Max age at which a cached EPG snapshot is fresh
	PlaylistTimeout     time.Duration  `json:"playlistTimeout"`     // Network timeout for playlist fetches
	EPGTimeout          time.Duration  `json:"epgTimeout"`          // Network timeout for EPG fetches
	RefreshInterval     time.Duration  `json:"refreshInterval"`     // Cadence of the background sync worker
	WorkerThreads       int            `json:"workerThreads"`       // Size of the background worker pool
	SortField           string         `json:"sortField"`           // Stream attribute used for playlist export ordering
	SortDirection       string         `json:"sortDirection"`       // "asc" or "desc"
	PreferHTTPS         bool           `json:"preferHTTPS"`         // Upgrade Xtream base URLs to https (mixed-content hosts)
	ObfuscateUrls       bool           `json:"obfuscateUrls"`       // Obfuscate URLs in logs (they embed credentials)
	LogLevel            string         `json:"logLevel"`            // DEBUG, INFO, WARN or ERROR
	EPGURL              string         `json:"epgUrl"`              // Now/next guide JSON address; blank disables the EPG pipeline
	Sources             []SourceConfig `json:"sources"`             // Configured playlist sources
}

// SourceConfig describes one playlist source: either a raw M3U address or an
// Xtream account. Kind selects the ingestion pipeline; blank defaults to m3u
// unless credentials are set.
type SourceConfig struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"` // "m3u" or "xtream"
	URL         string `json:"url"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	UserAgent   string `json:"userAgent"`
	ReqOrigin   string `json:"reqOrigin"`
	ReqReferrer string `json:"reqReferrer"`
	RateLimit   int    `json:"rateLimit"` // Xtream API requests per second
}

// ConfigFile mirrors Config for JSON (un)marshaling, with durations carried as
// strings ("6h", "15s") the way the settings file spells them.
type ConfigFile struct {
	ListenAddr      string         `json:"listenAddr"`
	StoreBackend    string         `json:"storeBackend"`
	CacheDir        string         `json:"cacheDir"`
	DatabasePath    string         `json:"databasePath"`
	PlaylistTTL     string         `json:"playlistTTL"`
	EPGTTL          string         `json:"epgTTL"`
	PlaylistTimeout string         `json:"playlistTimeout"`
	EPGTimeout      string         `json:"epgTimeout"`
	RefreshInterval string         `json:"refreshInterval"`
	WorkerThreads   int            `json:"workerThreads"`
	SortField       string         `json:"sortField"`
	SortDirection   string         `json:"sortDirection"`
	PreferHTTPS     bool           `json:"preferHTTPS"`
	ObfuscateUrls   bool           `json:"obfuscateUrls"`
	LogLevel        string         `json:"logLevel"`
	EPGURL          string         `json:"epgUrl"`
	Sources         []SourceConfig `json:"sources"`
}

// Load reads and validates the configuration file at path. A missing or
// malformed file yields the built-in defaults rather than an error, so the
// service still comes up with an empty source list.
func Load(path string) *Config {
	cfg, err := loadFromFile(path)
	if err != nil {
		cfg = Default()
	}
	validateAndSetDefaults(cfg)
	return cfg
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cf ConfigFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return convertFromFile(&cf)
}

// convertFromFile converts a ConfigFile to Config, parsing duration strings.
// A blank duration keeps the zero value so validation can apply the default.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	cfg := &Config{
		ListenAddr:    cf.ListenAddr,
		StoreBackend:  cf.StoreBackend,
		CacheDir:      cf.CacheDir,
		DatabasePath:  cf.DatabasePath,
		WorkerThreads: cf.WorkerThreads,
		SortField:     cf.SortField,
		SortDirection: cf.SortDirection,
		PreferHTTPS:   cf.PreferHTTPS,
		ObfuscateUrls: cf.ObfuscateUrls,
		LogLevel:      cf.LogLevel,
		EPGURL:        cf.EPGURL,
		Sources:       append([]SourceConfig(nil), cf.Sources...),
	}

	for _, d := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cf.PlaylistTTL, &cfg.PlaylistTTL, "playlistTTL"},
		{cf.EPGTTL, &cfg.EPGTTL, "epgTTL"},
		{cf.PlaylistTimeout, &cfg.PlaylistTimeout, "playlistTimeout"},
		{cf.EPGTimeout, &cfg.EPGTimeout, "epgTimeout"},
		{cf.RefreshInterval, &cfg.RefreshInterval, "refreshInterval"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// Default returns the baseline configuration used when no file is present.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		StoreBackend:    "file",
		CacheDir:        "/settings/cache",
		DatabasePath:    "/settings/iptv-core.db",
		PlaylistTTL:     6 * time.Hour,
		EPGTTL:          2 * time.Hour,
		PlaylistTimeout: 15 * time.Second,
		EPGTimeout:      10 * time.Second,
		RefreshInterval: 4 * time.Hour,
		WorkerThreads:   4,
		SortField:       "tvg-name",
		SortDirection:   "asc",
		LogLevel:        "INFO",
	}
}

// validateAndSetDefaults fills in defaults for missing or invalid values so
// downstream code never has to guard against zero TTLs or blank sort fields.
func validateAndSetDefaults(cfg *Config) {
	def := Default()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.StoreBackend != "file" && cfg.StoreBackend != "sqlite" {
		cfg.StoreBackend = def.StoreBackend
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = def.CacheDir
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = def.DatabasePath
	}
	if cfg.PlaylistTTL <= 0 {
		cfg.PlaylistTTL = def.PlaylistTTL
	}
	if cfg.EPGTTL <= 0 {
		cfg.EPGTTL = def.EPGTTL
	}
	if cfg.PlaylistTimeout <= 0 {
		cfg.PlaylistTimeout = def.PlaylistTimeout
	}
	if cfg.EPGTimeout <= 0 {
		cfg.EPGTimeout = def.EPGTimeout
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.WorkerThreads <= 0 {
		cfg.WorkerThreads = def.WorkerThreads
	}
	if cfg.SortField == "" {
		cfg.SortField = def.SortField
	}
	if cfg.SortDirection != "asc" && cfg.SortDirection != "desc" {
		cfg.SortDirection = "asc"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}

	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Name == "" {
			src.Name = fmt.Sprintf("Source_%d", i+1)
		}
		if src.Kind != "m3u" && src.Kind != "xtream" {
			if src.Username != "" {
				src.Kind = "xtream"
			} else {
				src.Kind = "m3u"
			}
		}
		if src.UserAgent == "" {
			src.UserAgent = "VLC/3.0.18 LibVLC/3.0.18"
		}
		if src.RateLimit <= 0 {
			src.RateLimit = 5
		}
	}
}

// Key returns the cache identity of a source: the URL for M3U sources, the
// account triple for Xtream sources. Snapshot store keys and in-memory cache
// keys both derive from it.
func (s *SourceConfig) Key() string {
	if s.Kind == "xtream" {
		return fmt.Sprintf("xtream:%s@%s", s.Username, s.URL)
	}
	return "m3u:" + s.URL
}

// CreateExampleConfig writes a commented-by-example settings file to path.
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		ListenAddr:      ":8080",
		StoreBackend:    "file",
		CacheDir:        "/settings/cache",
		DatabasePath:    "/settings/iptv-core.db",
		PlaylistTTL:     "6h",
		EPGTTL:          "2h",
		PlaylistTimeout: "15s",
		EPGTimeout:      "10s",
		RefreshInterval: "4h",
		WorkerThreads:   4,
		SortField:       "tvg-name",
		SortDirection:   "asc",
		ObfuscateUrls:   true,
		LogLevel:        "INFO",
		EPGURL:          "http://example.com/guide.json",
		Sources: []SourceConfig{
			{
				Name:      "Primary M3U Source",
				Kind:      "m3u",
				URL:       "http://example.com/playlist.m3u",
				UserAgent: "VLC/3.0.18 LibVLC/3.0.18",
			},
			{
				Name:      "Xtream Account",
				Kind:      "xtream",
				URL:       "example-panel.com:8080",
				Username:  "user",
				Password:  "pass",
				RateLimit: 5,
			},
		},
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ObfuscateURL masks the path and query of a URL for logging. Playlist and
// Xtream URLs routinely embed credentials, so only scheme and host survive.
func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}
