package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted for secrets left empty in the YAML.
const (
	EnvPlacesKey = "MUSALLAGO_PLACES_KEY"
	EnvPlacesURL = "MUSALLAGO_PLACES_URL"
	EnvMapsKey   = "GOOGLE_MAPS_API_KEY"
)

// Config holds the application configuration.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	DB           DBConfig           `yaml:"db"`
	Server       ServerConfig       `yaml:"server"`
	Request      RequestConfig      `yaml:"request"`
	Places       PlacesConfig       `yaml:"places"`
	Routing      RoutingConfig      `yaml:"routing"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Cache        CacheConfig        `yaml:"cache"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds the settings for a single log file.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// RequestConfig holds outbound HTTP settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	MinGap  Duration      `yaml:"min_gap"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// PlacesConfig configures the place catalog backend and proactive prefetch.
type PlacesConfig struct {
	BaseURL           string     `yaml:"base_url"`
	Key               string     `yaml:"key"`
	DefaultRadius     Distance   `yaml:"default_radius"`
	PrefetchRadii     []Distance `yaml:"prefetch_radii"`
	PrefetchThreshold int        `yaml:"prefetch_threshold"`
	PrefetchTimeout   Duration   `yaml:"prefetch_timeout"`
}

// RoutingConfig configures the walking directions provider.
type RoutingConfig struct {
	BaseURL         string   `yaml:"base_url"`
	Key             string   `yaml:"key"`
	Mode            string   `yaml:"mode"`
	Timeout         Duration `yaml:"timeout"`
	SyntheticPoints int      `yaml:"synthetic_points"`
}

// ConnectivityConfig configures the offline probe.
type ConnectivityConfig struct {
	URL      string   `yaml:"url"`
	Timeout  Duration `yaml:"timeout"`
	Interval Duration `yaml:"interval"` // Poll interval for the websocket feed
}

// CacheConfig holds TTLs and the schema version of cached payloads.
type CacheConfig struct {
	SchemaVersion uint32   `yaml:"schema_version"`
	PlacesTTL     Duration `yaml:"places_ttl"`
	LocationTTL   Duration `yaml:"location_ttl"`
	DirectionsTTL Duration `yaml:"directions_ttl"`
}

// DefaultConfig returns the configuration written on first start.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/musallago.db",
		},
		Server: ServerConfig{
			Address: "localhost:1950",
		},
		Request: RequestConfig{
			Retries: 2,
			Timeout: Duration(15 * time.Second),
			MinGap:  Duration(50 * time.Millisecond),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Places: PlacesConfig{
			BaseURL:           "",
			DefaultRadius:     Distance(5000),
			PrefetchRadii:     []Distance{5000, 15000, 50000},
			PrefetchThreshold: 20,
			PrefetchTimeout:   Duration(2 * time.Minute),
		},
		Routing: RoutingConfig{
			BaseURL:         "https://maps.googleapis.com/maps/api/directions/json",
			Mode:            "walking",
			Timeout:         Duration(10 * time.Second),
			SyntheticPoints: 11,
		},
		Connectivity: ConnectivityConfig{
			URL:      "https://www.google.com/generate_204",
			Timeout:  Duration(5 * time.Second),
			Interval: Duration(30 * time.Second),
		},
		Cache: CacheConfig{
			SchemaVersion: 1,
			PlacesTTL:     Duration(7 * Day),
			LocationTTL:   Duration(1 * time.Hour),
			DirectionsTTL: Duration(24 * time.Hour),
		},
	}
}

// Load reads the config at path, creating it with defaults if missing.
// A .env file in the working directory or next to the config fills empty secrets.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	loadDotEnv(".env", filepath.Join(dir, ".env"))

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the first existing file. Variables already set in the environment win.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

func applyEnv(cfg *Config) {
	if cfg.Places.Key == "" {
		cfg.Places.Key = os.Getenv(EnvPlacesKey)
	}
	if cfg.Places.BaseURL == "" {
		cfg.Places.BaseURL = os.Getenv(EnvPlacesURL)
	}
	if cfg.Routing.Key == "" {
		cfg.Routing.Key = os.Getenv(EnvMapsKey)
	}
}

var validModes = regexp.MustCompile(`^(walking|driving|bicycling|transit)$`)

// Validate rejects settings the resolvers cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Places.PrefetchRadii) == 0 {
		errs = append(errs, errors.New("places.prefetch_radii must not be empty"))
	}
	for i := 1; i < len(c.Places.PrefetchRadii); i++ {
		if c.Places.PrefetchRadii[i] <= c.Places.PrefetchRadii[i-1] {
			errs = append(errs, fmt.Errorf("places.prefetch_radii must be strictly increasing (got %v after %v)",
				float64(c.Places.PrefetchRadii[i]), float64(c.Places.PrefetchRadii[i-1])))
			break
		}
	}
	if c.Places.PrefetchThreshold <= 0 {
		errs = append(errs, errors.New("places.prefetch_threshold must be positive"))
	}
	if !validModes.MatchString(c.Routing.Mode) {
		errs = append(errs, fmt.Errorf("invalid routing.mode '%s': must be walking, driving, bicycling or transit", c.Routing.Mode))
	}
	if c.Routing.SyntheticPoints < 2 {
		errs = append(errs, errors.New("routing.synthetic_points must be at least 2"))
	}
	if c.Cache.SchemaVersion == 0 {
		errs = append(errs, errors.New("cache.schema_version must be at least 1"))
	}
	return errors.Join(errs...)
}

// PrefetchRadiiMeters returns the prefetch ladder as plain metres.
func (c *PlacesConfig) PrefetchRadiiMeters() []float64 {
	out := make([]float64, len(c.PrefetchRadii))
	for i, r := range c.PrefetchRadii {
		out[i] = float64(r)
	}
	return out
}

// Save writes cfg to path with an explanatory header.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Musallago Configuration
# ----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), mi (miles)
# Secrets may be left empty and supplied via .env:
#   ` + EnvPlacesURL + `, ` + EnvPlacesKey + `, ` + EnvMapsKey + `

`)
	data = append(header, data...)

	reMode := regexp.MustCompile(`(?m)^(\s+)mode:`)
	data = reMode.ReplaceAll(data, []byte("${1}# Options: walking, driving, bicycling, transit\n${1}mode:"))

	reSchema := regexp.MustCompile(`(?m)^(\s+)schema_version:`)
	data = reSchema.ReplaceAll(data, []byte("${1}# Bumping this wipes every cached entry on next start\n${1}schema_version:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
