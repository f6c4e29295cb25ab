package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Config represents the complete feedsync configuration
type Config struct {
	Mongo    Mongo    `yaml:"mongo"`
	Identity Identity `yaml:"identity"`
	Media    Media    `yaml:"media"`
	Feed     Feed     `yaml:"feed"`
	Logging  Logging  `yaml:"logging"`
}

// Mongo contains the remote document store connection settings
type Mongo struct {
	URI              string `yaml:"uri"`
	Database         string `yaml:"database"`
	PostsCollection  string `yaml:"posts_collection"`
	UsersCollection  string `yaml:"users_collection"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

// Identity contains the session identity settings. The signing secret is
// never read from the config file; it comes from the JWT_SECRET
// environment variable.
type Identity struct {
	SessionToken string `yaml:"session_token"`
	Secret       string `yaml:"-"`
}

// Media contains media storage settings. The Cloudinary credential URL
// is never read from the config file; it comes from the CLOUDINARY_URL
// environment variable.
type Media struct {
	CloudinaryURL string `yaml:"-"`
	Folder        string `yaml:"folder"`
}

// Feed contains engine tuning options
type Feed struct {
	NoticeBuffer       int   `yaml:"notice_buffer"`
	WriteTimeoutMs     int   `yaml:"write_timeout_ms"`
	ReconnectBackoffMs []int `yaml:"reconnect_backoff_ms"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Mongo: Mongo{
			URI:              "mongodb://127.0.0.1:27017",
			Database:         "agrilink",
			PostsCollection:  "posts",
			UsersCollection:  "users",
			ConnectTimeoutMs: 15000,
		},
		Media: Media{
			Folder: "agrilink/posts",
		},
		Feed: Feed{
			NoticeBuffer:       64,
			WriteTimeoutMs:     10000,
			ReconnectBackoffMs: []int{1000, 2000, 5000, 10000, 30000},
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration fields with sensible defaults
func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = defaults.Mongo.URI
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = defaults.Mongo.Database
	}
	if cfg.Mongo.PostsCollection == "" {
		cfg.Mongo.PostsCollection = defaults.Mongo.PostsCollection
	}
	if cfg.Mongo.UsersCollection == "" {
		cfg.Mongo.UsersCollection = defaults.Mongo.UsersCollection
	}
	if cfg.Mongo.ConnectTimeoutMs == 0 {
		cfg.Mongo.ConnectTimeoutMs = defaults.Mongo.ConnectTimeoutMs
	}

	if cfg.Media.Folder == "" {
		cfg.Media.Folder = defaults.Media.Folder
	}

	if cfg.Feed.NoticeBuffer == 0 {
		cfg.Feed.NoticeBuffer = defaults.Feed.NoticeBuffer
	}
	if cfg.Feed.WriteTimeoutMs == 0 {
		cfg.Feed.WriteTimeoutMs = defaults.Feed.WriteTimeoutMs
	}
	if len(cfg.Feed.ReconnectBackoffMs) == 0 {
		cfg.Feed.ReconnectBackoffMs = defaults.Feed.ReconnectBackoffMs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
}

// applyEnvOverrides applies environment variable overrides to config.
// Secrets are only ever supplied through the environment.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if token := os.Getenv("FEEDSYNC_SESSION_TOKEN"); token != "" {
		cfg.Identity.SessionToken = token
	}
	cfg.Identity.Secret = os.Getenv("JWT_SECRET")
	cfg.Media.CloudinaryURL = os.Getenv("CLOUDINARY_URL")
}

// Validate checks if a configuration is valid
func Validate(cfg *Config) error {
	if cfg.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if cfg.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", cfg.Logging.Format)
	}

	for _, ms := range cfg.Feed.ReconnectBackoffMs {
		if ms <= 0 {
			return fmt.Errorf("feed.reconnect_backoff_ms entries must be positive")
		}
	}

	return nil
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}
