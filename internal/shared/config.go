package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log          LogConfig           `toml:"log"`
	Database     DatabaseConfig      `toml:"database"`
	Remote       RemoteConfig        `toml:"remote"`
	Retry        RetryConfig         `toml:"retry"`
	Server       ServerConfig        `toml:"server"`
	Integrations []IntegrationConfig `toml:"integrations"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// DatabaseConfig contains settings for the identifier mapping database.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RemoteConfig contains the catalog proxy location and its OAuth2 credentials.
type RemoteConfig struct {
	BaseURL      string        `toml:"base_url"`
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	TokenURL     string        `toml:"token_url"`
	RefreshToken string        `toml:"refresh_token"`
	Scopes       []string      `toml:"scopes"`
	Timeout      time.Duration `toml:"timeout"`
	RateLimit    float64       `toml:"rate_limit"` // requests per second, 0 disables throttling
	Burst        int           `toml:"burst"`
}

// RetryConfig is the backoff policy applied to transient push failures.
type RetryConfig struct {
	InitialInterval time.Duration `toml:"initial_interval"`
	MaxInterval     time.Duration `toml:"max_interval"`
	MaxElapsedTime  time.Duration `toml:"max_elapsed_time"`
	MaxRetries      uint64        `toml:"max_retries"`
	RetryUnmapped   bool          `toml:"retry_unmapped"`
}

// ServerConfig contains the optional status/metrics HTTP server settings.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// IntegrationConfig binds one media player's local library to a sync worker.
type IntegrationConfig struct {
	Name         string        `toml:"name"`
	Player       string        `toml:"player"`
	LocalPath    string        `toml:"local_path"`
	PollInterval time.Duration `toml:"poll_interval"`
	Disabled     bool          `toml:"disabled"`
}

// Addr returns the host:port the status server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the integration list for missing fields, duplicate names and shared local databases.
//
// Two integrations over one local database would drain the same change log, so each
// local_path may appear once. In-memory databases are exempt.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Integrations))
	paths := make(map[string]string, len(c.Integrations))
	for i, in := range c.Integrations {
		if in.Name == "" {
			return fmt.Errorf("%w: integrations[%d] has no name", ErrInvalidConfig, i)
		}
		if in.Player == "" {
			return fmt.Errorf("%w: integration %q has no player", ErrInvalidConfig, in.Name)
		}
		if in.LocalPath == "" {
			return fmt.Errorf("%w: integration %q has no local_path", ErrInvalidConfig, in.Name)
		}
		if seen[in.Name] {
			return fmt.Errorf("%w: integration %q declared twice", ErrInvalidConfig, in.Name)
		}
		seen[in.Name] = true

		if in.LocalPath == memoryPath {
			continue
		}
		key := localPathKey(in.LocalPath)
		if other, ok := paths[key]; ok {
			return fmt.Errorf("%w: integrations %q and %q share local_path %s", ErrInvalidConfig, other, in.Name, in.LocalPath)
		}
		paths[key] = in.Name
	}
	return nil
}

func localPathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Integration looks up an integration by name.
func (c *Config) Integration(name string) (IntegrationConfig, error) {
	for _, in := range c.Integrations {
		if in.Name == name {
			return in, nil
		}
	}
	return IntegrationConfig{}, fmt.Errorf("%w: integration %q", ErrMissingConfig, name)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Integrations = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
