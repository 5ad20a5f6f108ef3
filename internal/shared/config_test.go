package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./gmsync.db" {
			t.Errorf("expected database path ./gmsync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 9464 {
			t.Errorf("expected server port 9464, got %d", config.Server.Port)
		}

		if config.Remote.Timeout != 30*time.Second {
			t.Errorf("expected remote timeout 30s, got %v", config.Remote.Timeout)
		}

		if config.Retry.InitialInterval != 500*time.Millisecond {
			t.Errorf("expected initial retry interval 500ms, got %v", config.Retry.InitialInterval)
		}

		if len(config.Integrations) != 1 || config.Integrations[0].Player != "basic" {
			t.Errorf("expected one basic integration, got %+v", config.Integrations)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/mappings.db"

[remote]
base_url = "http://localhost:9090"
rate_limit = 2.5

[retry]
max_retries = 3
retry_unmapped = false

[[integrations]]
name = "desk"
player = "basic"
local_path = "/music/desk.db"
poll_interval = "250ms"

[[integrations]]
name = "laptop"
player = "basic"
local_path = "/music/laptop.db"
disabled = true
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/mappings.db" {
			t.Errorf("expected database path /custom/mappings.db, got %s", config.Database.Path)
		}

		if config.Remote.RateLimit != 2.5 {
			t.Errorf("expected rate limit 2.5, got %v", config.Remote.RateLimit)
		}

		if config.Retry.MaxRetries != 3 || config.Retry.RetryUnmapped {
			t.Errorf("unexpected retry config: %+v", config.Retry)
		}

		if config.Retry.MaxInterval != 30*time.Second {
			t.Errorf("expected unset fields to keep defaults, got max interval %v", config.Retry.MaxInterval)
		}

		if len(config.Integrations) != 2 {
			t.Fatalf("expected 2 integrations, got %d", len(config.Integrations))
		}

		desk, err := config.Integration("desk")
		if err != nil {
			t.Fatalf("expected desk integration: %v", err)
		}
		if desk.PollInterval != 250*time.Millisecond {
			t.Errorf("expected poll interval 250ms, got %v", desk.PollInterval)
		}

		laptop, _ := config.Integration("laptop")
		if !laptop.Disabled {
			t.Error("expected laptop integration to be disabled")
		}

		if _, err := config.Integration("missing"); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tt := []struct {
			name         string
			integrations []IntegrationConfig
		}{
			{
				name:         "missing name",
				integrations: []IntegrationConfig{{Player: "basic", LocalPath: "a.db"}},
			},
			{
				name:         "missing player",
				integrations: []IntegrationConfig{{Name: "a", LocalPath: "a.db"}},
			},
			{
				name:         "missing local path",
				integrations: []IntegrationConfig{{Name: "a", Player: "basic"}},
			},
			{
				name: "duplicate name",
				integrations: []IntegrationConfig{
					{Name: "a", Player: "basic", LocalPath: "a.db"},
					{Name: "a", Player: "basic", LocalPath: "b.db"},
				},
			},
			{
				name: "shared local path",
				integrations: []IntegrationConfig{
					{Name: "a", Player: "basic", LocalPath: "library.db"},
					{Name: "b", Player: "basic", LocalPath: "library.db"},
				},
			},
			{
				name: "shared local path spelled differently",
				integrations: []IntegrationConfig{
					{Name: "a", Player: "basic", LocalPath: "data/library.db"},
					{Name: "b", Player: "basic", LocalPath: "./data/../data/library.db"},
				},
			},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				config := DefaultConfig()
				config.Integrations = tc.integrations

				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("Validate Accepts Distinct Local Paths", func(t *testing.T) {
		config := DefaultConfig()
		config.Integrations = []IntegrationConfig{
			{Name: "desk", Player: "basic", LocalPath: "desk.db"},
			{Name: "laptop", Player: "basic", LocalPath: "laptop.db"},
			{Name: "scratch", Player: "basic", LocalPath: ":memory:"},
			{Name: "scratch2", Player: "basic", LocalPath: ":memory:"},
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected config to validate, got %v", err)
		}
	})
}
