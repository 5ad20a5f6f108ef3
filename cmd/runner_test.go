package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/models"
	"github.com/desertthunder/gmsync/internal/players"
	"github.com/desertthunder/gmsync/internal/shared"
	tu "github.com/desertthunder/gmsync/internal/testing"
	"github.com/desertthunder/gmsync/internal/triggers"
)

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "gmsync.db")
	config.Retry = shared.RetryConfig{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxRetries: 1}
	config.Integrations = []shared.IntegrationConfig{
		{Name: "library", Player: "basic", LocalPath: filepath.Join(dir, "library.db"), PollInterval: 10 * time.Millisecond},
	}
	return config
}

// run executes args against a fresh command tree bound to runner.
func run(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{
		Name:     "gmsync",
		Flags:    runner.flags(),
		Before:   runner.Before,
		Commands: runner.register(),
	}
	return app.Run(context.Background(), append([]string{"gmsync"}, args...))
}

func openLibrary(t *testing.T, config *shared.Config) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(config.Integrations[0].LocalPath)
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			client := tu.NewMockClient()
			registry := players.Default()

			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
				Config:     config,
				Players:    registry,
				Client:     client,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.players != registry {
				t.Error("expected players to be set")
			}
			if runner.client != client {
				t.Error("expected client to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if _, err := runner.players.Lookup("basic"); err != nil {
				t.Errorf("expected built-in players, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.String() != "{\n  \"key\": \"value\"\n}\n" {
				t.Errorf("unexpected output: %q", output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON("x", false); err == nil {
				t.Error("expected write error")
			}
			if err := runner.writePlain("%s", "x"); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}
		want := "setup triggers sync changes mapping failures"
		if got := strings.Join(names, " "); got != want {
			t.Errorf("expected commands %q, got %q", want, got)
		}
	})

	t.Run("integrations", func(t *testing.T) {
		config := testConfig(t)
		config.Integrations = append(config.Integrations,
			shared.IntegrationConfig{Name: "old", Player: "basic", LocalPath: "old.db", Disabled: true},
			shared.IntegrationConfig{Name: "laptop", Player: "basic", LocalPath: "laptop.db"},
		)
		runner := NewRunner(RunnerOpts{Config: config})

		all, err := runner.integrations("")
		if err != nil || len(all) != 2 || all[1].Name != "laptop" {
			t.Errorf("expected enabled integrations only, got %+v, %v", all, err)
		}

		named, err := runner.integrations("old")
		if err != nil || len(named) != 1 {
			t.Errorf("expected a disabled integration to be selectable by name, got %+v, %v", named, err)
		}

		if _, err := runner.integrations("missing"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
		if _, err := runner.integration(""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument with two integrations, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&strings.Builder{}), Output: &bytes.Buffer{}})

		if err := run(t, runner, "--config", path, "setup", "config"); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)

		if err := run(t, runner, "--config", path, "setup", "config"); err == nil {
			t.Error("expected an error for an existing config file")
		}
	})

	t.Run("database from config file", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "mappings.db")
		confPath := filepath.Join(dir, "config.toml")
		content := "[log]\nlevel = \"debug\"\n\n[database]\npath = \"" + dbPath + "\"\n"
		if err := os.WriteFile(confPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&strings.Builder{}), Output: &bytes.Buffer{}})
		if err := run(t, runner, "--config", confPath, "setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, dbPath)

		if err := run(t, runner, "--config", confPath, "setup", "rollback"); err != nil {
			t.Errorf("rollback failed: %v", err)
		}
	})
}

func TestSyncCommands(t *testing.T) {
	config := testConfig(t)
	client := tu.NewMockClient()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Client: client,
		Logger: shared.NewLogger(&strings.Builder{}),
		Output: output,
	})
	ctx := context.Background()

	mustRun := func(t *testing.T, args ...string) {
		t.Helper()
		if err := run(t, runner, args...); err != nil {
			t.Fatalf("%s: %v", strings.Join(args, " "), err)
		}
	}

	mustRun(t, "setup", "library")
	mustRun(t, "triggers", "install")
	library := openLibrary(t, config)

	t.Run("triggers list", func(t *testing.T) {
		output.Reset()
		mustRun(t, "triggers", "list")
		if !strings.Contains(output.String(), "song_added") || !strings.Contains(output.String(), "installed") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("changes list", func(t *testing.T) {
		if _, err := library.Exec("INSERT INTO songs (id, title) VALUES (1, 'Aja')"); err != nil {
			t.Fatalf("insert: %v", err)
		}

		output.Reset()
		mustRun(t, "changes", "list", "--json")

		var lists []changeList
		if err := json.Unmarshal(output.Bytes(), &lists); err != nil {
			t.Fatalf("decode: %v\n%s", err, output.String())
		}
		if len(lists) != 1 || len(lists[0].Changes) != 1 || lists[0].Changes[0].Trigger != "song_added" {
			t.Errorf("unexpected changes: %+v", lists)
		}
	})

	t.Run("sync run once", func(t *testing.T) {
		output.Reset()
		mustRun(t, "sync", "run", "--once")

		if client.SongCount() != 1 {
			t.Errorf("expected 1 remote song, got %d", client.SongCount())
		}
		if !strings.Contains(output.String(), "song_added(1) succeeded") {
			t.Errorf("expected update line, got:\n%s", output.String())
		}
	})

	t.Run("mapping get and list", func(t *testing.T) {
		output.Reset()
		mustRun(t, "mapping", "get", "1")
		if strings.TrimSpace(output.String()) != "gm-1" {
			t.Errorf("expected gm-1, got %q", output.String())
		}

		output.Reset()
		mustRun(t, "mapping", "list", "--json")
		var entries []models.MappingEntry
		if err := json.Unmarshal(output.Bytes(), &entries); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(entries) != 1 || entries[0].RemoteID != "gm-1" || entries[0].Player != "library" {
			t.Errorf("unexpected entries: %+v", entries)
		}

		if err := run(t, runner, "mapping", "get", "--type", "playlist", "1"); !errors.Is(err, shared.ErrUnmappedID) {
			t.Errorf("expected ErrUnmappedID, got %v", err)
		}
	})

	t.Run("mapping export", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mappings.csv")
		mustRun(t, "mapping", "export", "--format", "csv", "--output", path)

		if content := tu.MustReadFile(t, path); !strings.Contains(content, "library,1,song,gm-1") {
			t.Errorf("unexpected export:\n%s", content)
		}
	})

	t.Run("failures and skip", func(t *testing.T) {
		res, err := library.Exec("INSERT INTO " + models.ChangeLogTable + " (trigger_name, local_id) VALUES ('album_added', '5')")
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		seq, _ := res.LastInsertId()

		if err := run(t, runner, "sync", "run", "--once", "--quiet"); !errors.Is(err, shared.ErrUnboundTrigger) {
			t.Fatalf("expected ErrUnboundTrigger, got %v", err)
		}

		output.Reset()
		mustRun(t, "failures", "list", "--json")
		var failures []models.Failure
		if err := json.Unmarshal(output.Bytes(), &failures); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(failures) != 1 || failures[0].Trigger != "album_added" {
			t.Fatalf("unexpected failures: %+v", failures)
		}

		mustRun(t, "changes", "skip", strconv.FormatInt(seq, 10))
		if err := run(t, runner, "changes", "skip", strconv.FormatInt(seq, 10)); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected skipping twice to fail, got %v", err)
		}

		mustRun(t, "sync", "run", "--once")
		mustRun(t, "failures", "remove", failures[0].ID)
		if err := run(t, runner, "failures", "remove", failures[0].ID); err == nil {
			t.Error("expected removing a missing failure to fail")
		}
	})

	t.Run("mapping remove", func(t *testing.T) {
		mustRun(t, "mapping", "remove", "1")
		if err := run(t, runner, "mapping", "remove", "1"); !errors.Is(err, shared.ErrUnmappedID) {
			t.Errorf("expected ErrUnmappedID, got %v", err)
		}
	})

	t.Run("triggers uninstall", func(t *testing.T) {
		mustRun(t, "triggers", "uninstall")

		names, err := triggers.Installed(ctx, library)
		if err != nil {
			t.Fatalf("failed to list triggers: %v", err)
		}
		if len(names) != 0 {
			t.Errorf("expected no triggers, got %v", names)
		}
	})
}
