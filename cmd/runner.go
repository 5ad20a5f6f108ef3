package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/gmsync/internal/handlers"
	"github.com/desertthunder/gmsync/internal/players"
	"github.com/desertthunder/gmsync/internal/services"
	"github.com/desertthunder/gmsync/internal/shared"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	configPath string
	config     *shared.Config
	players    *players.Registry
	client     services.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	ConfigPath string
	Config     *shared.Config // Skips loading ConfigPath when set
	Players    *players.Registry
	Client     services.Client // Replaces the configured remote client when set
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Players == nil {
		opts.Players = players.Default()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		configPath: opts.ConfigPath,
		config:     opts.Config,
		players:    opts.Players,
		client:     opts.Client,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
			Sources: cli.EnvVars("GMSYNC_CONFIG"),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, triggersCommand, syncCommand, changesCommand, mappingCommand, failuresCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config and applies its log level.
//
// A missing config file falls back to the defaults so `setup config` can run first.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		r.configPath = defaultConfigPath
	}

	if err := r.loadConfig(); err != nil {
		return ctx, err
	}

	if err := shared.ConfigureLogger(r.logger, r.config.Log); err != nil {
		return ctx, err
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

func (r *Runner) loadConfig() error {
	if r.config != nil {
		return nil
	}

	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		r.config = shared.DefaultConfig()
		return nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return err
	}
	r.config = config
	return nil
}

// openMappingDB opens the identifier mapping database and brings its schema up to date.
func (r *Runner) openMappingDB(ctx context.Context) (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}

	if r.config.Database.Path != ":memory:" && r.config.Database.MaxOpenConns > 0 {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (r *Runner) remoteClient(ctx context.Context) services.Client {
	if r.client != nil {
		return r.client
	}
	return services.NewRemoteClient(ctx, r.config.Remote)
}

// integrations returns the named integrations, or every enabled one when name is empty.
func (r *Runner) integrations(name string) ([]shared.IntegrationConfig, error) {
	if name != "" {
		in, err := r.config.Integration(name)
		if err != nil {
			return nil, err
		}
		return []shared.IntegrationConfig{in}, nil
	}

	var out []shared.IntegrationConfig
	for _, in := range r.config.Integrations {
		if !in.Disabled {
			out = append(out, in)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no enabled integrations", shared.ErrMissingConfig)
	}
	return out, nil
}

// integration returns exactly one integration: the named one, or the only enabled one.
func (r *Runner) integration(name string) (shared.IntegrationConfig, error) {
	all, err := r.integrations(name)
	if err != nil {
		return shared.IntegrationConfig{}, err
	}
	if len(all) > 1 {
		return shared.IntegrationConfig{}, fmt.Errorf("%w: --integration is required with %d integrations configured", shared.ErrMissingArgument, len(all))
	}
	return all[0], nil
}

func (r *Runner) bundle(in shared.IntegrationConfig) (handlers.Bundle, players.Player, error) {
	p, err := r.players.Lookup(in.Player)
	if err != nil {
		return handlers.Bundle{}, nil, fmt.Errorf("integration %s: %w", in.Name, err)
	}
	return p.Bundle(in.LocalPath), p, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(s string) error {
	return r.writePlain("%s\n", s)
}
