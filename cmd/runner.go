package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/ryantate/typingpool-sub000/internal/repositories"
	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
	"github.com/ryantate/typingpool-sub000/internal/tasks"
	"github.com/ryantate/typingpool-sub000/internal/ui"
	"github.com/ryantate/typingpool-sub000/internal/units"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The engine is built lazily from the validated config on the first command that needs it.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     tasks.SyncEngine
	cache      *repositories.UnitCache
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Engine     tasks.SyncEngine
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		engine:     opts.Engine,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "tp",
		Usage:   "Crowdsource audio transcription through a work marketplace",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, importCommand, uploadCommand, publishCommand, assignCommand, collectCommand,
		reviewCommand, reapCommand, deleteCommand, finishCommand, statusCommand, transcriptCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads and validates the config named by --config, once.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if p := cmd.String("config"); p != "" {
		path = p
	}
	if path == "" {
		path = "config.toml"
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(r.logger, config.LogLevel())
	r.config = config
	r.configPath = path
	return config, nil
}

// load builds the engine from the config on first use.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (tasks.SyncEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	storage, err := newStorage(ctx, config.Storage)
	if err != nil {
		return nil, err
	}

	cache, err := repositories.OpenUnitCache(config.CachePath())
	if err != nil {
		return nil, err
	}
	r.cache = cache

	market := services.NewMarketClient(
		config.Marketplace.BaseURL,
		config.Marketplace.APIKey,
		config.Marketplace.RequestsPerSecond,
		r.httpClient,
	)
	env := units.NewEnv(market, cache, services.NewHTTPQuestionFetcher(r.httpClient), shared.WithLogger(r.logger, "component", "units")).
		WithFields(config.Marketplace.LookupFields())

	settings := tasks.Settings{
		ProjectID:    config.Project.ID,
		AudioDir:     config.AudioDir(),
		Policy:       tasks.PolicyFromConfig(config.Assign),
		Instructions: config.Assign.Description,
	}
	r.engine = tasks.NewProjectEngine(
		repositories.NewRowStore(config.RowsPath()),
		storage,
		services.NewHTTPProber(r.httpClient),
		env,
		settings,
		shared.WithLogger(r.logger, "project", config.Project.ID),
	)
	return r.engine, nil
}

// newStorage selects the backend named by storage.backend.
func newStorage(ctx context.Context, cfg shared.StorageConfig) (services.Storage, error) {
	switch cfg.Backend {
	case "s3":
		return services.NewS3Storage(ctx, cfg)
	case "sftp":
		return services.NewSFTPStorage(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// Close releases the cache database if one was opened.
func (r *Runner) Close() error {
	if r.cache == nil {
		return nil
	}
	err := r.cache.Close()
	r.cache = nil
	return err
}

// progress starts a printer for engine updates. Call the returned func once the operation returns.
func (r *Runner) progress() (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			r.writePlain("%s\n", ui.RenderProgress(update))
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
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

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
