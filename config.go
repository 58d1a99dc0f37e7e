package webspec

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/webspec-dev/webspec/backend"
	"github.com/webspec-dev/webspec/flags"
	"github.com/webspec-dev/webspec/retry"
)

// Config holds the application configuration
type Config struct {
	BaseURL      string
	SpecDir      string        // Directory from which specs are discovered
	PageDir      string        // Directory holding page object definitions
	FixtureDir   string        // Directory holding fixture files
	Tag          string        // Only run specs carrying this tag
	Browser      backend.Browser
	Engine       backend.Engine
	Headless     bool
	Concurrency  int           // Number of concurrent spec workers
	SpecTimeout  time.Duration // Per-spec ceiling, overridable per spec
	DefaultRetry retry.Policy  // Default assertion retry policy
	RunInterval  time.Duration // Interval between runs
	RunOnce      bool          // Indicates if the service should exit after one run
	LogDir       string        // Directory to store run logs and artifacts
	Log          *zap.SugaredLogger
}

// NewConfig creates a new Config from cli context. Values from a .env file in
// the working directory are loaded into the environment first, so they feed
// the WEBSPEC_* flag defaults.
func NewConfig(ctx *cli.Context, log *zap.SugaredLogger) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	specDir := ctx.String(flags.SpecDir.Name)
	if specDir == "" {
		return nil, errors.New("spec directory is required")
	}
	absSpecDir, err := filepath.Abs(specDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for spec directory '%s': %w", specDir, err)
	}

	pageDir := ctx.String(flags.PageDir.Name)
	if pageDir == "" {
		pageDir = absSpecDir
	}
	absPageDir, err := filepath.Abs(pageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for page directory '%s': %w", pageDir, err)
	}

	var absFixtureDir string
	if fixtureDir := ctx.String(flags.FixtureDir.Name); fixtureDir != "" {
		absFixtureDir, err = filepath.Abs(fixtureDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for fixture directory '%s': %w", fixtureDir, err)
		}
	}

	logDir, err := filepath.Abs(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}

	browser, err := backend.ParseBrowser(ctx.String(flags.Browser.Name))
	if err != nil {
		return nil, err
	}
	engine, err := backend.ParseEngine(ctx.String(flags.Engine.Name))
	if err != nil {
		return nil, err
	}

	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		BaseURL:     ctx.String(flags.BaseURL.Name),
		SpecDir:     absSpecDir,
		PageDir:     absPageDir,
		FixtureDir:  absFixtureDir,
		Tag:         ctx.String(flags.Tag.Name),
		Browser:     browser,
		Engine:      engine,
		Headless:    ctx.Bool(flags.Headless.Name),
		Concurrency: concurrency,
		SpecTimeout: ctx.Duration(flags.SpecTimeout.Name),
		DefaultRetry: retry.Policy{
			Timeout:       ctx.Duration(flags.RetryTimeout.Name),
			Interval:      ctx.Duration(flags.RetryInterval.Name),
			BackoffFactor: retry.DefaultPolicy.BackoffFactor,
		},
		RunInterval: runInterval,
		RunOnce:     runOnce,
		LogDir:      logDir,
		Log:         log,
	}, nil
}
