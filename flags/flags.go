package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "WEBSPEC"

// prefixEnvVars names the environment variable for a flag.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	BaseURL = &cli.StringFlag{
		Name:     "base-url",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("BASE_URL"),
		Usage:    "Base URL of the application under test (eg. 'http://localhost:8080')",
	}
	SpecDir = &cli.StringFlag{
		Name:     "specdir",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("SPECDIR"),
		Usage:    "Path to the directory from which to discover *.spec.yaml files",
	}
	PageDir = &cli.StringFlag{
		Name:    "pagedir",
		Value:   "",
		EnvVars: prefixEnvVars("PAGEDIR"),
		Usage:   "Path to the directory holding *.page.yaml page objects (defaults to specdir)",
	}
	FixtureDir = &cli.StringFlag{
		Name:    "fixturedir",
		Value:   "",
		EnvVars: prefixEnvVars("FIXTUREDIR"),
		Usage:   "Path to the directory holding fixture YAML files",
	}
	Tag = &cli.StringFlag{
		Name:    "tag",
		Value:   "",
		EnvVars: prefixEnvVars("TAG"),
		Usage:   "Only run specs carrying this tag (eg. 'smoke')",
	}
	Browser = &cli.StringFlag{
		Name:    "browser",
		Value:   "chromium",
		EnvVars: prefixEnvVars("BROWSER"),
		Usage:   "Browser to drive: chromium, firefox, webkit or edge",
	}
	Engine = &cli.StringFlag{
		Name:    "engine",
		Value:   "playwright",
		EnvVars: prefixEnvVars("ENGINE"),
		Usage:   "Automation engine: playwright or rod (rod is chromium-only)",
	}
	Headless = &cli.BoolFlag{
		Name:    "headless",
		Value:   true,
		EnvVars: prefixEnvVars("HEADLESS"),
		Usage:   "Run the browser without a visible window",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Aliases: []string{"parallel"},
		Value:   4,
		EnvVars: prefixEnvVars("CONCURRENCY"),
		Usage:   "Number of specs to run in parallel",
	}
	SpecTimeout = &cli.DurationFlag{
		Name:    "spec-timeout",
		Value:   5 * time.Minute,
		EnvVars: prefixEnvVars("SPEC_TIMEOUT"),
		Usage:   "Per-spec execution ceiling, overridable per spec file",
	}
	RetryTimeout = &cli.DurationFlag{
		Name:    "retry-timeout",
		Value:   10 * time.Second,
		EnvVars: prefixEnvVars("RETRY_TIMEOUT"),
		Usage:   "Default assertion retry budget",
	}
	RetryInterval = &cli.DurationFlag{
		Name:    "retry-interval",
		Value:   100 * time.Millisecond,
		EnvVars: prefixEnvVars("RETRY_INTERVAL"),
		Usage:   "Default initial interval between assertion attempts",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store run logs, artifacts and reports",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level: debug, info, warn or error",
	}
)

var requiredFlags = []cli.Flag{
	BaseURL,
	SpecDir,
}

var optionalFlags = []cli.Flag{
	PageDir,
	FixtureDir,
	Tag,
	Browser,
	Engine,
	Headless,
	Concurrency,
	SpecTimeout,
	RetryTimeout,
	RetryInterval,
	RunInterval,
	LogDir,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
