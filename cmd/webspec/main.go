package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/pkg/browser"
	"github.com/urfave/cli/v2"

	webspec "github.com/webspec-dev/webspec"
	"github.com/webspec-dev/webspec/exitcodes"
	"github.com/webspec-dev/webspec/flags"
	"github.com/webspec-dev/webspec/logging"
	"github.com/webspec-dev/webspec/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "webspec"
	app.Usage = "Browser End-to-End Spec Harness"
	app.Description = "webspec discovers YAML spec files and executes them against a live web application"
	app.Flags = flags.Flags
	app.Action = run
	app.Commands = []*cli.Command{
		{
			Name:  "report",
			Usage: "Work with run reports",
			Subcommands: []*cli.Command{
				{
					Name:   "open",
					Usage:  "Open the latest HTML report in the default browser",
					Flags:  []cli.Flag{flags.LogDir},
					Action: openReport,
				},
			},
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if webspec.IsSetupError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.SetupErr))
			} else if webspec.IsSpecFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.SpecFailure))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.SpecFailure))
			}
		}
	}

	// Telemetry is best effort; a missing collector never blocks a run.
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
	} else {
		defer otelShutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Exit(exitcodes.SetupErr)
	}
}

func run(cliCtx *cli.Context) error {
	log, err := logging.NewLogger(cliCtx.String(flags.LogLevel.Name))
	if err != nil {
		return webspec.NewSetupError(err)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := webspec.NewConfig(cliCtx, log)
	if err != nil {
		return webspec.NewSetupError(fmt.Errorf("failed to create config: %w", err))
	}

	// healthz and metrics servers, scraped in continuous deployments
	svc := service.New(log)
	svc.Start(cliCtx.Context)
	defer svc.Shutdown()

	ctx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()

	harness, err := webspec.New(ctx, cfg, Version, func(error) { cancel() })
	if err != nil {
		return webspec.NewSetupError(fmt.Errorf("failed to create webspec: %w", err))
	}

	if err := harness.Start(ctx); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	<-ctx.Done()
	return harness.Stop(context.Background())
}

func openReport(cliCtx *cli.Context) error {
	logDir, err := filepath.Abs(cliCtx.String(flags.LogDir.Name))
	if err != nil {
		return err
	}
	report := filepath.Join(logDir, "runs", "latest", "results.html")
	if _, err := os.Stat(report); err != nil {
		return cli.Exit(fmt.Sprintf("no report found at %s; run webspec first", report), exitcodes.SetupErr)
	}
	return browser.OpenFile(report)
}
