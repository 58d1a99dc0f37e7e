// Package playwright implements the backend interface on top of
// playwright-community/playwright-go.
package playwright

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/webspec-dev/webspec/backend"
)

// Backend drives a Playwright-managed browser. One launched browser serves
// the run; each session is an isolated BrowserContext.
type Backend struct {
	opts    backend.Options
	log     *zap.SugaredLogger
	pw      *playwright.Playwright
	browser playwright.Browser
}

// New creates an unstarted Playwright backend.
func New(opts backend.Options, log *zap.SugaredLogger) *Backend {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Backend{opts: opts, log: log}
}

func (b *Backend) Name() string { return string(backend.EnginePlaywright) }

// Start installs the driver if needed, boots Playwright and launches the
// configured browser.
func (b *Backend) Start(ctx context.Context) error {
	if os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err := playwright.Install(); err != nil {
			return fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		// Retry once after an explicit driver install; a version-skewed
		// driver is the usual cause.
		_ = playwright.Install()
		pw, err = playwright.Run()
		if err != nil {
			return fmt.Errorf("could not start playwright: %w", err)
		}
	}
	b.pw = pw

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.opts.Headless),
	}
	if b.opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(float64(b.opts.SlowMo.Milliseconds()))
	}

	var browser playwright.Browser
	switch b.opts.Browser {
	case backend.BrowserFirefox:
		browser, err = pw.Firefox.Launch(launchOpts)
	case backend.BrowserWebKit:
		browser, err = pw.WebKit.Launch(launchOpts)
	case backend.BrowserEdge:
		launchOpts.Channel = playwright.String("msedge")
		browser, err = pw.Chromium.Launch(launchOpts)
	default:
		browser, err = pw.Chromium.Launch(launchOpts)
	}
	if err != nil {
		return fmt.Errorf("could not launch %s: %w", b.opts.Browser, err)
	}
	b.browser = browser
	b.log.Debugw("playwright backend started", "browser", b.opts.Browser, "headless", b.opts.Headless)
	return nil
}

// NewSession creates an isolated BrowserContext with one page. Videos, when
// recorded, land in the session's artifact directory.
func (b *Backend) NewSession(ctx context.Context, artifactDir string) (backend.Session, error) {
	if b.browser == nil {
		return nil, fmt.Errorf("backend not started")
	}
	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 720},
	}
	if artifactDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: artifactDir}
	}
	bctx, err := b.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	if b.opts.DefaultTimeout > 0 {
		page.SetDefaultTimeout(float64(b.opts.DefaultTimeout.Milliseconds()))
	}
	return &session{bctx: bctx, page: page, artifactDir: artifactDir}, nil
}

func (b *Backend) Stop() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
		b.browser = nil
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			return err
		}
		b.pw = nil
	}
	return nil
}

type session struct {
	bctx        playwright.BrowserContext
	page        playwright.Page
	artifactDir string
}

func (s *session) Navigate(ctx context.Context, url string) error {
	_, err := s.page.Goto(url)
	return err
}

func (s *session) Resolve(ctx context.Context, locator string) (backend.ElementHandle, error) {
	loc := s.page.Locator(locator)
	count, err := loc.Count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, &backend.ElementNotFoundError{Locator: locator}
	}
	return loc, nil
}

func (s *session) Interact(ctx context.Context, el backend.ElementHandle, action string, args map[string]string) error {
	loc, ok := el.(playwright.Locator)
	if !ok {
		return fmt.Errorf("element handle does not belong to a playwright session")
	}
	switch action {
	case "click":
		return loc.Click()
	case "fill":
		return loc.Fill(args["value"])
	case "press":
		return loc.Press(args["key"])
	case "hover":
		return loc.Hover()
	case "check":
		return loc.Check()
	case "select":
		_, err := loc.SelectOption(playwright.SelectOptionValues{
			Values: &[]string{args["value"]},
		})
		return err
	}
	return fmt.Errorf("unsupported interaction %q", action)
}

func (s *session) Text(ctx context.Context, el backend.ElementHandle) (string, error) {
	loc, ok := el.(playwright.Locator)
	if !ok {
		return "", fmt.Errorf("element handle does not belong to a playwright session")
	}
	return loc.TextContent()
}

func (s *session) CurrentURL() string { return s.page.URL() }

func (s *session) CaptureArtifact(ctx context.Context, kind backend.ArtifactKind) (string, error) {
	switch kind {
	case backend.ArtifactScreenshot:
		path := filepath.Join(s.artifactDir, fmt.Sprintf("screenshot-%d.png", time.Now().UnixNano()))
		_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(path),
			FullPage: playwright.Bool(true),
		})
		if err != nil {
			return "", err
		}
		return path, nil
	case backend.ArtifactVideo:
		video := s.page.Video()
		if video == nil {
			return "", fmt.Errorf("no video recorded for this session")
		}
		return video.Path()
	}
	return "", fmt.Errorf("unsupported artifact kind %q", kind)
}

func (s *session) Close() error {
	if err := s.page.Close(); err != nil {
		return err
	}
	return s.bctx.Close()
}
