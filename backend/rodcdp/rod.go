// Package rodcdp implements the backend interface on top of go-rod/rod,
// driving Chromium over the DevTools protocol. Rod only speaks CDP, so
// firefox/webkit configurations are rejected at construction.
package rodcdp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/webspec-dev/webspec/backend"
)

// Backend drives a rod-managed Chromium. Sessions are incognito browser
// contexts, so specs never share cookies or storage.
type Backend struct {
	opts     backend.Options
	log      *zap.SugaredLogger
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// New creates an unstarted rod backend.
func New(opts backend.Options, log *zap.SugaredLogger) (*Backend, error) {
	switch opts.Browser {
	case backend.BrowserChromium, backend.BrowserEdge:
	default:
		return nil, fmt.Errorf("rod backend only drives chromium-family browsers, got %q", opts.Browser)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Backend{opts: opts, log: log}, nil
}

func (b *Backend) Name() string { return string(backend.EngineRod) }

func (b *Backend) Start(ctx context.Context) error {
	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(b.opts.Headless)
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("could not launch chromium: %w", err)
	}
	b.launcher = l

	browser := rod.New().ControlURL(u)
	if b.opts.SlowMo > 0 {
		browser = browser.SlowMotion(b.opts.SlowMo)
	}
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("could not connect to chromium: %w", err)
	}
	b.browser = browser
	b.log.Debugw("rod backend started", "headless", b.opts.Headless)
	return nil
}

func (b *Backend) NewSession(ctx context.Context, artifactDir string) (backend.Session, error) {
	if b.browser == nil {
		return nil, fmt.Errorf("backend not started")
	}
	inc, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("could not create incognito context: %w", err)
	}
	page, err := inc.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	if b.opts.DefaultTimeout > 0 {
		page = page.Timeout(b.opts.DefaultTimeout)
	}
	return &session{inc: inc, page: page, artifactDir: artifactDir}, nil
}

func (b *Backend) Stop() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	return nil
}

type session struct {
	inc         *rod.Browser
	page        *rod.Page
	artifactDir string
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := s.page.Navigate(url); err != nil {
		return err
	}
	return s.page.WaitLoad()
}

func (s *session) Resolve(ctx context.Context, locator string) (backend.ElementHandle, error) {
	has, el, err := s.page.Has(locator)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, &backend.ElementNotFoundError{Locator: locator}
	}
	return el, nil
}

func (s *session) Interact(ctx context.Context, h backend.ElementHandle, action string, args map[string]string) error {
	el, ok := h.(*rod.Element)
	if !ok {
		return fmt.Errorf("element handle does not belong to a rod session")
	}
	switch action {
	case "click", "check":
		return el.Click(proto.InputMouseButtonLeft, 1)
	case "fill":
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(args["value"])
	case "press":
		key, err := namedKey(args["key"])
		if err != nil {
			return err
		}
		return el.Type(key)
	case "hover":
		return el.Hover()
	case "select":
		return el.Select([]string{args["value"]}, true, rod.SelectorTypeText)
	}
	return fmt.Errorf("unsupported interaction %q", action)
}

func (s *session) Text(ctx context.Context, h backend.ElementHandle) (string, error) {
	el, ok := h.(*rod.Element)
	if !ok {
		return "", fmt.Errorf("element handle does not belong to a rod session")
	}
	return el.Text()
}

func (s *session) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *session) CaptureArtifact(ctx context.Context, kind backend.ArtifactKind) (string, error) {
	switch kind {
	case backend.ArtifactScreenshot:
		data, err := s.page.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			return "", err
		}
		path := filepath.Join(s.artifactDir, fmt.Sprintf("screenshot-%d.png", time.Now().UnixNano()))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", err
		}
		return path, nil
	case backend.ArtifactVideo:
		return "", fmt.Errorf("video capture is not supported by the rod backend")
	}
	return "", fmt.Errorf("unsupported artifact kind %q", kind)
}

func (s *session) Close() error {
	if err := s.page.Close(); err != nil {
		return err
	}
	return proto.TargetDisposeBrowserContext{
		BrowserContextID: s.inc.BrowserContextID,
	}.Call(s.inc)
}

// namedKey maps the small set of key names specs use onto rod input keys.
func namedKey(name string) (input.Key, error) {
	switch name {
	case "Enter":
		return input.Enter, nil
	case "Tab":
		return input.Tab, nil
	case "Escape":
		return input.Escape, nil
	case "Backspace":
		return input.Backspace, nil
	}
	if len([]rune(name)) == 1 {
		return input.Key([]rune(name)[0]), nil
	}
	return 0, fmt.Errorf("unsupported key %q", name)
}
