// Package backend defines the browser-automation collaborator interface the
// harness drives. webspec never implements browser control itself; engines
// wrap real automation libraries (Playwright, Rod/CDP) behind this surface.
package backend

import (
	"context"
	"fmt"
	"time"
)

// Browser identifies the browser product an engine should launch.
type Browser string

const (
	BrowserChromium Browser = "chromium"
	BrowserFirefox  Browser = "firefox"
	BrowserWebKit   Browser = "webkit"
	BrowserEdge     Browser = "edge"
)

// ParseBrowser validates a browser name from configuration.
func ParseBrowser(s string) (Browser, error) {
	switch Browser(s) {
	case BrowserChromium, BrowserFirefox, BrowserWebKit, BrowserEdge:
		return Browser(s), nil
	case "chrome":
		// Common alias.
		return BrowserChromium, nil
	}
	return "", fmt.Errorf("unknown browser %q (valid: chromium, firefox, webkit, edge)", s)
}

// Engine identifies the automation library backing the Backend.
type Engine string

const (
	EnginePlaywright Engine = "playwright"
	EngineRod        Engine = "rod"
)

// ParseEngine validates an engine name from configuration.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EnginePlaywright, EngineRod:
		return Engine(s), nil
	}
	return "", fmt.Errorf("unknown backend engine %q (valid: playwright, rod)", s)
}

// ArtifactKind names the artifact types a session can capture.
type ArtifactKind string

const (
	ArtifactScreenshot ArtifactKind = "screenshot"
	ArtifactVideo      ArtifactKind = "video"
)

// Options configures an engine at construction time.
type Options struct {
	Browser        Browser
	Headless       bool
	SlowMo         time.Duration
	DefaultTimeout time.Duration
}

// ElementHandle is an opaque reference to a live element. Handles are owned
// by the session that resolved them and must never cross sessions.
type ElementHandle interface{}

// ElementNotFoundError indicates a locator matched nothing. Assertion
// probes treat it as transient: the element may attach later.
type ElementNotFoundError struct {
	Locator string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matches locator %q", e.Locator)
}

// Session is one isolated browser context. A session is owned exclusively
// by one worker; live handles resolved through it are scoped to it.
type Session interface {
	// Navigate loads the given absolute URL.
	Navigate(ctx context.Context, url string) error
	// Resolve looks up a live element by locator. Returns
	// ElementNotFoundError when nothing matches.
	Resolve(ctx context.Context, locator string) (ElementHandle, error)
	// Interact performs a named action ("click", "fill", "press", "hover",
	// "check", "select") on a previously resolved handle.
	Interact(ctx context.Context, el ElementHandle, action string, args map[string]string) error
	// Text extracts the text content of a resolved handle.
	Text(ctx context.Context, el ElementHandle) (string, error)
	// CurrentURL reports the page's current location.
	CurrentURL() string
	// CaptureArtifact writes a screenshot or video into the session's
	// artifact directory and returns its path. The engine owns the file;
	// the harness only records the reference.
	CaptureArtifact(ctx context.Context, kind ArtifactKind) (string, error)
	// Close tears the context down. The session must not be used after.
	Close() error
}

// Backend boots and owns the automation engine. One Backend serves the
// whole run; sessions are created per spec so no state leaks between specs.
type Backend interface {
	// Name reports the engine name for logs and reports.
	Name() string
	// Start boots the engine and launches the browser.
	Start(ctx context.Context) error
	// NewSession creates a fresh, isolated browser context whose artifacts
	// are written under artifactDir.
	NewSession(ctx context.Context, artifactDir string) (Session, error)
	// Stop shuts the engine down and releases the browser.
	Stop() error
}
