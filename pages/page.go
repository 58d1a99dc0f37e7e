// Package pages implements the page object registry. A page object names a
// route and its stable locators, and exposes declarative actions compiled
// from YAML. Specs interact with pages by alias and action name only; raw
// selectors never appear in spec files.
package pages

import (
	"context"
	"fmt"

	"github.com/webspec-dev/webspec/backend"
	"github.com/webspec-dev/webspec/types"
)

// ActionFunc runs one named page action against a live session. The string
// result is non-empty only for actions ending in a text extraction.
type ActionFunc func(ctx context.Context, sess backend.Session, args map[string]string) (string, error)

// Page is an immutable page object. Locators map semantic aliases onto
// engine selectors; Actions are the only way specs touch the page.
type Page struct {
	Name     string
	Path     string
	locators map[string]string
	actions  map[string]ActionFunc
}

// NewPage builds a page object from its parts. Used directly by tests;
// production pages come from LoadDir.
func NewPage(name, path string, locators map[string]string, actions map[string]ActionFunc) *Page {
	if locators == nil {
		locators = map[string]string{}
	}
	if actions == nil {
		actions = map[string]ActionFunc{}
	}
	return &Page{Name: name, Path: path, locators: locators, actions: actions}
}

// Locator returns the selector behind an alias.
func (p *Page) Locator(alias string) (string, error) {
	sel, ok := p.locators[alias]
	if !ok {
		return "", &types.NotFoundError{Kind: "locator", Name: p.Name + "." + alias}
	}
	return sel, nil
}

// Resolve looks up the live element behind an alias. Resolution is lazy;
// the handle is fetched at call time, never cached across calls.
func (p *Page) Resolve(ctx context.Context, sess backend.Session, alias string) (backend.ElementHandle, error) {
	sel, err := p.Locator(alias)
	if err != nil {
		return nil, err
	}
	return sess.Resolve(ctx, sel)
}

// Actions returns the names of the page's actions.
func (p *Page) Actions() []string {
	names := make([]string, 0, len(p.actions))
	for name := range p.actions {
		names = append(names, name)
	}
	return names
}

// Perform runs the named action. Failures are wrapped in ActionFailure so
// the spec result names the page and action, not the selector internals.
func (p *Page) Perform(ctx context.Context, sess backend.Session, action string, args map[string]string) (string, error) {
	fn, ok := p.actions[action]
	if !ok {
		return "", &types.ActionFailure{
			Page:   p.Name,
			Action: action,
			Cause:  fmt.Errorf("page %q has no action %q", p.Name, action),
		}
	}
	out, err := fn(ctx, sess, args)
	if err != nil {
		return "", &types.ActionFailure{Page: p.Name, Action: action, Cause: err}
	}
	return out, nil
}
