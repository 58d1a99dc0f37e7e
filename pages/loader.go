package pages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/webspec-dev/webspec/backend"
	"github.com/webspec-dev/webspec/types"
)

// pageDoc is the on-disk shape of a *.page.yaml file.
type pageDoc struct {
	Name     string             `yaml:"name"`
	Path     string             `yaml:"path"`
	Locators map[string]string  `yaml:"locators"`
	Actions  map[string][]opDoc `yaml:"actions"`
}

// opDoc is one step of a declarative page action. Exactly one of Value and
// From may be set; From pulls the value out of the caller's arguments.
type opDoc struct {
	Element string `yaml:"element"`
	Do      string `yaml:"do"`
	Value   string `yaml:"value"`
	From    string `yaml:"from"`
}

// loadDir parses every *.page.yaml file under dir and registers the
// compiled page objects.
func (r *Registry) loadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.page.yaml"))
	if err != nil {
		return fmt.Errorf("scanning page dir: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		page, err := loadPage(path, r.config.BaseURL)
		if err != nil {
			return err
		}
		if err := r.Register(page); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func loadPage(path, baseURL string) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading page file: %w", err)
	}
	var doc pageDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &types.ParseError{Path: path, Err: err}
	}
	if doc.Name == "" {
		return nil, &types.ParseError{Path: path, Err: fmt.Errorf("page has no name")}
	}
	if !strings.HasPrefix(doc.Path, "/") {
		return nil, &types.ParseError{Path: path, Err: fmt.Errorf("page path %q must be absolute", doc.Path)}
	}

	pageURL := strings.TrimRight(baseURL, "/") + doc.Path
	actions := make(map[string]ActionFunc, len(doc.Actions)+1)
	for name, ops := range doc.Actions {
		fn, err := compileAction(doc, name, ops, pageURL)
		if err != nil {
			return nil, &types.ParseError{Path: path, Err: err}
		}
		actions[name] = fn
	}
	// Every page gets an "open" action unless the file defines its own.
	if _, defined := actions["open"]; !defined {
		actions["open"] = compileOpen(pageURL)
	}
	return NewPage(doc.Name, doc.Path, doc.Locators, actions), nil
}

// compileAction turns a YAML op list into a closure. All structural
// validation happens here, at load time, so a malformed action fails the
// run start instead of a spec mid-flight.
func compileAction(doc pageDoc, name string, ops []opDoc, pageURL string) (ActionFunc, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("action %q has no ops", name)
	}
	for i, op := range ops {
		if err := validateOp(doc, name, i, op); err != nil {
			return nil, err
		}
	}
	locators := doc.Locators

	return func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
		var out string
		for _, op := range ops {
			if op.Do == "open" {
				if err := sess.Navigate(ctx, pageURL); err != nil {
					return "", err
				}
				continue
			}
			el, err := sess.Resolve(ctx, locators[op.Element])
			if err != nil {
				return "", err
			}
			if op.Do == "text" {
				out, err = sess.Text(ctx, el)
				if err != nil {
					return "", err
				}
				continue
			}
			value := op.Value
			if op.From != "" {
				var ok bool
				value, ok = args[op.From]
				if !ok {
					return "", fmt.Errorf("action argument %q was not provided", op.From)
				}
			}
			opArgs := map[string]string{"value": value}
			if op.Do == "press" {
				opArgs = map[string]string{"key": value}
			}
			if err := sess.Interact(ctx, el, op.Do, opArgs); err != nil {
				return "", err
			}
		}
		return out, nil
	}, nil
}

func validateOp(doc pageDoc, action string, i int, op opDoc) error {
	switch op.Do {
	case "open":
		if op.Element != "" {
			return fmt.Errorf("action %q op %d: open takes no element", action, i)
		}
		return nil
	case "click", "hover", "check", "text":
	case "fill", "press", "select":
		if op.Value == "" && op.From == "" {
			return fmt.Errorf("action %q op %d: %s needs value or from", action, i, op.Do)
		}
	default:
		return fmt.Errorf("action %q op %d: unknown op %q", action, i, op.Do)
	}
	if op.Value != "" && op.From != "" {
		return fmt.Errorf("action %q op %d: value and from are mutually exclusive", action, i)
	}
	if op.Element == "" {
		return fmt.Errorf("action %q op %d: missing element", action, i)
	}
	if _, ok := doc.Locators[op.Element]; !ok {
		return fmt.Errorf("action %q op %d: unknown locator alias %q", action, i, op.Element)
	}
	return nil
}

func compileOpen(pageURL string) ActionFunc {
	return func(ctx context.Context, sess backend.Session, args map[string]string) (string, error) {
		return "", sess.Navigate(ctx, pageURL)
	}
}
