// Package fixtures loads and caches static test data for a run. Fixtures
// are named YAML mappings, loaded once at startup and shared read-only
// across all workers.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/webspec-dev/webspec/types"
)

// Fixture is a named mapping from string key to arbitrary structured value.
type Fixture map[string]any

// ConflictError indicates the same fixture name is defined in two files.
// Conflicts fail the run start instead of silently letting load order win.
type ConflictError struct {
	Name  string
	Files []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("fixture %q defined in multiple files: %s", e.Name, strings.Join(e.Files, ", "))
}

// Config contains store configuration.
type Config struct {
	Dir string
	Log *zap.SugaredLogger
}

// Store holds the loaded fixtures. Read-only after NewStore returns; safe
// for concurrent reads.
type Store struct {
	config  Config
	mu      sync.RWMutex
	cache   map[string]Fixture
	sources map[string]string // fixture name -> file it came from
}

// NewStore creates a store and eagerly loads every fixture file under the
// configured directory. An empty directory path yields an empty store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}

	s := &Store{
		config:  cfg,
		cache:   make(map[string]Fixture),
		sources: make(map[string]string),
	}
	if cfg.Dir == "" {
		return s, nil
	}
	if err := s.load(cfg.Dir); err != nil {
		return nil, err
	}
	cfg.Log.Debugw("fixture store loaded", "dir", cfg.Dir, "fixtures", len(s.cache))
	return s, nil
}

// load reads every *.yaml/*.yml file exactly once. Each file is a mapping
// from fixture name to fixture body.
func (s *Store) load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("scanning fixture dir: %w", err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading fixture file: %w", err)
		}
		var doc map[string]Fixture
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return &types.ParseError{Path: path, Err: err}
		}
		for name, fixture := range doc {
			if prev, exists := s.sources[name]; exists {
				return &ConflictError{Name: name, Files: []string{prev, path}}
			}
			s.cache[name] = fixture
			s.sources[name] = path
		}
	}
	return nil
}

// Get returns the cached fixture by name. The same value object is handed
// out on every call; callers must treat it as read-only.
func (s *Store) Get(name string) (Fixture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fixture, ok := s.cache[name]
	if !ok {
		return nil, &types.NotFoundError{Kind: "fixture", Name: name}
	}
	return fixture, nil
}

// Names returns all loaded fixture names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.cache))
	for name := range s.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RefPrefix marks step-argument values that reference fixture data, in the
// form "fixture:name.key" with dot-separated nesting below the key.
const RefPrefix = "fixture:"

// IsRef reports whether a step argument value is a fixture reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Resolve dereferences "fixture:name.key[.subkey...]" into a string value.
func (s *Store) Resolve(ref string) (string, error) {
	if !IsRef(ref) {
		return ref, nil
	}
	path := strings.TrimPrefix(ref, RefPrefix)
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("fixture reference %q must name a fixture and a key", ref)
	}

	fixture, err := s.Get(parts[0])
	if err != nil {
		return "", err
	}

	var current any = map[string]any(fixture)
	for _, part := range parts[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return "", fmt.Errorf("fixture reference %q: %q is not a mapping", ref, part)
		}
		current, ok = m[part]
		if !ok {
			return "", &types.NotFoundError{Kind: "fixture key", Name: path}
		}
	}

	switch v := current.(type) {
	case string:
		return v, nil
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v), nil
	}
	return "", fmt.Errorf("fixture reference %q resolves to a non-scalar value", ref)
}
