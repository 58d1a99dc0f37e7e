package pages

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/webspec-dev/webspec/types"
)

// Config contains registry configuration.
type Config struct {
	// Dir holds *.page.yaml definitions. Empty means no pages are loaded.
	Dir string
	// BaseURL is prepended to page paths by the implicit "open" action.
	BaseURL string
	Log     *zap.SugaredLogger
}

// Registry maps page names to page objects. Populated at startup, read-only
// during the run.
type Registry struct {
	config Config
	mu     sync.RWMutex
	pages  map[string]*Page
}

// NewRegistry creates a registry and loads every page definition under the
// configured directory.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	r := &Registry{
		config: cfg,
		pages:  make(map[string]*Page),
	}
	if cfg.Dir != "" {
		if err := r.loadDir(cfg.Dir); err != nil {
			return nil, err
		}
	}
	cfg.Log.Debugw("page registry loaded", "dir", cfg.Dir, "pages", len(r.pages))
	return r, nil
}

// Register adds a page object. Duplicate names are rejected so a spec can
// never silently bind to the wrong page.
func (r *Registry) Register(p *Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Name == "" {
		return fmt.Errorf("page object must have a name")
	}
	if _, exists := r.pages[p.Name]; exists {
		return fmt.Errorf("page %q is already registered", p.Name)
	}
	r.pages[p.Name] = p
	return nil
}

// Get returns the page object by name.
func (r *Registry) Get(name string) (*Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pages[name]
	if !ok {
		return nil, &types.UnknownPageError{Page: name}
	}
	return p, nil
}

// Names returns all registered page names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pages))
	for name := range r.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
