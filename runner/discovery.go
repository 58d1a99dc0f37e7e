package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/webspec-dev/webspec/types"
)

// Discover finds and parses every *.spec.yaml file under dir. Files are
// visited in sorted path order, which fixes the order of the final report.
// A non-empty tag keeps only specs carrying that tag; filtered-out specs do
// not appear in the run at all.
func Discover(dir string, tag string) ([]*types.Spec, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.spec.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scanning spec dir: %w", err)
	}
	nested, err := filepath.Glob(filepath.Join(dir, "*", "*.spec.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scanning spec dir: %w", err)
	}
	paths = append(paths, nested...)
	sort.Strings(paths)

	seen := make(map[string]string)
	specs := make([]*types.Spec, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading spec file: %w", err)
		}
		spec, err := types.ParseSpec(data)
		if err != nil {
			return nil, &types.ParseError{Path: path, Err: err}
		}
		if prev, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("spec ID %q defined in both %s and %s", spec.ID, prev, path)
		}
		seen[spec.ID] = path
		spec.Source = path

		if tag != "" && !spec.HasTag(tag) {
			continue
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
