package build

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Catalog lists the buildable components in build and render order.
var Catalog = []string{"operator", "operand", "must-gather", "bundle"}

// Component is one named build target with its Dockerfile location.
// The build context is always the operator source root.
type Component struct {
	Name       string
	Dockerfile string
}

var dockerfiles = map[string]string{
	"operator":    "Dockerfile",
	"operand":     "Dockerfile.kueue",
	"must-gather": filepath.Join("must-gather", "Dockerfile"),
	"bundle":      "bundle.developer.Dockerfile",
}

// Lookup returns the component definition for name.
func Lookup(name string) (Component, bool) {
	df, ok := dockerfiles[name]
	if !ok {
		return Component{}, false
	}
	return Component{Name: name, Dockerfile: df}, true
}

// Resolve validates the requested names against the catalog and returns them
// in catalog order. An empty request means the full catalog. Unknown or
// duplicate names fail before any work starts.
func Resolve(names []string) ([]Component, error) {
	if len(names) == 0 {
		names = Catalog
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := dockerfiles[name]; !ok {
			return nil, fmt.Errorf("unknown component %q (valid: %s)", name, strings.Join(Catalog, ", "))
		}
		if seen[name] {
			return nil, fmt.Errorf("component %q requested twice", name)
		}
		seen[name] = true
	}

	var out []Component
	for _, name := range Catalog {
		if seen[name] {
			out = append(out, Component{Name: name, Dockerfile: dockerfiles[name]})
		}
	}
	return out, nil
}

// BuildArgs returns the --build-arg values for this component. The bundle
// image bakes in the related-images file, which its Dockerfile expects by
// bare filename.
func (c Component) BuildArgs(imagesFile string) map[string]string {
	if c.Name != "bundle" {
		return nil
	}
	return map[string]string{"RELATED_IMAGE_FILE": filepath.Base(imagesFile)}
}
