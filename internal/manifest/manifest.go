// Package manifest discovers packages in a workspace and serves their declared
// metadata to the dependency resolver.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

// DefaultManifestName is the manifest file read from each package directory.
const DefaultManifestName = "package.json"

const maxManifestSize = 1024 * 1024 // 1MB

// Manifest is the subset of a package manifest the orchestrator understands.
type Manifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Private          bool              `json:"private,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
	Build            BuildSection      `json:"pkgforge,omitempty"`
}

// BuildSection holds orchestrator-specific manifest settings.
type BuildSection struct {
	Category string `json:"category,omitempty"`
	Plan     string `json:"plan,omitempty"`
	Skip     bool   `json:"skip,omitempty"`
}

// Parse decodes manifest bytes and validates the package name.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	if err := ValidateName(m.Name); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadFile reads and parses the manifest at path.
func ReadFile(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxManifestSize {
		return nil, fmt.Errorf("manifest %s too large: %d bytes", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ValidateName checks a (possibly scoped) package name such as "@acme/core".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("package name is required")
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("package name %q has surrounding whitespace", name)
	}
	if strings.HasPrefix(name, "@") {
		scope, rest, ok := strings.Cut(name[1:], "/")
		if !ok || scope == "" || rest == "" || strings.Contains(rest, "/") {
			return fmt.Errorf("scoped package name %q must look like @scope/name", name)
		}
		return nil
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("unscoped package name %q must not contain '/'", name)
	}
	return nil
}

// DeclaredDependencies returns runtime, dev and peer dependency names, sorted
// and de-duplicated.
func (m *Manifest) DeclaredDependencies() []string {
	seen := map[string]bool{}
	for _, set := range []map[string]string{m.Dependencies, m.DevDependencies, m.PeerDependencies} {
		for name := range set {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Package converts the manifest into a graph package located at dir. Only
// dependencies accepted by internal are kept as graph edges; everything else is
// an external registry dependency the orchestrator does not build.
func (m *Manifest) Package(dir string, internal func(string) bool) graph.Package {
	var deps []string
	for _, d := range m.DeclaredDependencies() {
		if internal == nil || internal(d) {
			deps = append(deps, d)
		}
	}
	return graph.Package{
		Name:         m.Name,
		Version:      m.Version,
		Dependencies: deps,
		Category:     graph.ParseCategory(m.Build.Category),
		Path:         dir,
	}
}
