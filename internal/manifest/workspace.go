package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	"dist":         {},
	"build":        {},
	"coverage":     {},
	".turbo":       {},
	".cache":       {},
}

// Entry is a discovered package manifest.
type Entry struct {
	Dir      string // absolute package directory
	Manifest *Manifest
}

// Workspace is the set of packages found under a root directory. It implements
// graph.Lookup over workspace-local packages.
type Workspace struct {
	Root    string
	entries map[string]Entry
	names   []string // sorted
}

// Discover walks root for manifest files named manifestName. Directories
// matched by the root .gitignore are skipped, as are vendored and build output
// directories.
func Discover(root, manifestName string) (*Workspace, error) {
	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", absRoot)
	}

	gi := loadGitignore(absRoot)
	ws := &Workspace{Root: absRoot, entries: make(map[string]Entry)}

	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if _, skip := skipDirs[d.Name()]; skip || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != manifestName || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		m, err := ReadFile(path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(path)
		if prev, dup := ws.entries[m.Name]; dup {
			return fmt.Errorf("package %s declared twice: %s and %s", m.Name, prev.Dir, dir)
		}
		ws.entries[m.Name] = Entry{Dir: dir, Manifest: m}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for name := range ws.entries {
		ws.names = append(ws.names, name)
	}
	sort.Strings(ws.names)
	return ws, nil
}

// Names returns the workspace package names, sorted.
func (w *Workspace) Names() []string {
	return append([]string(nil), w.names...)
}

// Entry returns the discovered manifest for name.
func (w *Workspace) Entry(name string) (Entry, bool) {
	e, ok := w.entries[name]
	return e, ok
}

// Contains reports whether name is a workspace package.
func (w *Workspace) Contains(name string) bool {
	_, ok := w.entries[name]
	return ok
}

// Buildable returns workspace package names that are not marked skip.
func (w *Workspace) Buildable() []string {
	out := make([]string, 0, len(w.names))
	for _, name := range w.names {
		if !w.entries[name].Manifest.Build.Skip {
			out = append(out, name)
		}
	}
	return out
}

// Lookup implements graph.Lookup. Dependencies outside the workspace are not
// edges.
func (w *Workspace) Lookup(name string) (graph.Package, error) {
	e, ok := w.entries[name]
	if !ok {
		return graph.Package{}, fmt.Errorf("%s: %w", name, graph.ErrPackageNotFound)
	}
	return e.Manifest.Package(e.Dir, w.Contains), nil
}

// Plans returns the plan text declared in manifests, keyed by package name.
func (w *Workspace) Plans() map[string]string {
	plans := make(map[string]string)
	for name, e := range w.entries {
		if p := strings.TrimSpace(e.Manifest.Build.Plan); p != "" {
			plans[name] = p
		}
	}
	return plans
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
