package build

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/toolchain"
)

// PublishResult is the publish contract's answer. A call that returns
// Published false may be retried.
type PublishResult struct {
	Published bool   `json:"published"`
	Version   string `json:"version,omitempty"`
	URL       string `json:"url,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Publisher publishes a built package to a registry.
type Publisher interface {
	Publish(ctx context.Context, pkg graph.Package) (PublishResult, error)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, pkg graph.Package) (PublishResult, error)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, pkg graph.Package) (PublishResult, error) {
	return f(ctx, pkg)
}

// CommandPublisher runs a publish command in the package directory.
type CommandPublisher struct {
	Command      string
	Runner       toolchain.Runner
	ManifestName string
}

var _ Publisher = (*CommandPublisher)(nil)

// "+ @acme/core@1.2.3" as printed by npm publish.
var publishedVersionPattern = regexp.MustCompile(`(?m)^\+\s+(?:@[^@\s/]+/)?[^@\s]+@(\S+)\s*$`)

// Publish implements Publisher. The version comes from the tool output when
// it prints one, otherwise from the manifest.
func (p *CommandPublisher) Publish(ctx context.Context, pkg graph.Package) (PublishResult, error) {
	runner := p.Runner
	if runner == nil {
		runner = toolchain.ExecRunner{}
	}
	res, err := runner.Run(ctx, pkg.Path, p.Command)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish %s: %w", pkg.Name, err)
	}
	if !res.OK() {
		return PublishResult{
			Published: false,
			Detail:    strings.Join(toolchain.Tail(res.Output, 10), "\n"),
		}, nil
	}

	version := ""
	if m := publishedVersionPattern.FindStringSubmatch(res.Output); m != nil {
		version = m[1]
	} else {
		version = manifestVersion(pkg, p.ManifestName)
	}
	return PublishResult{Published: true, Version: version}, nil
}

func manifestVersion(pkg graph.Package, name string) string {
	if name == "" {
		name = manifest.DefaultManifestName
	}
	m, err := manifest.ReadFile(filepath.Join(pkg.Path, name))
	if err != nil || m.Version == "" {
		return pkg.Version
	}
	return m.Version
}
