package generation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
	"github.com/fyrsmithlabs/pkgforge/internal/sanitize"
	"github.com/fyrsmithlabs/pkgforge/internal/toolchain"
	"github.com/fyrsmithlabs/pkgforge/pkg/secrets"
)

const (
	maxSummaryFiles    = 200
	maxSummaryManifest = 8 * 1024
	maxErrorLines      = 20
)

var skipSummaryDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
}

// ChangeRecorder records applied file changes, for example as a commit.
type ChangeRecorder interface {
	Record(ctx context.Context, message string, paths []string) error
}

// WorkspaceTools executes commands against a package directory on disk.
type WorkspaceTools struct {
	Package      graph.Package
	Quality      config.QualityConfig
	ManifestName string
	Runner       toolchain.Runner
	// Scanner, when set, redacts secrets from the summary sent to the agent.
	Scanner *secrets.Scanner
	// Recorder, when set, records every successful write.
	Recorder ChangeRecorder
	Logger   *logging.Logger
}

var _ Tools = (*WorkspaceTools)(nil)

func (w *WorkspaceTools) dir() string { return w.Package.Path }

func (w *WorkspaceTools) manifestName() string {
	if w.ManifestName != "" {
		return w.ManifestName
	}
	return manifest.DefaultManifestName
}

func (w *WorkspaceTools) logger() *logging.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return logging.Nop()
}

func (w *WorkspaceTools) runner() toolchain.Runner {
	if w.Runner != nil {
		return w.Runner
	}
	return toolchain.ExecRunner{}
}

// ApplyFileChanges writes each file, unwrapping fenced structured data. A
// structured file that still does not parse is written as given and
// reported against its path.
func (w *WorkspaceTools) ApplyFileChanges(ctx context.Context, files []FileChange) Outcome {
	fileErrors := map[string]string{}
	var written, unwrapped []string

	for _, f := range files {
		rel := filepath.ToSlash(filepath.Clean(filepath.FromSlash(strings.TrimSpace(f.Path))))
		full, err := sanitize.RelativePath(w.dir(), f.Path)
		if err != nil {
			fileErrors[rel] = err.Error()
			continue
		}
		content, changed := sanitize.Structured(rel, f.Content)
		if changed {
			unwrapped = append(unwrapped, rel)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			fileErrors[rel] = fmt.Sprintf("create directory: %v", err)
			continue
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			fileErrors[rel] = fmt.Sprintf("write: %v", err)
			continue
		}
		if format, ok := sanitize.FormatFor(rel); ok {
			if err := sanitize.Validate(format, content); err != nil {
				fileErrors[rel] = fmt.Sprintf("%s is not valid %s: %v", rel, strings.ToUpper(string(format)), err)
				continue
			}
		}
		written = append(written, rel)
	}

	if len(written) > 0 && w.Recorder != nil {
		msg := fmt.Sprintf("%s: apply %d file change(s)", w.Package.Name, len(written))
		if err := w.Recorder.Record(ctx, msg, written); err != nil {
			w.logger().Error(ctx, "failed to record file changes", zap.Error(err))
		}
	}

	detail := fmt.Sprintf("wrote %d file(s)", len(written))
	if len(unwrapped) > 0 {
		detail += fmt.Sprintf("; removed fences from %s", strings.Join(unwrapped, ", "))
	}
	if len(fileErrors) > 0 {
		out := Failed(fmt.Sprintf("%d of %d file(s) failed", len(fileErrors), len(files)), fileErrors)
		out.Detail = detail
		out.SucceededFiles = written
		return out
	}
	return Succeeded(detail, written...)
}

// ValidateManifest checks that the manifest parses, names this package and
// carries a version.
func (w *WorkspaceTools) ValidateManifest(ctx context.Context) Outcome {
	name := w.manifestName()
	m, err := w.readManifest()
	if err != nil {
		return Failed("manifest invalid", map[string]string{name: err.Error()})
	}
	var problems []string
	if m.Name != w.Package.Name {
		problems = append(problems, fmt.Sprintf("name is %q, expected %q", m.Name, w.Package.Name))
	}
	if strings.TrimSpace(m.Version) == "" {
		problems = append(problems, "version is missing")
	}
	if len(problems) > 0 {
		return Failed("manifest invalid", map[string]string{name: strings.Join(problems, "; ")})
	}
	return Succeeded(fmt.Sprintf("%s %s", m.Name, m.Version), name)
}

func (w *WorkspaceTools) readManifest() (*manifest.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(w.dir(), w.manifestName()))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s does not exist", w.manifestName())
	}
	if err != nil {
		return nil, err
	}
	return manifest.Parse(data)
}

// CheckLicenseHeaders runs the license check and attributes findings to files.
func (w *WorkspaceTools) CheckLicenseHeaders(ctx context.Context) Outcome {
	probe := quality.LicenseProbe{Marker: w.Quality.LicenseHeader, Extensions: w.Quality.LicenseExtensions}
	res, err := probe.Run(ctx, w.Package)
	if err != nil {
		return Failed("license check could not run: "+err.Error(), nil)
	}
	if res.Passed {
		return Succeeded("license headers present")
	}
	fileErrors := toolchain.GroupByFile(res.Locations)
	for _, m := range res.Missing {
		fileErrors[m] = m + " is missing"
	}
	return Failed(fmt.Sprintf("%d file(s) without license headers", len(fileErrors)), fileErrors)
}

// RunLint runs the configured lint command.
func (w *WorkspaceTools) RunLint(ctx context.Context) Outcome {
	return w.runCheck(ctx, "lint", w.Quality.LintCommand)
}

// RunTests runs the configured test command.
func (w *WorkspaceTools) RunTests(ctx context.Context) Outcome {
	return w.runCheck(ctx, "tests", w.Quality.TestCommand)
}

func (w *WorkspaceTools) runCheck(ctx context.Context, what, command string) Outcome {
	if strings.TrimSpace(command) == "" {
		return Succeeded(what + ": no command configured")
	}
	res, err := w.runner().Run(ctx, w.dir(), command)
	if err != nil {
		return Failed(fmt.Sprintf("%s could not run: %v", what, err), nil)
	}
	if res.OK() {
		return Succeeded(what + " passed")
	}
	locs := toolchain.ParseLocations(w.dir(), res.Output)
	out := Failed(fmt.Sprintf("%s failed (exit %d):\n%s", what, res.ExitCode,
		strings.Join(toolchain.Tail(res.Output, maxErrorLines), "\n")), toolchain.GroupByFile(locs))
	return out
}

// Publish is the agent's completion signal. It checks that the package is
// ready to publish: a valid manifest, a README and a clean type check. The
// registry publish itself happens after the quality gate.
func (w *WorkspaceTools) Publish(ctx context.Context) Outcome {
	if out := w.ValidateManifest(ctx); !out.Success {
		return out
	}
	if _, err := os.Stat(filepath.Join(w.dir(), "README.md")); err != nil {
		return Failed("not ready to publish", map[string]string{"README.md": "README.md is missing"})
	}
	if out := w.runCheck(ctx, "typecheck", w.Quality.TypecheckCommand); !out.Success {
		out.Error = "not ready to publish: " + out.Error
		return out
	}
	out := Succeeded("ready to publish")
	out.Completed = true
	return out
}

// Summary lists the package files and includes the manifest. Secrets are
// redacted when a scanner is configured.
func (w *WorkspaceTools) Summary(ctx context.Context) (string, error) {
	var files []string
	truncated := false
	err := filepath.WalkDir(w.dir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.dir() && (skipSummaryDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if len(files) == maxSummaryFiles {
			truncated = true
			return filepath.SkipAll
		}
		rel, _ := filepath.Rel(w.dir(), path)
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("list package files: %w", err)
	}
	sort.Strings(files)

	var b strings.Builder
	fmt.Fprintf(&b, "Package %s at %s\n\nFiles:\n", w.Package.Name, w.dir())
	if len(files) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, f := range files {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	if truncated {
		fmt.Fprintf(&b, "  ... (listing truncated at %d files)\n", maxSummaryFiles)
	}
	if data, err := os.ReadFile(filepath.Join(w.dir(), w.manifestName())); err == nil {
		if len(data) > maxSummaryManifest {
			data = data[:maxSummaryManifest]
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", w.manifestName(), data)
	}

	summary := b.String()
	if w.Scanner != nil {
		redacted, findings, err := w.Scanner.Redact(summary, nil)
		if err != nil {
			return "", fmt.Errorf("redact summary: %w", err)
		}
		if len(findings) > 0 {
			w.logger().Warn(ctx, "redacted secrets from agent context", zap.Int("findings", len(findings)))
		}
		summary = redacted
	}
	return summary, nil
}
