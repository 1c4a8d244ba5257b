package quality

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/toolchain"
	"github.com/fyrsmithlabs/pkgforge/pkg/secrets"
)

var skipSourceDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
}

// StructureProbe checks that required files and directories exist.
type StructureProbe struct {
	Required []string
}

// Check implements Probe.
func (StructureProbe) Check() Check { return CheckStructure }

// Run implements Probe.
func (p StructureProbe) Run(_ context.Context, pkg graph.Package) (Result, error) {
	if _, err := os.Stat(pkg.Path); err != nil {
		return Result{}, fmt.Errorf("package directory: %w", err)
	}
	var missing []string
	for _, rel := range p.Required {
		if _, err := os.Stat(filepath.Join(pkg.Path, rel)); err != nil {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		r := Fail(CheckStructure)
		r.Missing = missing
		return r, nil
	}
	return Pass(CheckStructure), nil
}

// CommandProbe runs a toolchain command; exit zero passes. Diagnostics in the
// output are attributed to files.
type CommandProbe struct {
	For     Check
	Command string
	Runner  toolchain.Runner
	// MinCoverage, when positive, also requires a coverage summary at or above
	// this percentage in the output.
	MinCoverage float64
}

// Check implements Probe.
func (p CommandProbe) Check() Check { return p.For }

// Run implements Probe.
func (p CommandProbe) Run(ctx context.Context, pkg graph.Package) (Result, error) {
	if strings.TrimSpace(p.Command) == "" {
		return Pass(p.For, "no command configured"), nil
	}
	runner := p.Runner
	if runner == nil {
		runner = toolchain.ExecRunner{}
	}
	out, err := runner.Run(ctx, pkg.Path, p.Command)
	if err != nil {
		return Result{}, err
	}
	if !out.OK() {
		r := Fail(p.For, toolchain.Tail(out.Output, maxFindingLines)...)
		r.Locations = toolchain.ParseLocations(pkg.Path, out.Output)
		return r, nil
	}
	if p.MinCoverage > 0 {
		cov, ok := ParseCoverage(out.Output)
		if !ok {
			return Fail(p.For, "no coverage summary found in test output"), nil
		}
		if cov < p.MinCoverage {
			return Fail(p.For, fmt.Sprintf("coverage %.1f%% below required %.1f%%", cov, p.MinCoverage)), nil
		}
		return Pass(p.For, fmt.Sprintf("coverage %.1f%%", cov)), nil
	}
	return Pass(p.For), nil
}

var coverageLine = regexp.MustCompile(`(?im)^\s*(?:all files|total)\b[^\d\n]*(\d+(?:\.\d+)?)`)

// ParseCoverage extracts the statement coverage percentage from an istanbul
// style "All files | 87.5 | ..." summary or a "total: 87.5%" line.
func ParseCoverage(output string) (float64, bool) {
	m := coverageLine.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// LicenseProbe checks that a LICENSE file exists and that every source file
// carries Marker within its first HeadLines lines.
type LicenseProbe struct {
	Marker     string
	Extensions []string
	HeadLines  int
}

// Check implements Probe.
func (LicenseProbe) Check() Check { return CheckLicense }

// Run implements Probe.
func (p LicenseProbe) Run(ctx context.Context, pkg graph.Package) (Result, error) {
	head := p.HeadLines
	if head <= 0 {
		head = 5
	}
	exts := map[string]bool{}
	for _, e := range p.Extensions {
		exts[e] = true
	}

	r := Fail(CheckLicense)
	if !hasLicenseFile(pkg.Path) {
		r.Missing = append(r.Missing, "LICENSE")
	}

	err := walkSources(ctx, pkg.Path, func(path, rel string) error {
		if !exts[filepath.Ext(path)] {
			return nil
		}
		ok, err := headContains(path, p.Marker, head)
		if err != nil {
			return err
		}
		if !ok {
			r.Locations = append(r.Locations, toolchain.Location{File: rel, Line: 1, Message: "missing license header " + strconv.Quote(p.Marker)})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if len(r.Missing) == 0 && len(r.Locations) == 0 {
		return Pass(CheckLicense), nil
	}
	return r, nil
}

func hasLicenseFile(dir string) bool {
	for _, name := range []string{"LICENSE", "LICENSE.md", "LICENSE.txt", "LICENCE"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func headContains(path, marker string, n int) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for i := 0; i < n && sc.Scan(); i++ {
		if strings.Contains(sc.Text(), marker) {
			return true, nil
		}
	}
	return false, sc.Err()
}

// DocumentationProbe checks the package README: it must exist, have a title,
// mention the package name and include a usage or installation section.
type DocumentationProbe struct{}

// Check implements Probe.
func (DocumentationProbe) Check() Check { return CheckDocumentation }

var sectionHeading = regexp.MustCompile(`(?im)^#{2,3}\s+(usage|install|installation|getting started|api)\b`)

// Run implements Probe.
func (DocumentationProbe) Run(_ context.Context, pkg graph.Package) (Result, error) {
	data, err := os.ReadFile(filepath.Join(pkg.Path, "README.md"))
	if os.IsNotExist(err) {
		r := Fail(CheckDocumentation)
		r.Missing = []string{"README.md"}
		return r, nil
	}
	if err != nil {
		return Result{}, err
	}
	text := string(data)

	var missing []string
	if !strings.HasPrefix(strings.TrimSpace(text), "# ") {
		missing = append(missing, "README.md: top-level title")
	}
	if !strings.Contains(text, pkg.Name) {
		missing = append(missing, "README.md: package name "+pkg.Name)
	}
	if !sectionHeading.MatchString(text) {
		missing = append(missing, "README.md: usage or installation section")
	}
	if len(missing) > 0 {
		r := Fail(CheckDocumentation)
		r.Missing = missing
		return r, nil
	}
	return Pass(CheckDocumentation), nil
}

// SecurityProbe scans package sources for committed secrets.
type SecurityProbe struct {
	Scanner    *secrets.Scanner
	AllowPaths []string
}

// Check implements Probe.
func (SecurityProbe) Check() Check { return CheckSecurity }

// Run implements Probe.
func (p SecurityProbe) Run(ctx context.Context, pkg graph.Package) (Result, error) {
	if p.Scanner == nil {
		return Result{}, fmt.Errorf("secret scanner not configured")
	}
	allow, err := secrets.LoadAllowlist(pkg.Path, p.AllowPaths...)
	if err != nil {
		return Result{}, err
	}
	findings, err := p.Scanner.ScanDir(ctx, pkg.Path, allow)
	if err != nil {
		return Result{}, err
	}
	if len(findings) == 0 {
		return Pass(CheckSecurity), nil
	}
	r := Fail(CheckSecurity, fmt.Sprintf("%d potential secrets found", len(findings)))
	for _, f := range findings {
		r.Locations = append(r.Locations, toolchain.Location{File: f.File, Line: f.Line, Message: "possible secret: " + f.RuleDesc})
	}
	return r, nil
}

func walkSources(ctx context.Context, root string, fn func(path, rel string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (skipSourceDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		return fn(path, filepath.ToSlash(rel))
	})
}

// NewProbes builds the standard probe set from configuration.
func NewProbes(cfg config.QualityConfig, runner toolchain.Runner, scanner *secrets.Scanner) []Probe {
	return []Probe{
		StructureProbe{Required: cfg.RequiredFiles},
		CommandProbe{For: CheckTypecheck, Command: cfg.TypecheckCommand, Runner: runner},
		CommandProbe{For: CheckLint, Command: cfg.LintCommand, Runner: runner},
		CommandProbe{For: CheckTests, Command: cfg.TestCommand, Runner: runner, MinCoverage: cfg.MinCoverage},
		SecurityProbe{Scanner: scanner, AllowPaths: cfg.SecretAllowlist},
		DocumentationProbe{},
		LicenseProbe{Marker: cfg.LicenseHeader, Extensions: cfg.LicenseExtensions},
		CommandProbe{For: CheckIntegration, Command: cfg.IntegrationCommand, Runner: runner},
	}
}
