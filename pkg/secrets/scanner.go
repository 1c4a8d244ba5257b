package secrets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// maxScanFileSize skips large files such as bundles and fixtures.
const maxScanFileSize = 1024 * 1024

var skipScanDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
}

// Finding is a detected secret.
type Finding struct {
	File     string // relative to the scanned root; empty for string scans
	RuleID   string
	RuleDesc string
	Line     int
	StartCol int
	EndCol   int
	Match    string
}

// Location renders file:line for reports. The secret itself is never
// included.
func (f Finding) Location() string {
	if f.File == "" {
		return fmt.Sprintf("line %d (%s)", f.Line, f.RuleID)
	}
	return fmt.Sprintf("%s:%d (%s)", f.File, f.Line, f.RuleID)
}

// Scanner wraps a Gitleaks detector loaded with the default rule set.
// Building the detector is expensive; reuse a Scanner.
type Scanner struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewScanner builds a scanner with the default Gitleaks configuration.
func NewScanner() (*Scanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("create gitleaks detector: %w", err)
	}
	return &Scanner{detector: d}, nil
}

// ScanString scans content. Findings matching allowlist content patterns are
// dropped.
func (s *Scanner) ScanString(content string, allowlist *Allowlist) ([]Finding, error) {
	var contentRes []*regexp.Regexp
	if allowlist != nil {
		var err error
		if contentRes, err = compileAll(allowlist.Regexes); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	raw := s.detector.DetectString(content)
	s.mu.Unlock()

	out := make([]Finding, 0, len(raw))
	for _, f := range raw {
		if matchesAny(contentRes, f.Secret) || matchesAny(contentRes, f.Match) {
			continue
		}
		out = append(out, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine,
			StartCol: f.StartColumn,
			EndCol:   f.EndColumn,
			Match:    f.Secret,
		})
	}
	return out, nil
}

// ScanDir scans every regular file under root, skipping dependency and build
// output directories and allowlisted paths. Findings are sorted by file and
// line.
func (s *Scanner) ScanDir(ctx context.Context, root string, allowlist *Allowlist) ([]Finding, error) {
	var pathRes []*regexp.Regexp
	if allowlist != nil {
		var err error
		if pathRes, err = compileAll(allowlist.Paths); err != nil {
			return nil, err
		}
	}

	var findings []Finding
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && skipScanDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if matchesAny(pathRes, rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxScanFileSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if isBinary(data) {
			return nil
		}
		found, err := s.ScanString(string(data), allowlist)
		if err != nil {
			return err
		}
		for _, f := range found {
			f.File = rel
			findings = append(findings, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
	return findings, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	return strings.IndexByte(string(data[:n]), 0) >= 0
}
