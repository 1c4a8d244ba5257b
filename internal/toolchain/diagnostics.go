package toolchain

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Location is a diagnostic position in a source file.
type Location struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

var (
	// src/a.ts:12:5 - error TS2322: ...   |   src/a.ts:12:5: message
	colonStyle = regexp.MustCompile(`^\s*([\w./@-]+\.[A-Za-z0-9]+):(\d+)(?::\d+)?\s*[-:]?\s*(.*)$`)
	// src/a.ts(12,5): error TS2322: ...
	parenStyle = regexp.MustCompile(`^\s*([\w./@-]+\.[A-Za-z0-9]+)\((\d+),\d+\):\s*(.*)$`)
	// eslint stylish: a file header line followed by indented "12:5  error  msg" lines
	stylishRow = regexp.MustCompile(`^\s+(\d+):\d+\s+(?:error|warning)\s+(.*)$`)
)

// ParseLocations extracts file-attributed diagnostics from tool output. File
// paths are made relative to dir when they are absolute and inside it.
func ParseLocations(dir, output string) []Location {
	var locs []Location
	current := ""
	for _, line := range strings.Split(output, "\n") {
		if m := parenStyle.FindStringSubmatch(line); m != nil {
			locs = append(locs, Location{File: rel(dir, m[1]), Line: atoi(m[2]), Message: strings.TrimSpace(m[3])})
			continue
		}
		if m := colonStyle.FindStringSubmatch(line); m != nil {
			locs = append(locs, Location{File: rel(dir, m[1]), Line: atoi(m[2]), Message: strings.TrimSpace(m[3])})
			continue
		}
		if m := stylishRow.FindStringSubmatch(line); m != nil && current != "" {
			locs = append(locs, Location{File: current, Line: atoi(m[1]), Message: strings.TrimSpace(m[2])})
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.ContainsAny(trimmed, " \t") && filepath.Ext(trimmed) != "" {
			current = rel(dir, trimmed)
		}
	}
	return locs
}

// GroupByFile joins diagnostic messages per file, in file order.
func GroupByFile(locs []Location) map[string]string {
	grouped := map[string][]string{}
	for _, l := range locs {
		grouped[l.File] = append(grouped[l.File], l.Message)
	}
	out := make(map[string]string, len(grouped))
	for file, msgs := range grouped {
		out[file] = strings.Join(msgs, "\n")
	}
	return out
}

// Files returns the distinct files in locs, sorted.
func Files(locs []Location) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range locs {
		if !seen[l.File] {
			seen[l.File] = true
			out = append(out, l.File)
		}
	}
	sort.Strings(out)
	return out
}

func rel(dir, path string) string {
	if filepath.IsAbs(path) && dir != "" {
		if r, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(r, "..") {
			return filepath.ToSlash(r)
		}
	}
	return filepath.ToSlash(path)
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
