package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// AllowlistFile is the per-package allowlist file name.
const AllowlistFile = ".gitleaks.toml"

// Allowlist holds path and content patterns excluded from detection.
type Allowlist struct {
	Paths   []string
	Regexes []string
}

// LoadAllowlist reads AllowlistFile from dir, if present, and appends the
// extra path patterns. A missing file is not an error.
func LoadAllowlist(dir string, extraPaths ...string) (*Allowlist, error) {
	al := &Allowlist{}
	var file struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}
	path := filepath.Join(dir, AllowlistFile)
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
		}
	} else {
		al.Paths = append(al.Paths, file.Allowlist.Paths...)
		al.Regexes = append(al.Regexes, file.Allowlist.Regexes...)
	}
	al.Paths = append(al.Paths, extraPaths...)

	if _, err := compileAll(al.Paths); err != nil {
		return nil, err
	}
	if _, err := compileAll(al.Regexes); err != nil {
		return nil, err
	}
	return al, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
