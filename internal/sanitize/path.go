package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrAbsolutePath indicates an absolute path where a relative one was expected.
	ErrAbsolutePath = errors.New("absolute path not allowed")

	// ErrPathTraversal indicates a path escapes its root.
	ErrPathTraversal = errors.New("path escapes package directory")
)

// RelativePath validates a package-relative path proposed by the agent and
// returns it joined onto root. The result always stays inside root.
func RelativePath(root, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("%w: %s", ErrAbsolutePath, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	full := filepath.Join(absRoot, clean)
	check, err := filepath.Rel(absRoot, full)
	if err != nil || strings.HasPrefix(check, "..") {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, rel)
	}
	return full, nil
}
