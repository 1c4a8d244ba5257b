package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Assembled at runtime so this file does not trip secret scanners.
var apiKey = "sk-proj-" + "abc123def456ghi789jkl012mno345pqr678stu901xyz"

func keyLine(key string) string {
	return "const apiKey = \"" + key + "\"\n"
}

func newScanner(t *testing.T) *Scanner {
	t.Helper()
	s, err := NewScanner()
	require.NoError(t, err)
	return s
}

func TestScanString(t *testing.T) {
	s := newScanner(t)

	findings, err := s.ScanString("\n"+keyLine(apiKey), nil)
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	assert.NotEmpty(t, findings[0].RuleID)

	clean, err := s.ScanString("export const answer = 42;\n", nil)
	require.NoError(t, err)
	assert.Empty(t, clean)
}

func TestScanString_ContentAllowlist(t *testing.T) {
	s := newScanner(t)
	findings, err := s.ScanString(keyLine(apiKey), &Allowlist{Regexes: []string{`abc123def456`}})
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("src/config.ts", keyLine(apiKey))
	write("src/index.ts", "export {};\n")
	write("node_modules/dep/index.js", keyLine(apiKey))
	write("test/fixtures/creds.ts", keyLine(apiKey))

	s := newScanner(t)
	al, err := LoadAllowlist(root, `^test/fixtures/`)
	require.NoError(t, err)

	findings, err := s.ScanDir(context.Background(), root, al)
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	for _, f := range findings {
		assert.Equal(t, "src/config.ts", f.File)
	}
	assert.Contains(t, findings[0].Location(), "src/config.ts:")
	assert.NotContains(t, findings[0].Location(), apiKey)
}

func TestLoadAllowlist(t *testing.T) {
	dir := t.TempDir()
	al, err := LoadAllowlist(dir)
	require.NoError(t, err, "missing file is fine")
	assert.Empty(t, al.Paths)

	require.NoError(t, os.WriteFile(filepath.Join(dir, AllowlistFile), []byte(`
[allowlist]
paths = ['''docs/.*''']
regexes = ['''EXAMPLE''']
`), 0o644))
	al, err = LoadAllowlist(dir, `^fixtures/`)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/.*", "^fixtures/"}, al.Paths)
	assert.Equal(t, []string{"EXAMPLE"}, al.Regexes)

	require.NoError(t, os.WriteFile(filepath.Join(dir, AllowlistFile), []byte("[allowlist\n"), 0o644))
	_, err = LoadAllowlist(dir)
	assert.True(t, errors.Is(err, ErrInvalidTOML))

	require.NoError(t, os.Remove(filepath.Join(dir, AllowlistFile)))
	_, err = LoadAllowlist(dir, "(")
	assert.True(t, errors.Is(err, ErrInvalidRegex))
}

func TestRedact(t *testing.T) {
	s := newScanner(t)
	out, findings, err := s.Redact("line one\n"+keyLine(apiKey), nil)
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	assert.NotContains(t, out, findings[0].Match)
	assert.Contains(t, out, "[REDACTED:")
	assert.Contains(t, out, "line one")

	same, none, err := s.Redact("nothing here", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, "nothing here", same)
}
