package build

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/toolchain"
)

type stubRunner struct {
	result toolchain.Result
	err    error
	dirs   []string
}

func (s *stubRunner) Run(_ context.Context, dir, commandLine string) (toolchain.Result, error) {
	s.dirs = append(s.dirs, dir)
	s.result.Command = commandLine
	return s.result, s.err
}

func writeManifest(t *testing.T, version string) graph.Package {
	t.Helper()
	dir := t.TempDir()
	body := `{"name": "@acme/widgets", "version": "` + version + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(body), 0o644))
	return graph.Package{Name: "@acme/widgets", Path: dir}
}

func TestCommandPublisher(t *testing.T) {
	t.Run("version from tool output", func(t *testing.T) {
		pkg := writeManifest(t, "1.0.0")
		runner := &stubRunner{result: toolchain.Result{Output: "npm notice\n+ @acme/widgets@1.0.1\n"}}
		p := &CommandPublisher{Command: "npm publish", Runner: runner}

		res, err := p.Publish(context.Background(), pkg)
		require.NoError(t, err)
		assert.True(t, res.Published)
		assert.Equal(t, "1.0.1", res.Version)
		assert.Equal(t, []string{pkg.Path}, runner.dirs)
	})

	t.Run("version from manifest", func(t *testing.T) {
		pkg := writeManifest(t, "2.3.4")
		p := &CommandPublisher{Command: "npm publish", Runner: &stubRunner{}}

		res, err := p.Publish(context.Background(), pkg)
		require.NoError(t, err)
		assert.Equal(t, "2.3.4", res.Version)
	})

	t.Run("non-zero exit is not published", func(t *testing.T) {
		pkg := writeManifest(t, "1.0.0")
		runner := &stubRunner{result: toolchain.Result{ExitCode: 1, Output: "npm ERR! 403 Forbidden"}}
		p := &CommandPublisher{Command: "npm publish", Runner: runner}

		res, err := p.Publish(context.Background(), pkg)
		require.NoError(t, err)
		assert.False(t, res.Published)
		assert.Contains(t, res.Detail, "403 Forbidden")
	})

	t.Run("command that cannot start is an error", func(t *testing.T) {
		pkg := writeManifest(t, "1.0.0")
		p := &CommandPublisher{Command: "npm publish", Runner: &stubRunner{err: errors.New("executable not found")}}

		_, err := p.Publish(context.Background(), pkg)
		assert.ErrorContains(t, err, "executable not found")
	})
}

func TestNewGitHubClient_RequiresToken(t *testing.T) {
	_, err := NewGitHubClient(context.Background(), config.Secret(""))
	assert.Error(t, err)

	client, err := NewGitHubClient(context.Background(), config.Secret("ghp_test"))
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func newGitHubServer(t *testing.T, handler http.Handler) *github.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return client
}

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
}

func TestGitHubReleasePublisher_CreatesRelease(t *testing.T) {
	pkg := writeManifest(t, "1.4.0")
	var created github.RepositoryRelease
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/releases/tags/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/repos/acme/widgets/releases", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1, "html_url": "https://github.com/acme/widgets/releases/1"}`))
	})

	p := &GitHubReleasePublisher{Client: newGitHubServer(t, mux), Owner: "acme", Repo: "widgets", Retry: fastRetry()}
	res, err := p.Publish(context.Background(), pkg)

	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.Equal(t, "1.4.0", res.Version)
	assert.Equal(t, "https://github.com/acme/widgets/releases/1", res.URL)
	assert.Equal(t, "@acme/widgets@v1.4.0", created.GetTagName())
}

func TestGitHubReleasePublisher_ExistingReleaseIsPublished(t *testing.T) {
	pkg := writeManifest(t, "1.4.0")
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/releases/tags/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 9, "html_url": "https://github.com/acme/widgets/releases/9"}`))
	})
	mux.HandleFunc("/repos/acme/widgets/releases", func(w http.ResponseWriter, r *http.Request) {
		t.Error("release must not be created twice")
	})

	p := &GitHubReleasePublisher{Client: newGitHubServer(t, mux), Owner: "acme", Repo: "widgets", Retry: fastRetry()}
	res, err := p.Publish(context.Background(), pkg)

	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.Equal(t, "https://github.com/acme/widgets/releases/9", res.URL)
}

func TestGitHubReleasePublisher_CreateFailureIsNotPublished(t *testing.T) {
	pkg := writeManifest(t, "1.4.0")
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/releases/tags/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/repos/acme/widgets/releases", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Validation Failed"}`, http.StatusUnprocessableEntity)
	})

	p := &GitHubReleasePublisher{Client: newGitHubServer(t, mux), Owner: "acme", Repo: "widgets", Retry: fastRetry()}
	res, err := p.Publish(context.Background(), pkg)

	require.NoError(t, err)
	assert.False(t, res.Published)
	assert.Contains(t, res.Detail, "422")
}

func TestReleaseTag(t *testing.T) {
	assert.Equal(t, "@acme/core@v1.0.0", ReleaseTag("@acme/core", "1.0.0"))
}
