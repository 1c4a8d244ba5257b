package build

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

// NewGitHubClient creates an authenticated GitHub client.
func NewGitHubClient(ctx context.Context, token config.Secret) (*github.Client, error) {
	if !token.IsSet() {
		return nil, errors.New("GitHub token not set")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
	return github.NewClient(oauth2.NewClient(ctx, ts)), nil
}

// GitHubReleasePublisher publishes a package as a GitHub release tagged
// "<name>@v<version>". An existing release for the tag counts as published,
// so retries are safe.
type GitHubReleasePublisher struct {
	Client       *github.Client
	Owner        string
	Repo         string
	ManifestName string
	Retry        *RetryConfig
	Logger       *logging.Logger
}

var _ Publisher = (*GitHubReleasePublisher)(nil)

// ReleaseTag returns the tag used for a package version.
func ReleaseTag(name, version string) string {
	return fmt.Sprintf("%s@v%s", name, version)
}

// Publish implements Publisher.
func (p *GitHubReleasePublisher) Publish(ctx context.Context, pkg graph.Package) (PublishResult, error) {
	version := manifestVersion(pkg, p.ManifestName)
	if version == "" {
		return PublishResult{Detail: "package has no version"}, nil
	}
	tag := ReleaseTag(pkg.Name, version)

	var existing *github.RepositoryRelease
	_, err := retryGitHubOperation(ctx, p.Retry, p.Logger, func() (*github.Response, error) {
		rel, resp, err := p.Client.Repositories.GetReleaseByTag(ctx, p.Owner, p.Repo, tag)
		if err != nil && statusCode(resp) == http.StatusNotFound {
			return resp, nil
		}
		existing = rel
		return resp, err
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("look up release %s: %w", tag, err)
	}
	if existing != nil {
		return PublishResult{Published: true, Version: version, URL: existing.GetHTMLURL(), Detail: "release already exists"}, nil
	}

	var created *github.RepositoryRelease
	_, err = retryGitHubOperation(ctx, p.Retry, p.Logger, func() (*github.Response, error) {
		rel, resp, err := p.Client.Repositories.CreateRelease(ctx, p.Owner, p.Repo, &github.RepositoryRelease{
			TagName: github.String(tag),
			Name:    github.String(fmt.Sprintf("%s %s", pkg.Name, version)),
			Body:    github.String(fmt.Sprintf("Automated release of %s %s.", pkg.Name, version)),
		})
		created = rel
		return resp, err
	})
	if err != nil {
		return PublishResult{Detail: err.Error()}, nil
	}
	return PublishResult{Published: true, Version: version, URL: created.GetHTMLURL()}, nil
}
