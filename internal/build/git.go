package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitRecorder commits applied file changes to the repository that contains
// a package directory.
type GitRecorder struct {
	Dir         string
	AuthorName  string
	AuthorEmail string
	Now         func() time.Time
}

// ErrNotRepository is returned when Dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// repoLocks holds one mutex per repository root. Packages of a workspace
// usually share a repository and build concurrently; the index and HEAD
// allow one writer at a time.
var repoLocks sync.Map

func lockRepo(root string) func() {
	mu, _ := repoLocks.LoadOrStore(root, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (r *GitRecorder) open() (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpenWithOptions(r.Dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil, fmt.Errorf("%s: %w", r.Dir, ErrNotRepository)
		}
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("open worktree: %w", err)
	}
	return repo, wt, nil
}

// Record stages paths (relative to Dir) and commits them. Calls for
// packages in the same repository are serialized, so each commit holds
// exactly the paths it was given.
func (r *GitRecorder) Record(ctx context.Context, message string, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, wt, err := r.open()
	if err != nil {
		return err
	}
	root := wt.Filesystem.Root()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	unlock := lockRepo(root)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	// Reopen under the lock so the worktree sees the latest index and HEAD.
	if _, wt, err = r.open(); err != nil {
		return err
	}
	dir, err := filepath.Abs(r.Dir)
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	for _, p := range paths {
		rel, err := filepath.Rel(root, filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: r.AuthorName, Email: r.AuthorEmail, When: now()},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CurrentBranch returns the checked out branch of the repository containing
// dir, or "" for a detached HEAD or a directory outside any repository.
func CurrentBranch(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return ""
}
