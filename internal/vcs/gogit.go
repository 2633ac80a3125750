package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Default commit identity for the go-git backend.
const (
	DefaultAuthorName  = "ifcsync"
	DefaultAuthorEmail = "ifcsync@localhost"
)

// GoGitClient implements Client in process with go-git.
type GoGitClient struct {
	dir  string
	repo *git.Repository
	sig  Signature
}

// NewGoGitClient opens the repository at dir.
func NewGoGitClient(dir string, sig Signature) (*GoGitClient, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	if sig.Name == "" {
		sig.Name = DefaultAuthorName
	}
	if sig.Email == "" {
		sig.Email = DefaultAuthorEmail
	}
	return &GoGitClient{dir: dir, repo: repo, sig: sig}, nil
}

// Status lists entries below root, sorted by path.
func (c *GoGitClient) Status(_ context.Context, root string) ([]Entry, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status: %w", err)
	}

	prefix := strings.Trim(filepath.ToSlash(root), "/")
	var entries []Entry
	for p, fs := range status {
		if prefix != "" && prefix != "." && !strings.HasPrefix(p, prefix+"/") {
			continue
		}
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		entries = append(entries, Entry{
			Code: string([]byte{byte(fs.Staging), byte(fs.Worktree)}),
			Path: p,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Add stages path, which may be absolute or relative to the working tree.
func (c *GoGitClient) Add(_ context.Context, path string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	rel, err := c.rel(path)
	if err != nil {
		return err
	}
	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("failed to add path %q: %w", rel, err)
	}
	return nil
}

// Commit records the index with the configured signature.
func (c *GoGitClient) Commit(_ context.Context, message string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	staged := 0
	for _, fs := range status {
		if fs.Staging != git.Untracked && fs.Staging != git.Unmodified {
			staged++
		}
	}
	if staged == 0 {
		return ErrNothingToCommit
	}

	who := &object.Signature{Name: c.sig.Name, Email: c.sig.Email, When: time.Now()}
	if _, err := wt.Commit(message, &git.CommitOptions{Author: who, Committer: who}); err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}
	return nil
}

// Push pushes branch to remote. An up-to-date remote is not an error.
func (c *GoGitClient) Push(ctx context.Context, remote, branch string) error {
	spec := config.RefSpec("refs/heads/" + branch + ":refs/heads/" + branch)
	err := c.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{spec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push to %s/%s: %w", remote, branch, err)
	}
	return nil
}

func (c *GoGitClient) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path), nil
	}
	dir, err := filepath.Abs(c.dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %s is outside the working tree %s", path, dir)
	}
	return filepath.ToSlash(rel), nil
}
