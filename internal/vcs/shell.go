package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ShellClient implements Client by shelling out to the git command.
type ShellClient struct {
	dir string
}

// NewShellClient creates a client running git inside dir.
func NewShellClient(dir string) *ShellClient {
	return &ShellClient{dir: dir}
}

// Status runs git status --porcelain restricted to root.
func (c *ShellClient) Status(ctx context.Context, root string) ([]Entry, error) {
	out, err := c.output(ctx, "status", "--porcelain", "--", root)
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return ParsePorcelain(out), nil
}

// Add stages path.
func (c *ShellClient) Add(ctx context.Context, path string) error {
	if _, err := c.output(ctx, "add", "--", path); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// Commit commits the index with message.
func (c *ShellClient) Commit(ctx context.Context, message string) error {
	out, err := c.output(ctx, "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") || strings.Contains(out, "nothing added to commit") {
			return ErrNothingToCommit
		}
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}

// Push pushes branch to remote.
func (c *ShellClient) Push(ctx context.Context, remote, branch string) error {
	if _, err := c.output(ctx, "push", remote, branch); err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

// output runs git and returns combined output, including it in the error on
// failure.
func (c *ShellClient) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", c.dir}, args...)...) // #nosec G204 -- fixed binary, arguments are not shell-interpreted
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
