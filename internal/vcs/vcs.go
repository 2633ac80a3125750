// Package vcs provides the small set of version control operations ifcsync
// needs: a status query under a directory, staging a path, committing and
// pushing. Two backends are available, one shelling out to git and one
// running in process on go-git.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Backend names accepted by New.
const (
	BackendShell = "shell"
	BackendGoGit = "go-git"
)

// ErrNothingToCommit is returned by Commit when the index has no changes.
var ErrNothingToCommit = errors.New("nothing to commit")

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown vcs backend")

// Client is bound to one working tree.
type Client interface {
	// Status lists changed entries below root (relative to the working tree).
	Status(ctx context.Context, root string) ([]Entry, error)
	// Add stages a single path.
	Add(ctx context.Context, path string) error
	// Commit records the staged changes.
	Commit(ctx context.Context, message string) error
	// Push sends branch to remote.
	Push(ctx context.Context, remote, branch string) error
}

// Entry is one line of a status listing.
type Entry struct {
	// Code is the two-letter index/worktree status, e.g. " M", "A ", "??".
	Code string
	// Path is relative to the working tree root, slash separated.
	Path string
}

// Changed reports whether the entry is a modification or an addition.
// Untracked files do not count.
func (e Entry) Changed() bool {
	return strings.ContainsAny(e.Code, "MA")
}

// Signature identifies the author of commits made by the go-git backend.
type Signature struct {
	Name  string
	Email string
}

// Options configures New.
type Options struct {
	Backend   string
	Dir       string
	Signature Signature
}

// New returns a client for the configured backend.
func New(opts Options) (Client, error) {
	switch opts.Backend {
	case "", BackendShell:
		return NewShellClient(opts.Dir), nil
	case BackendGoGit:
		return NewGoGitClient(opts.Dir, opts.Signature)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// ParsePorcelain parses `git status --porcelain` (v1) output.
// Quoted paths are unquoted; for renames the new path is kept.
func ParsePorcelain(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		p := line[3:]
		if i := strings.Index(p, " -> "); i >= 0 {
			p = p[i+len(" -> "):]
		}
		entries = append(entries, Entry{Code: line[:2], Path: unquote(p)})
	}
	return entries
}

func unquote(p string) string {
	if len(p) >= 2 && strings.HasPrefix(p, `"`) && strings.HasSuffix(p, `"`) {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
	}
	return p
}
