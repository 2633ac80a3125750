// Package detect finds source documents that may need to be re-rendered.
package detect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauern/ifcsync/internal/logging"
	"github.com/klauern/ifcsync/internal/vcs"
)

// DefaultWindow is the look-back window used by Recent.
const DefaultWindow = 24 * time.Hour

// Extension is the only source extension that is tracked.
const Extension = ".md"

// Document is a source document identified by its path relative to the
// source repository.
type Document struct {
	RelPath string
	AbsPath string
	ModTime time.Time
}

// StatusQuerier is the part of vcs.Client the detector needs.
type StatusQuerier interface {
	Status(ctx context.Context, root string) ([]vcs.Entry, error)
}

// Detector looks for changed documents below a set of roots.
type Detector struct {
	repo   string
	roots  []string
	vcs    StatusQuerier
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithWindow overrides DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.window = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(det *Detector) { det.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(det *Detector) { det.logger = l }
}

// New creates a detector for roots (relative to repo).
func New(repo string, roots []string, q StatusQuerier, opts ...Option) *Detector {
	d := &Detector{
		repo:   repo,
		roots:  roots,
		vcs:    q,
		window: DefaultWindow,
		now:    time.Now,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the look-back window in use.
func (d *Detector) Window() time.Duration {
	return d.window
}

// Dirty returns modified or added documents according to the VCS. A root
// whose query fails contributes nothing.
func (d *Detector) Dirty(ctx context.Context) []Document {
	var docs []Document
	for _, root := range d.roots {
		entries, err := d.vcs.Status(ctx, root)
		if err != nil {
			d.logger.Warn("status query failed", logging.Path(root), logging.Err(err))
			continue
		}
		for _, e := range entries {
			if !e.Changed() || !tracked(e.Path) {
				continue
			}
			doc, err := d.stat(e.Path)
			if err != nil {
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs
}

// Recent returns documents modified strictly after now minus window.
func (d *Detector) Recent(window time.Duration) []Document {
	cutoff := d.now().Add(-window)
	var docs []Document
	for _, root := range d.roots {
		base := filepath.Join(d.repo, filepath.FromSlash(root))
		err := filepath.WalkDir(base, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if entry.IsDir() || !tracked(p) {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return nil
			}
			if !info.ModTime().After(cutoff) {
				return nil
			}
			rel, err := filepath.Rel(d.repo, p)
			if err != nil {
				return nil
			}
			docs = append(docs, Document{
				RelPath: filepath.ToSlash(rel),
				AbsPath: p,
				ModTime: info.ModTime(),
			})
			return nil
		})
		if err != nil {
			d.logger.Warn("walk failed", logging.Path(base), logging.Err(err))
		}
	}
	return docs
}

// Candidates merges Dirty and Recent, dropping duplicates while keeping
// first-seen order.
func (d *Detector) Candidates(ctx context.Context) []Document {
	return Merge(d.Dirty(ctx), d.Recent(d.window))
}

// Resolve builds a document from a user supplied path, absolute or relative
// to the working directory.
func (d *Detector) Resolve(path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	repo, err := filepath.Abs(d.repo)
	if err != nil {
		return Document{}, fmt.Errorf("failed to resolve %s: %w", d.repo, err)
	}
	rel, err := filepath.Rel(repo, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Document{}, fmt.Errorf("%s is outside the source repository %s", path, d.repo)
	}
	return d.stat(filepath.ToSlash(rel))
}

// Merge concatenates lists, keeping the first occurrence of each document.
func Merge(lists ...[]Document) []Document {
	seen := make(map[string]bool)
	var out []Document
	for _, list := range lists {
		for _, doc := range list {
			if seen[doc.RelPath] {
				continue
			}
			seen[doc.RelPath] = true
			out = append(out, doc)
		}
	}
	return out
}

func (d *Detector) stat(rel string) (Document, error) {
	abs := filepath.Join(d.repo, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return Document{}, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%s is a directory", abs)
	}
	return Document{RelPath: rel, AbsPath: abs, ModTime: info.ModTime()}, nil
}

func tracked(p string) bool {
	return strings.EqualFold(filepath.Ext(p), Extension)
}
