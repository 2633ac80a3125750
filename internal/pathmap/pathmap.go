// Package pathmap maps source documents of the localized IFC documentation
// to the URL paths served by the rendering service, and URL paths back to
// files in the static mirror.
//
// Mapping is an ordered rule table evaluated top to bottom; the first rule
// whose predicate matches decides the outcome.
package pathmap

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// DefaultHTMLPrefix is the URL prefix of every rendered page.
const DefaultHTMLPrefix = "/IFC/RELEASE/IFC4x3/HTML"

// Default source roots, relative to the source repository.
const (
	DefaultDocsDir    = "docs_zh"
	DefaultContentDir = "content_zh"
)

// Reason explains the outcome of a mapping attempt.
type Reason string

const (
	// ReasonMapped means a rule produced a target URL.
	ReasonMapped Reason = "mapped"
	// ReasonUnsupported means the category is known but deliberately skipped.
	ReasonUnsupported Reason = "unsupported"
	// ReasonUnrecognized means no rule matched.
	ReasonUnrecognized Reason = "unrecognized"
	// ReasonOutsideRoots means the path is under neither source root.
	ReasonOutsideRoots Reason = "outside-roots"
)

// ErrOutsideRepo is returned by Rel for paths outside the source repository.
var ErrOutsideRepo = errors.New("path is outside the source repository")

// Mapping is the result of a successful lookup.
type Mapping struct {
	// Source is the document identity (slash separated, relative to the
	// source repository).
	Source string
	// Rule names the rule that matched.
	Rule string
	// URL is the absolute URL path on the rendering service.
	URL string
}

// Options configures a Mapper. Zero values fall back to the defaults.
type Options struct {
	SourceRepo string
	TargetRepo string
	DocsDir    string
	ContentDir string
	HTMLPrefix string
}

// Mapper converts between source documents, URL paths and output files.
type Mapper struct {
	sourceRepo string
	targetRepo string
	docsDir    string
	contentDir string
	prefix     string
	rules      []rule
}

// New creates a Mapper.
func New(opts Options) *Mapper {
	m := &Mapper{
		sourceRepo: opts.SourceRepo,
		targetRepo: opts.TargetRepo,
		docsDir:    cleanRoot(opts.DocsDir, DefaultDocsDir),
		contentDir: cleanRoot(opts.ContentDir, DefaultContentDir),
		prefix:     strings.TrimSuffix(opts.HTMLPrefix, "/"),
	}
	if opts.HTMLPrefix == "" {
		m.prefix = DefaultHTMLPrefix
	}
	m.rules = defaultRules()
	return m
}

func cleanRoot(dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	return strings.Trim(filepath.ToSlash(dir), "/")
}

// Roots returns the tracked source roots relative to the source repository.
func (m *Mapper) Roots() []string {
	return []string{m.docsDir, m.contentDir}
}

// Rules returns the rule names in evaluation order.
func (m *Mapper) Rules() []string {
	names := make([]string, 0, len(m.rules)+1)
	for _, r := range m.rules {
		names = append(names, r.name)
	}
	return append(names, ruleContent)
}

// Rel converts an absolute (or already relative) source path into the
// document identity used by Map and by the ledger.
func (m *Mapper) Rel(p string) (string, error) {
	if !filepath.IsAbs(p) {
		return path.Clean(filepath.ToSlash(p)), nil
	}
	rel, err := filepath.Rel(m.sourceRepo, p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, p)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, p)
	}
	return rel, nil
}

// Abs returns the absolute path of a document identity.
func (m *Mapper) Abs(rel string) string {
	return filepath.Join(m.sourceRepo, filepath.FromSlash(rel))
}

// Map returns the target URL for a document identity.
func (m *Mapper) Map(rel string) (Mapping, Reason) {
	rel = path.Clean(filepath.ToSlash(rel))

	if sub, ok := under(rel, m.contentDir); ok {
		return Mapping{
			Source: rel,
			Rule:   ruleContent,
			URL:    m.url("content", stem(sub)+".htm"),
		}, ReasonMapped
	}

	sub, ok := under(rel, m.docsDir)
	if !ok {
		return Mapping{Source: rel}, ReasonOutsideRoots
	}

	for _, r := range m.rules {
		if !r.match(sub) {
			continue
		}
		if r.build == nil {
			return Mapping{Source: rel, Rule: r.name}, ReasonUnsupported
		}
		return Mapping{Source: rel, Rule: r.name, URL: m.url(r.build(sub))}, ReasonMapped
	}
	return Mapping{Source: rel}, ReasonUnrecognized
}

// OutputPath resolves a URL path to a file below the target repository.
func (m *Mapper) OutputPath(urlPath string) string {
	return filepath.Join(m.targetRepo, filepath.FromSlash(strings.TrimLeft(urlPath, "/")))
}

func (m *Mapper) url(parts ...string) string {
	return m.prefix + "/" + path.Join(parts...)
}

// under reports whether p lies below root and returns the remainder.
func under(p, root string) (string, bool) {
	if root == "" || !strings.HasPrefix(p, root+"/") {
		return "", false
	}
	return strings.TrimPrefix(p, root+"/"), true
}

func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
