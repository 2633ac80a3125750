package e2e

import (
	"os"
	"path/filepath"
	"testing"
)

// Fixture provides helpers for creating and reading files below a root.
type Fixture struct {
	t       *testing.T
	baseDir string
}

// NewFixture creates a new fixture helper rooted at the given directory.
func NewFixture(t *testing.T, baseDir string) *Fixture {
	t.Helper()
	return &Fixture{
		t:       t,
		baseDir: baseDir,
	}
}

// WriteFile writes content to a file relative to the fixture base directory.
// It creates parent directories as needed.
func (f *Fixture) WriteFile(relPath, content string) string {
	f.t.Helper()
	fullPath := f.Path(relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		f.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
		f.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}

	return fullPath
}

// WriteDoc writes a Markdown document with a level one heading.
func (f *Fixture) WriteDoc(relPath, title, body string) string {
	f.t.Helper()
	return f.WriteFile(relPath, "# "+title+"\n\n"+body+"\n")
}

// Path returns the full path for a slash separated relative path.
func (f *Fixture) Path(relPath string) string {
	return filepath.Join(f.baseDir, filepath.FromSlash(relPath))
}

// Exists returns true if the file or directory exists.
func (f *Fixture) Exists(relPath string) bool {
	f.t.Helper()
	_, err := os.Stat(f.Path(relPath))
	return err == nil
}

// ReadFile reads and returns the content of a file.
func (f *Fixture) ReadFile(relPath string) string {
	f.t.Helper()
	fullPath := f.Path(relPath)

	// #nosec G304 - fullPath is constructed from trusted test fixture base and test-provided path
	data, err := os.ReadFile(fullPath)
	if err != nil {
		f.t.Fatalf("failed to read file %s: %v", fullPath, err)
	}

	return string(data)
}

// Source returns a fixture for the source repository.
func (h *Harness) Source() *Fixture {
	h.t.Helper()
	return NewFixture(h.t, h.sourceDir)
}

// Mirror returns a fixture for the mirror repository.
func (h *Harness) Mirror() *Fixture {
	h.t.Helper()
	return NewFixture(h.t, h.mirrorDir)
}
