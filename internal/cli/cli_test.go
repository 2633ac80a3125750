package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/klauern/ifcsync/internal/detect"
	"github.com/klauern/ifcsync/internal/ledger"
	"github.com/klauern/ifcsync/internal/logging"
	"github.com/klauern/ifcsync/internal/sync"
	"github.com/klauern/ifcsync/internal/ui"
)

const trimmedCurve = "docs_zh/schemas/resource/IfcGeometryResource/Entities/IfcTrimmedCurve.md"

type env struct {
	src        string
	mirror     string
	ledgerPath string
	config     string
	baseURL    string

	mu       gosync.Mutex
	requests []string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		src:        t.TempDir(),
		mirror:     t.TempDir(),
		ledgerPath: filepath.Join(t.TempDir(), "sync_progress.json"),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.requests = append(e.requests, r.URL.Path)
		e.mu.Unlock()
		_, _ = w.Write([]byte("<html><head><title>" + r.URL.Path + "</title></head><body>ok</body></html>"))
	}))
	t.Cleanup(srv.Close)
	e.baseURL = srv.URL

	e.config = filepath.Join(t.TempDir(), "config.yaml")
	content := "source:\n  repo: " + e.src + "\n" +
		"mirror:\n  repo: " + e.mirror + "\n" +
		"render:\n  base_url: " + srv.URL + "\n  start_script: \"\"\n" +
		"ledger:\n  path: " + e.ledgerPath + "\n"
	require.NoError(t, os.WriteFile(e.config, []byte(content), 0o644))
	return e
}

func (e *env) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(e.src, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (e *env) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{"ifcsync", "--no-color", "--config", e.config}, args...)
	err := newCommand(&out, strings.NewReader(input)).Run(context.Background(), argv)
	return out.String(), err
}

func (e *env) target() string {
	return filepath.Join(e.mirror, "IFC", "RELEASE", "IFC4x3", "HTML", "lexical", "IfcTrimmedCurve.htm")
}

func TestRun_NoActionShowsHelp(t *testing.T) {
	var out bytes.Buffer
	err := newCommand(&out, strings.NewReader("")).Run(context.Background(), []string{"ifcsync"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ifcsync")
	assert.Contains(t, out.String(), "--check")
	assert.Contains(t, out.String(), "--reset-progress")
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	err := newCommand(&out, strings.NewReader("")).Run(context.Background(), []string{"ifcsync", "version"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ifcsync version "+Version, lines[0])
	assert.Contains(t, lines[1], Commit)
	assert.Contains(t, lines[2], BuildDate)
	assert.True(t, strings.HasPrefix(lines[3], "  go: "))
}

func TestRun_File(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")

	out, err := e.run(t, "", "--file", path, "--no-commit")
	require.NoError(t, err)

	assert.Contains(t, out, "synced: 1 succeeded, 0 failed, 0 skipped")
	assert.Contains(t, out, "/IFC/RELEASE/IFC4x3/HTML/lexical/IfcTrimmedCurve.htm")
	e.mu.Lock()
	assert.Contains(t, e.requests, "/IFC/RELEASE/IFC4x3/HTML/lexical/IfcTrimmedCurve.htm")
	e.mu.Unlock()

	body, err := os.ReadFile(e.target())
	require.NoError(t, err)
	assert.Contains(t, string(body), "<body>ok</body>")

	l := ledger.Open(e.ledgerPath, logging.Discard())
	rec, ok := l.Get(trimmedCurve)
	require.True(t, ok)
	assert.True(t, rec.Success)
	assert.Equal(t, e.target(), rec.Target)
}

func TestRun_FileUnchangedIsSkipped(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")

	_, err := e.run(t, "", "--file", path, "--no-commit")
	require.NoError(t, err)

	out, err := e.run(t, "", "--file", path, "--no-commit")
	require.NoError(t, err)
	assert.Contains(t, out, "synced: 0 succeeded, 0 failed, 1 skipped")

	out, err = e.run(t, "", "--file", path, "--no-commit", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "synced: 1 succeeded, 0 failed, 0 skipped")
}

func TestRun_FileMissing(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "", "--file", filepath.Join(e.src, "docs_zh", "nope.md"))
	assert.Error(t, err)
}

func TestRun_SyncRecentDocuments(t *testing.T) {
	e := newEnv(t)
	e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")
	e.write(t, "docs_zh/examples/sample.md", "# example\n")

	out, err := e.run(t, "", "--sync", "--no-commit")
	require.NoError(t, err)
	assert.Contains(t, out, "synced: 1 succeeded, 0 failed, 1 skipped")
	assert.FileExists(t, e.target())

	// the unsupported example is never recorded, so it stays a candidate
	out, err = e.run(t, "", "--sync", "--no-commit")
	require.NoError(t, err)
	assert.Contains(t, out, "synced: 0 succeeded, 0 failed, 1 skipped")
}

func TestRun_SyncNothingPending(t *testing.T) {
	e := newEnv(t)
	e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")

	_, err := e.run(t, "", "--sync", "--no-commit")
	require.NoError(t, err)

	out, err := e.run(t, "", "--sync", "--no-commit")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending changes")
	assert.Contains(t, out, "(1 document(s) already synced and unchanged)")
}

func TestRun_Check(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")
	_, err := e.run(t, "", "--file", path, "--no-commit")
	require.NoError(t, err)
	e.write(t, "content_zh/introduction.md", "# 简介\n")

	out, err := e.run(t, "", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "Modified in the last 24 hours (2)")
	assert.Contains(t, out, ui.SymbolSuccess+" "+trimmedCurve)
	assert.Contains(t, out, ui.SymbolError+" content_zh/introduction.md")
	assert.Contains(t, out, "Ledger: 1 document(s) recorded, 1 succeeded")
	assert.Contains(t, out, "Render service: "+e.baseURL)
}

func TestRun_Progress(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "--progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger file: "+e.ledgerPath)
	assert.Contains(t, out, "Documents recorded: 0")
	assert.Contains(t, out, "Last sync: never")

	path := e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")
	_, err = e.run(t, "", "--file", path, "--no-commit")
	require.NoError(t, err)

	out, err = e.run(t, "", "--progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents recorded: 1")
	assert.Contains(t, out, "Recently synced")
	assert.Contains(t, out, trimmedCurve)
	assert.NotContains(t, out, "Last sync: never")
}

func TestRun_ResetProgress(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")
	_, err := e.run(t, "", "--file", path, "--no-commit")
	require.NoError(t, err)

	out, err := e.run(t, "no\n", "--reset-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.Equal(t, 1, ledger.Open(e.ledgerPath, logging.Discard()).Stats().Total)

	out, err = e.run(t, "", "--reset-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled", "end of input counts as no")

	out, err = e.run(t, "yes\n", "--reset-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync progress reset")
	assert.Equal(t, 0, ledger.Open(e.ledgerPath, logging.Discard()).Stats().Total)
}

func TestRun_ResetProgressYesFlag(t *testing.T) {
	e := newEnv(t)
	path := e.write(t, trimmedCurve, "# IfcTrimmedCurve\n")
	_, err := e.run(t, "", "--file", path, "--no-commit")
	require.NoError(t, err)

	out, err := e.run(t, "", "--reset-progress", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync progress reset")
	assert.Equal(t, 0, ledger.Open(e.ledgerPath, logging.Discard()).Stats().Total)
}

func TestRun_MissingConfig(t *testing.T) {
	var out bytes.Buffer
	err := newCommand(&out, strings.NewReader("")).Run(context.Background(),
		[]string{"ifcsync", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--check"})
	assert.Error(t, err)
}

func TestHasAction(t *testing.T) {
	tests := map[string]struct {
		args []string
		want bool
	}{
		"none":          {args: nil, want: false},
		"modifier only": {args: []string{"--force", "--no-commit"}, want: false},
		"check":         {args: []string{"--check"}, want: true},
		"file":          {args: []string{"--file", "a.md"}, want: true},
		"reset":         {args: []string{"--reset-progress"}, want: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var got bool
			cmd := newCommand(&bytes.Buffer{}, strings.NewReader(""))
			cmd.Action = func(_ context.Context, c *cli.Command) error {
				got = hasAction(c)
				return nil
			}
			require.NoError(t, cmd.Run(context.Background(), append([]string{"ifcsync"}, tt.args...)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatWindow(t *testing.T) {
	assert.Equal(t, "24 hours", formatWindow(24*time.Hour))
	assert.Equal(t, "hour", formatWindow(time.Hour))
	assert.Equal(t, "1h30m0s", formatWindow(90*time.Minute))
}

func TestFormatDocResult(t *testing.T) {
	ui.DisableColors()
	doc := detect.Document{RelPath: "content_zh/introduction.md"}

	ok := formatDocResult(sync.DocResult{Document: doc, Action: sync.ActionSucceeded,
		URL: "/IFC/RELEASE/IFC4x3/HTML/content/introduction.htm", Committed: true})
	assert.Equal(t, "✓ content_zh/introduction.md -> /IFC/RELEASE/IFC4x3/HTML/content/introduction.htm (committed)", ok)

	failed := formatDocResult(sync.DocResult{Document: doc, Action: sync.ActionFailed,
		Reason: "fetch failed", Error: errors.New("HTTP 500")})
	assert.Equal(t, "✗ content_zh/introduction.md: HTTP 500", failed)

	skipped := formatDocResult(sync.DocResult{Document: doc, Action: sync.ActionSkipped, Reason: sync.ReasonCurrent})
	assert.Equal(t, "- content_zh/introduction.md (already synced and unchanged)", skipped)
}

func TestApplyColorMode(t *testing.T) {
	t.Cleanup(ui.DisableColors)

	applyColorMode("always", false)
	assert.True(t, ui.IsColorEnabled())

	applyColorMode("always", true)
	assert.False(t, ui.IsColorEnabled())

	ui.EnableColors()
	applyColorMode("never", false)
	assert.False(t, ui.IsColorEnabled())
}
