// Package e2e provides testing infrastructure for end-to-end CLI tests.
// A harness owns a source repository, a mirror repository, a rendering
// service stub and a ledger location, and runs the CLI against them.
package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/klauern/ifcsync/internal/cli"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the inferred exit code (0 for success, 1 for error).
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness provides a test harness for running E2E CLI tests.
type Harness struct {
	t          *testing.T
	sourceDir  string
	mirrorDir  string
	ledgerPath string
	configPath string
	server     *httptest.Server

	mu       sync.Mutex
	requests []string
	statuses map[string]int
}

// Option configures a Harness.
type Option func(*Harness)

// WithRenderDown points the CLI at a rendering service that is not
// listening.
func WithRenderDown() Option {
	return func(h *Harness) {
		h.server.Close()
	}
}

// NewHarness creates git repositories for the source and the mirror, starts
// a rendering service stub and writes a config file tying them together.
// The service URL is passed through the environment.
func NewHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()

	h := &Harness{
		t:          t,
		sourceDir:  t.TempDir(),
		mirrorDir:  t.TempDir(),
		ledgerPath: filepath.Join(t.TempDir(), "state", "sync_progress.json"),
		statuses:   make(map[string]int),
	}
	for _, dir := range []string{h.sourceDir, h.mirrorDir} {
		if _, err := git.PlainInit(dir, false); err != nil {
			t.Fatalf("failed to init repository %s: %v", dir, err)
		}
	}

	h.server = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.server.Close)

	h.configPath = filepath.Join(t.TempDir(), "config.yaml")
	config := "source:\n  repo: " + h.sourceDir + "\n" +
		"mirror:\n  repo: " + h.mirrorDir + "\n" +
		"render:\n  start_script: \"\"\n  attempts: 1\n  poll_interval: 10ms\n" +
		"ledger:\n  path: " + h.ledgerPath + "\n" +
		"vcs:\n  backend: go-git\n  author_name: e2e\n  author_email: e2e@example.com\n" +
		"output:\n  progress: false\n"
	if err := os.WriteFile(h.configPath, []byte(config), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("IFCSYNC_RENDER_BASE_URL", h.server.URL)

	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Harness) serve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status, ok := h.statuses[r.URL.Path]
	if r.URL.Path != "/" {
		h.requests = append(h.requests, r.URL.Path)
	}
	h.mu.Unlock()

	if ok {
		w.WriteHeader(status)
		return
	}
	_, _ = w.Write([]byte("<html><head><title>" + r.URL.Path + "</title></head><body>rendered</body></html>"))
}

// RespondWith makes the rendering service answer urlPath with status.
func (h *Harness) RespondWith(urlPath string, status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[urlPath] = status
}

// Requests returns the page paths requested so far, without probes.
func (h *Harness) Requests() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.requests...)
}

// SourceDir returns the source repository root.
func (h *Harness) SourceDir() string {
	return h.sourceDir
}

// MirrorDir returns the mirror repository root.
func (h *Harness) MirrorDir() string {
	return h.mirrorDir
}

// LedgerPath returns the ledger file location.
func (h *Harness) LedgerPath() string {
	return h.ledgerPath
}

// CommitSource stages and commits everything in the source repository so
// that later edits show up as modifications.
func (h *Harness) CommitSource(message string) {
	h.t.Helper()
	repo, err := git.PlainOpen(h.sourceDir)
	if err != nil {
		h.t.Fatalf("failed to open source repository: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		h.t.Fatalf("failed to open worktree: %v", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		h.t.Fatalf("failed to stage source files: %v", err)
	}
	sig := &object.Signature{Name: "author", Email: "author@example.com", When: time.Now()}
	if _, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		h.t.Fatalf("failed to commit source files: %v", err)
	}
}

// MirrorLog returns the mirror commit messages, newest first. An empty
// repository yields nil.
func (h *Harness) MirrorLog() []string {
	h.t.Helper()
	repo, err := git.PlainOpen(h.mirrorDir)
	if err != nil {
		h.t.Fatalf("failed to open mirror repository: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		h.t.Fatalf("failed to read mirror log: %v", err)
	}
	var messages []string
	_ = iter.ForEach(func(c *object.Commit) error {
		messages = append(messages, c.Message)
		return nil
	})
	return messages
}

// Run executes a CLI command with the given arguments and captures the
// output. The harness config file is always passed.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()
	return h.RunWithStdin("", args...)
}

// RunWithStdin executes a CLI command with stdin input and captures output.
func (h *Harness) RunWithStdin(stdin string, args ...string) *Result {
	h.t.Helper()

	argv := append([]string{"ifcsync", "--no-color", "--config", h.configPath}, args...)

	oldStdin := os.Stdin
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdin pipe: %v", err)
	}
	go func() {
		defer func() { _ = stdinW.Close() }()
		_, _ = stdinW.WriteString(stdin)
	}()
	os.Stdin = stdinR

	oldStdout := os.Stdout
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = stdoutW

	// Read concurrently so a large output cannot fill the pipe buffer.
	var stdoutBuf bytes.Buffer
	var copyErr error
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, copyErr = io.Copy(&stdoutBuf, stdoutR)
	}()

	cmdErr := cli.Run(context.Background(), argv)

	if err := stdoutW.Close(); err != nil {
		h.t.Fatalf("failed to close stdout pipe writer: %v", err)
	}
	os.Stdin = oldStdin
	os.Stdout = oldStdout
	_ = stdinR.Close()

	<-copyDone
	if copyErr != nil {
		h.t.Fatalf("failed to read captured stdout: %v", copyErr)
	}

	exitCode := 0
	if cmdErr != nil {
		exitCode = 1
	}
	return &Result{
		Stdout:   stdoutBuf.String(),
		Err:      cmdErr,
		ExitCode: exitCode,
	}
}
