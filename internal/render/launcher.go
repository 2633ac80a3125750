package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNoStartScript is returned when no start script is configured or the
// configured one does not exist.
var ErrNoStartScript = errors.New("render service start script not found")

// ScriptLauncher starts the service by running a shell script in the
// background with its output discarded.
type ScriptLauncher struct {
	Script string
	Dir    string
	Shell  string
}

// NewScriptLauncher creates a launcher for script, run from dir. An empty
// dir means the script's own directory.
func NewScriptLauncher(script, dir string) *ScriptLauncher {
	return &ScriptLauncher{Script: script, Dir: dir, Shell: "bash"}
}

// Start launches the script and returns without waiting for it. The
// process is not tied to ctx so it keeps serving after ifcsync exits.
func (l *ScriptLauncher) Start(_ context.Context) error {
	if l.Script == "" {
		return ErrNoStartScript
	}
	if _, err := os.Stat(l.Script); err != nil {
		return fmt.Errorf("%w: %s", ErrNoStartScript, l.Script)
	}

	dir := l.Dir
	if dir == "" {
		dir = filepath.Dir(l.Script)
	}
	shell := l.Shell
	if shell == "" {
		shell = "bash"
	}

	cmd := exec.Command(shell, l.Script) // #nosec G204 -- script path comes from configuration
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.Script, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
