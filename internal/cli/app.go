package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/klauern/ifcsync/internal/config"
	"github.com/klauern/ifcsync/internal/detect"
	"github.com/klauern/ifcsync/internal/ledger"
	"github.com/klauern/ifcsync/internal/logging"
	"github.com/klauern/ifcsync/internal/pathmap"
	"github.com/klauern/ifcsync/internal/render"
	"github.com/klauern/ifcsync/internal/sync"
	"github.com/klauern/ifcsync/internal/ui"
	"github.com/klauern/ifcsync/internal/vcs"
)

// app holds the components of one invocation, wired from the configuration.
type app struct {
	cfg      *config.Config
	out      io.Writer
	in       io.Reader
	logger   *slog.Logger
	mapper   *pathmap.Mapper
	detector *detect.Detector
	ledger   *ledger.Ledger
	render   *render.Client
	engine   *sync.Engine
}

func newApp(cmd *cli.Command) (*app, error) {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	applyColorMode(cfg.Output.Color, cmd.Bool("no-color"))

	logger := logging.Default()

	mapper := pathmap.New(pathmap.Options{
		SourceRepo: cfg.Source.Repo,
		TargetRepo: cfg.Mirror.Repo,
		DocsDir:    cfg.Source.DocsDir,
		ContentDir: cfg.Source.ContentDir,
		HTMLPrefix: cfg.Mirror.HTMLPrefix,
	})

	sig := vcs.Signature{Name: cfg.VCS.AuthorName, Email: cfg.VCS.AuthorEmail}
	source, err := vcs.New(vcs.Options{Backend: cfg.VCS.Backend, Dir: cfg.Source.Repo, Signature: sig})
	if err != nil {
		return nil, fmt.Errorf("failed to open source repository: %w", err)
	}
	mirror, err := vcs.New(vcs.Options{Backend: cfg.VCS.Backend, Dir: cfg.Mirror.Repo, Signature: sig})
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror repository: %w", err)
	}

	detector := detect.New(cfg.Source.Repo, mapper.Roots(), source,
		detect.WithWindow(cfg.Detect.Window),
		detect.WithLogger(logger))

	store := ledger.Open(cfg.Ledger.Path, logger)

	var launcher render.Launcher
	if cfg.Render.StartScript != "" {
		launcher = render.NewScriptLauncher(cfg.Render.StartScript, cfg.Render.WorkDir)
	}
	client := render.NewClient(render.Options{
		BaseURL:      cfg.Render.BaseURL,
		ProbeTimeout: cfg.Render.ProbeTimeout,
		FetchTimeout: cfg.Render.FetchTimeout,
		PollInterval: cfg.Render.PollInterval,
		Attempts:     cfg.Render.Attempts,
		UserAgent:    "ifcsync/" + Version,
		Launcher:     launcher,
		Logger:       logger,
	})

	engine := sync.New(mapper, store, client,
		sync.WithVCS(mirror),
		sync.WithLogger(logger))

	return &app{
		cfg:      cfg,
		out:      cmd.Root().Writer,
		in:       cmd.Root().Reader,
		logger:   logger,
		mapper:   mapper,
		detector: detector,
		ledger:   store,
		render:   client,
		engine:   engine,
	}, nil
}

// loadConfig reads the explicit config file when given, otherwise the
// default location.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// applyColorMode applies the configured color mode. --no-color always wins.
func applyColorMode(mode string, noColor bool) {
	if noColor {
		ui.DisableColors()
		return
	}
	switch mode {
	case "never":
		ui.DisableColors()
	case "always":
		ui.EnableColors()
	}
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(args ...any) {
	_, _ = fmt.Fprintln(a.out, args...)
}
