// Package cli provides the command-line interface for ifcsync.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/ifcsync/internal/logging"
	"github.com/klauern/ifcsync/internal/ui"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	return newCommand(os.Stdout, os.Stdin).Run(ctx, args)
}

func newCommand(out io.Writer, in io.Reader) *cli.Command {
	return &cli.Command{
		Name:      "ifcsync",
		Usage:     "Render changed IFC Chinese documents and sync them into the static mirror",
		Version:   Version,
		Writer:    out,
		Reader:    in,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "check",
				Usage: "List documents waiting to be synced",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Render and sync every detected change",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Render and sync a single document",
			},
			&cli.BoolFlag{
				Name:  "auto",
				Usage: "Detect, sync, commit and push in one go",
			},
			&cli.BoolFlag{
				Name:  "no-commit",
				Usage: "Do not commit written pages (with --sync or --file)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Ignore the ledger and sync every candidate",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show sync ledger statistics",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Browse the ledger interactively (with --progress)",
			},
			&cli.BoolFlag{
				Name:  "reset-progress",
				Usage: "Clear the sync ledger",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation of --reset-progress",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML or TOML config file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Write log lines as JSON",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			configureColors(cmd)
			return ctx, configureLogging(cmd)
		},
		Action: rootAction,
		Commands: []*cli.Command{
			versionCommand(),
		},
	}
}

// configureColors sets up color output based on CLI flags.
func configureColors(cmd *cli.Command) {
	if cmd.Bool("no-color") {
		ui.DisableColors()
	}
}

// configureLogging sets up the logging level based on CLI flags.
func configureLogging(cmd *cli.Command) error {
	opts := logging.DefaultOptions()
	opts.JSON = cmd.Bool("log-json")

	if cmd.Bool("debug") {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	} else if cmd.Bool("verbose") {
		opts.Level = slog.LevelInfo
	}

	logger := logging.New(opts)
	logging.SetDefault(logger)

	logging.Debug("logging configured", slog.String("level", opts.Level.String()))

	return nil
}

// rootAction dispatches the action flags. Ledger maintenance runs alone;
// check, sync, file and auto run in that order when combined.
func rootAction(ctx context.Context, cmd *cli.Command) error {
	if !hasAction(cmd) {
		return cli.ShowAppHelp(cmd)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx = logging.NewContext(ctx, a.logger)

	if cmd.Bool("reset-progress") {
		return a.reset(cmd.Bool("yes"))
	}
	if cmd.Bool("progress") {
		return a.progress(ctx, cmd.Bool("interactive"), !cmd.Bool("no-commit"))
	}

	commit := !cmd.Bool("no-commit")
	force := cmd.Bool("force")

	if cmd.Bool("check") {
		a.check(ctx)
	}
	if cmd.Bool("sync") {
		if err := a.syncChanges(ctx, commit, force); err != nil {
			return err
		}
	}
	if path := cmd.String("file"); path != "" {
		if err := a.syncFile(ctx, path, commit, force); err != nil {
			return err
		}
	}
	if cmd.Bool("auto") {
		return a.auto(ctx, force)
	}
	return nil
}

func hasAction(cmd *cli.Command) bool {
	for _, name := range []string{"check", "sync", "auto", "progress", "reset-progress"} {
		if cmd.Bool(name) {
			return true
		}
	}
	return cmd.String("file") != ""
}
