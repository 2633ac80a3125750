package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauern/ifcsync/internal/detect"
	"github.com/klauern/ifcsync/internal/progress"
	"github.com/klauern/ifcsync/internal/sync"
	"github.com/klauern/ifcsync/internal/ui"
)

// syncChanges syncs every candidate. Without force, documents the ledger
// already holds as current are dropped up front.
func (a *app) syncChanges(ctx context.Context, commit, force bool) error {
	a.banner("Syncing changes to the static mirror")

	all := a.detector.Candidates(ctx)
	docs := all
	if !force {
		docs = a.pending(all)
	}
	if len(docs) == 0 {
		a.printf("\n%s\n", ui.StatusSuccess("No pending changes"))
		if len(all) > 0 {
			a.printf("   %s\n", ui.Dim(fmt.Sprintf("(%d document(s) already synced and unchanged)", len(all))))
		}
		return nil
	}

	_, err := a.run(ctx, docs, sync.Options{Force: force, Commit: commit})
	return err
}

// syncFile syncs a single document given on the command line.
func (a *app) syncFile(ctx context.Context, path string, commit, force bool) error {
	doc, err := a.detector.Resolve(path)
	if err != nil {
		return err
	}
	a.banner("Syncing " + doc.RelPath)
	_, err = a.run(ctx, []detect.Document{doc}, sync.Options{Force: force, Commit: commit})
	return err
}

// auto syncs the VCS dirty set with commits enabled, then pushes the
// mirror.
func (a *app) auto(ctx context.Context, force bool) error {
	a.banner("Auto mode")

	docs := a.detector.Dirty(ctx)
	if len(docs) == 0 {
		a.printf("\n%s\n", ui.StatusSuccess("No pending changes"))
		return nil
	}
	a.printf("\nDetected %d modified document(s)\n", len(docs))

	bar, opts := a.runOptions(len(docs), sync.Options{
		Force:  force,
		Remote: a.cfg.Mirror.Remote,
		Branch: a.cfg.Mirror.Branch,
	})
	result, err := a.engine.Auto(ctx, docs, opts)
	_ = bar.Finish()
	if result != nil {
		a.summary(result)
	}
	if err != nil {
		a.printf("%s\n", ui.StatusError(err.Error()))
		return err
	}
	a.printf("%s\n", ui.StatusSuccess(fmt.Sprintf("Pushed to %s/%s", a.cfg.Mirror.Remote, a.cfg.Mirror.Branch)))
	return nil
}

func (a *app) pending(docs []detect.Document) []detect.Document {
	var out []detect.Document
	for _, doc := range docs {
		if !a.ledger.IsCurrent(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func (a *app) run(ctx context.Context, docs []detect.Document, opts sync.Options) (*sync.Result, error) {
	a.printf("\n%d document(s) to process\n", len(docs))
	if opts.Force {
		a.printf("   %s\n", ui.Dim("(force: ignoring the ledger)"))
	}

	bar, opts := a.runOptions(len(docs), opts)
	result, err := a.engine.Run(ctx, docs, opts)
	_ = bar.Finish()
	if result != nil {
		a.summary(result)
	}
	return result, err
}

// runOptions attaches per-document reporting: a progress bar on terminals,
// one line per document otherwise.
func (a *app) runOptions(n int, opts sync.Options) (*progress.Bar, sync.Options) {
	var w io.Writer = io.Discard
	if a.cfg.Output.Progress {
		w = os.Stderr
	}
	bar := progress.New(progress.Options{Max: int64(n), Description: "rendering", Writer: w})
	opts.OnResult = func(dr sync.DocResult) {
		if bar.Enabled() {
			bar.Describe(dr.Document.RelPath)
			_ = bar.Add(1)
			return
		}
		a.println(formatDocResult(dr))
	}
	return bar, opts
}

func formatDocResult(dr sync.DocResult) string {
	switch dr.Action {
	case sync.ActionSucceeded:
		line := ui.StatusSuccess(dr.Document.RelPath) + ui.Dim(" -> "+dr.URL)
		if dr.Committed {
			line += ui.Dim(" (committed)")
		}
		return line
	case sync.ActionFailed:
		msg := dr.Reason
		if dr.Error != nil {
			msg = dr.Error.Error()
		}
		return ui.StatusError(dr.Document.RelPath) + ": " + msg
	default:
		return ui.StatusSkipped(dr.Document.RelPath) + ui.Dim(" ("+dr.Reason+")")
	}
}

func (a *app) summary(result *sync.Result) {
	a.println()
	a.println(separator)
	a.println(ui.Summary(len(result.Succeeded()), len(result.Failed()), len(result.Skipped())))
	a.println(separator)
}

func (a *app) banner(title string) {
	a.println(separator)
	a.println(ui.Header(title))
	a.println(separator)
}
