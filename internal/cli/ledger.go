package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/klauern/ifcsync/internal/detect"
	"github.com/klauern/ifcsync/internal/sync"
	"github.com/klauern/ifcsync/internal/ui"
	"github.com/klauern/ifcsync/internal/ui/tui"
)

const progressRecentLimit = 10

// progress prints ledger statistics and the most recently synced documents.
// In interactive mode the ledger browser is shown instead and a document
// picked there is synced again with force.
func (a *app) progress(ctx context.Context, interactive, commit bool) error {
	stats := a.ledger.Stats()

	if interactive {
		res, err := tui.RunLedgerList(a.ledger.Recent(0), stats)
		if err != nil {
			return fmt.Errorf("ledger browser failed: %w", err)
		}
		if res.Action != tui.LedgerActionResync {
			return nil
		}
		doc, err := a.detector.Resolve(a.mapper.Abs(res.Entry.Key))
		if err != nil {
			return err
		}
		_, err = a.run(ctx, []detect.Document{doc}, sync.Options{Force: true, Commit: commit})
		return err
	}

	a.banner("Sync progress")
	a.printf("Ledger file: %s\n", a.ledger.Path())
	a.printf("Documents recorded: %d\n", stats.Total)
	a.printf("  - succeeded: %s\n", ui.Success(humanize.Comma(int64(stats.Success))))
	a.printf("  - failed:    %s\n", ui.Error(humanize.Comma(int64(stats.Failed))))
	if stats.LastSync != nil {
		a.printf("Last sync: %s (%s)\n", stats.LastSync.Local().Format("2006-01-02 15:04:05"), humanize.Time(*stats.LastSync))
	} else {
		a.println("Last sync: never")
	}

	entries := a.ledger.Recent(progressRecentLimit)
	if len(entries) > 0 {
		a.printf("\nRecently synced (up to %d):\n", progressRecentLimit)
		for _, e := range entries {
			a.printf("  %s %s %s\n", ui.Mark(e.Success), e.Key,
				ui.Dim("("+e.SyncedAt.Local().Format("2006-01-02 15:04")+")"))
		}
		if stats.Total > len(entries) {
			a.printf("  %s\n", ui.Dim(fmt.Sprintf("... and %d more", stats.Total-len(entries))))
		}
	}
	a.println(separator)
	return nil
}

// reset clears the ledger after a y/n confirmation, unless skipConfirm.
func (a *app) reset(skipConfirm bool) error {
	if !skipConfirm {
		if !a.confirm("Reset all sync progress records?") {
			a.println(ui.StatusSkipped("Cancelled"))
			return nil
		}
	}
	if err := a.ledger.Reset(); err != nil {
		return err
	}
	a.println(ui.StatusSuccess("Sync progress reset"))
	return nil
}

// confirm asks a yes/no question on the command reader. Anything other than
// y or yes, including end of input, is a no.
func (a *app) confirm(question string) bool {
	a.printf("%s %s (yes/no): ", ui.Warning(ui.SymbolWarning), question)
	reader := bufio.NewReader(a.in)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		a.println()
		return false
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// formatWindow renders a detection window in whole hours when possible.
func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
