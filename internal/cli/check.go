package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/klauern/ifcsync/internal/detect"
	"github.com/klauern/ifcsync/internal/ui"
)

// Listing limits for --check.
const (
	checkPendingLimit = 10
	checkSyncedLimit  = 5
	checkRecentLimit  = 10
)

const separator = "================================================================================"

// check lists dirty documents split by ledger state, then the recently
// modified ones with their sync mark, then the ledger totals.
func (a *app) check(ctx context.Context) {
	a.banner("Checking for pending changes")

	var pending, synced []detect.Document
	for _, doc := range a.detector.Dirty(ctx) {
		if a.ledger.IsCurrent(doc) {
			synced = append(synced, doc)
		} else {
			pending = append(pending, doc)
		}
	}

	if len(pending) > 0 {
		a.printf("\nDocuments to sync (%d):\n", len(pending))
		a.listDocs(pending, checkPendingLimit, func(doc detect.Document) string {
			return "   - " + doc.RelPath + a.ruleSuffix(doc)
		})
	} else {
		a.printf("\n%s\n", ui.StatusSuccess("Nothing to sync"))
	}

	if len(synced) > 0 {
		a.printf("\nAlready synced and unchanged (%d):\n", len(synced))
		a.listDocs(synced, checkSyncedLimit, func(doc detect.Document) string {
			return "   - " + doc.RelPath
		})
	}

	window := a.detector.Window()
	recent := a.detector.Recent(window)
	if len(recent) > 0 {
		a.printf("\nModified in the last %s (%d):\n", formatWindow(window), len(recent))
		a.listDocs(recent, checkRecentLimit, func(doc detect.Document) string {
			return "   " + ui.Mark(a.ledger.IsCurrent(doc)) + " " + doc.RelPath +
				" (" + doc.ModTime.Format("2006-01-02 15:04") + ")"
		})
	}

	stats := a.ledger.Stats()
	a.println()
	a.println(strings.Repeat("-", len(separator)))
	a.printf("Ledger: %d document(s) recorded, %d succeeded\n", stats.Total, stats.Success)
	a.printf("Render service: %s\n", a.render.BaseURL())
	a.println()
	a.println(separator)
}

func (a *app) listDocs(docs []detect.Document, limit int, line func(detect.Document) string) {
	for i, doc := range docs {
		if i == limit {
			a.printf("   %s\n", ui.Dim(fmt.Sprintf("... and %d more", len(docs)-limit)))
			return
		}
		a.println(line(doc))
	}
}

// ruleSuffix names the mapping rule, or why there is none.
func (a *app) ruleSuffix(doc detect.Document) string {
	m, reason := a.mapper.Map(doc.RelPath)
	if m.URL != "" {
		return ui.Dim(" [" + m.Rule + "]")
	}
	return ui.Dim(" [" + string(reason) + "]")
}
