package sync

import (
	"fmt"
	"strings"

	"github.com/klauern/ifcsync/internal/detect"
)

// Action is the terminal state of one document.
type Action string

const (
	// ActionSucceeded means the page was fetched and written.
	ActionSucceeded Action = "succeeded"
	// ActionFailed means the attempt failed and was recorded as such.
	ActionFailed Action = "failed"
	// ActionSkipped means nothing was attempted.
	ActionSkipped Action = "skipped"
)

// Reasons reported in DocResult.Reason.
const (
	ReasonCurrent      = "already synced and unchanged"
	ReasonUnavailable  = "render service unavailable"
	ReasonUnsupported  = "unsupported category"
	ReasonUnrecognized = "unrecognized path"
	ReasonOutsideRoots = "outside source roots"
)

// DocResult is the outcome for one document.
type DocResult struct {
	Document detect.Document
	Action   Action
	// Rule is the mapping rule that matched, if any.
	Rule string
	// URL is the render URL path, empty when unmapped.
	URL string
	// Target is the output file, empty when unmapped.
	Target string
	// Title is the rendered page title.
	Title string
	// Reason explains skips and failures.
	Reason string
	// Error holds the failure cause.
	Error error
	// Committed is true when the written page was committed.
	Committed bool
}

// Result contains the outcome of a run.
type Result struct {
	// RunID identifies the run in logs and in the ledger.
	RunID string
	// Docs holds one entry per processed document, in order.
	Docs []DocResult
	// Pushed is set by Auto after a successful push.
	Pushed bool
}

// Succeeded returns documents that were written.
func (r *Result) Succeeded() []DocResult {
	return r.filterByAction(ActionSucceeded)
}

// Failed returns documents whose attempt failed.
func (r *Result) Failed() []DocResult {
	return r.filterByAction(ActionFailed)
}

// Skipped returns documents that were not attempted.
func (r *Result) Skipped() []DocResult {
	return r.filterByAction(ActionSkipped)
}

func (r *Result) filterByAction(action Action) []DocResult {
	var filtered []DocResult
	for _, d := range r.Docs {
		if d.Action == action {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// Success returns true if no document failed.
func (r *Result) Success() bool {
	return len(r.Failed()) == 0
}

// Summary returns the one-line count summary.
func (r *Result) Summary() string {
	return fmt.Sprintf("synced: %d succeeded, %d failed, %d skipped",
		len(r.Succeeded()), len(r.Failed()), len(r.Skipped()))
}

// Report returns the summary followed by the failures, if any.
func (r *Result) Report() string {
	var sb strings.Builder
	sb.WriteString(r.Summary())
	sb.WriteString("\n")

	if !r.Success() {
		sb.WriteString("\nErrors:\n")
		for _, f := range r.Failed() {
			sb.WriteString(fmt.Sprintf("  - %s: %v\n", f.Document.RelPath, f.Error))
		}
	}
	return sb.String()
}
