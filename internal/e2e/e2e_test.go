package e2e_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/klauern/ifcsync/internal/e2e"
)

const (
	trimmedCurve    = "docs_zh/schemas/resource/IfcGeometryResource/Entities/IfcTrimmedCurve.md"
	trimmedCurveURL = "/IFC/RELEASE/IFC4x3/HTML/lexical/IfcTrimmedCurve.htm"
	counterSlope    = "docs_zh/properties/c/CounterSlope.md"
	counterSlopeURL = "/IFC/RELEASE/IFC4x3/HTML/property/CounterSlope.htm"
	introduction    = "content_zh/introduction.md"
	introductionURL = "/IFC/RELEASE/IFC4x3/HTML/content/introduction.htm"
)

func TestVersionCommand(t *testing.T) {
	h := e2e.NewHarness(t)

	result := h.Run("version")

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "ifcsync version")
}

func TestNoActionShowsHelp(t *testing.T) {
	h := e2e.NewHarness(t)

	result := h.Run()

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "--auto")
	e2e.AssertOutputContains(t, result, "--progress")
}

func TestFileSyncWritesMirrorPage(t *testing.T) {
	h := e2e.NewHarness(t)
	path := h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")

	result := h.Run("--file", path, "--no-commit")

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "synced: 1 succeeded, 0 failed, 0 skipped")
	e2e.AssertFileContains(t, h.Mirror().Path(strings.TrimPrefix(trimmedCurveURL, "/")), "rendered")

	if got := h.Requests(); len(got) != 1 || got[0] != trimmedCurveURL {
		t.Errorf("expected one request for %s, got %v", trimmedCurveURL, got)
	}
	if log := h.MirrorLog(); len(log) != 0 {
		t.Errorf("--no-commit should not commit, got %v", log)
	}
}

func TestFileSyncCommitsByDefault(t *testing.T) {
	h := e2e.NewHarness(t)
	path := h.Source().WriteDoc(counterSlope, "CounterSlope", "反坡")

	result := h.Run("--file", path)

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "(committed)")

	log := h.MirrorLog()
	if len(log) != 1 {
		t.Fatalf("expected one mirror commit, got %v", log)
	}
	if !strings.HasPrefix(log[0], "feat: sync rendered CounterSlope\n\nSource: "+counterSlope+"\n") {
		t.Errorf("unexpected commit message %q", log[0])
	}
}

func TestSecondRunSkipsUnchangedDocuments(t *testing.T) {
	h := e2e.NewHarness(t)
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")

	first := h.Run("--sync", "--no-commit")
	e2e.AssertSuccess(t, first)
	e2e.AssertOutputContains(t, first, "synced: 1 succeeded")

	second := h.Run("--sync", "--no-commit")
	e2e.AssertSuccess(t, second)
	e2e.AssertOutputContains(t, second, "No pending changes")

	if got := len(h.Requests()); got != 1 {
		t.Errorf("expected the page to be fetched once, got %d", got)
	}

	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线（已更新）")
	third := h.Run("--sync", "--no-commit")
	e2e.AssertSuccess(t, third)
	e2e.AssertOutputContains(t, third, "synced: 1 succeeded")
}

func TestHTTPErrorFailsOneDocument(t *testing.T) {
	h := e2e.NewHarness(t)
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")
	h.Source().WriteDoc(introduction, "简介", "正文")
	h.RespondWith(trimmedCurveURL, http.StatusInternalServerError)

	result := h.Run("--sync", "--no-commit")

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "synced: 1 succeeded, 1 failed, 0 skipped")
	e2e.AssertOutputContains(t, result, "HTTP 500")
	if !h.Mirror().Exists(strings.TrimPrefix(introductionURL, "/")) {
		t.Error("the healthy document should still be written")
	}

	progress := h.Run("--progress")
	e2e.AssertSuccess(t, progress)
	e2e.AssertOutputContains(t, progress, "Documents recorded: 2")
}

func TestRenderServiceDown(t *testing.T) {
	h := e2e.NewHarness(t, e2e.WithRenderDown())
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")
	h.Source().WriteDoc(introduction, "简介", "正文")

	result := h.Run("--sync", "--no-commit")

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "synced: 0 succeeded, 2 failed, 0 skipped")
	e2e.AssertOutputContains(t, result, "render service unavailable")
}

func TestCheckListsDirtyDocuments(t *testing.T) {
	h := e2e.NewHarness(t)
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")
	h.CommitSource("docs: add IfcTrimmedCurve")
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线（已更新）")

	result := h.Run("--check")

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "Documents to sync (1)")
	e2e.AssertOutputContains(t, result, trimmedCurve+" [lexical]")
	e2e.AssertOutputContains(t, result, "Ledger: 0 document(s) recorded")
}

func TestAutoCommitsThenReportsPushFailure(t *testing.T) {
	h := e2e.NewHarness(t)
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")
	h.Source().WriteDoc(counterSlope, "CounterSlope", "反坡")
	h.CommitSource("docs: baseline")
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线（已更新）")

	// the mirror has no origin remote
	result := h.Run("--auto")

	e2e.AssertExitCode(t, result, 1)
	e2e.AssertErrorContains(t, result, "push to origin/main failed")
	e2e.AssertOutputContains(t, result, "synced: 1 succeeded, 0 failed, 0 skipped")

	log := h.MirrorLog()
	if len(log) != 1 || !strings.HasPrefix(log[0], "feat: sync rendered IfcTrimmedCurve") {
		t.Errorf("expected one commit for the dirty document, got %v", log)
	}
	if got := h.Requests(); len(got) != 1 || got[0] != trimmedCurveURL {
		t.Errorf("only the dirty document should be rendered, got %v", got)
	}
}

func TestAutoWithoutChanges(t *testing.T) {
	h := e2e.NewHarness(t)
	h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")
	h.CommitSource("docs: baseline")

	result := h.Run("--auto")

	e2e.AssertSuccess(t, result)
	e2e.AssertOutputContains(t, result, "No pending changes")
}

func TestResetProgressPrompt(t *testing.T) {
	h := e2e.NewHarness(t)
	path := h.Source().WriteDoc(trimmedCurve, "IfcTrimmedCurve", "修剪曲线")
	e2e.AssertSuccess(t, h.Run("--file", path, "--no-commit"))

	declined := h.RunWithStdin("n\n", "--reset-progress")
	e2e.AssertSuccess(t, declined)
	e2e.AssertOutputContains(t, declined, "Cancelled")
	e2e.AssertOutputContains(t, h.Run("--progress"), "Documents recorded: 1")

	accepted := h.RunWithStdin("y\n", "--reset-progress")
	e2e.AssertSuccess(t, accepted)
	e2e.AssertOutputContains(t, accepted, "Sync progress reset")

	progress := h.Run("--progress")
	e2e.AssertOutputContains(t, progress, "Documents recorded: 0")
	e2e.AssertOutputNotContains(t, progress, trimmedCurve)
}

func TestInvalidConfigFails(t *testing.T) {
	h := e2e.NewHarness(t)
	t.Setenv("IFCSYNC_VCS_BACKEND", "svn")

	result := h.Run("--check")

	e2e.AssertExitCode(t, result, 1)
	e2e.AssertErrorContains(t, result, "invalid configuration")
}
