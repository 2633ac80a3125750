package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/klauern/ifcsync/internal/ledger"
)

func testEntries() []ledger.Entry {
	now := time.Now()
	return []ledger.Entry{
		{
			Key: "docs_zh/schemas/resource/IfcGeometryResource/Entities/IfcTrimmedCurve/README.md",
			Record: ledger.Record{
				Target:   "IFC/RELEASE/IFC4x3/HTML/lexical/IfcTrimmedCurve.html",
				SyncedAt: now.Add(-2 * time.Hour),
				Success:  true,
			},
		},
		{
			Key: "content_zh/introduction.md",
			Record: ledger.Record{
				Target:   "IFC/RELEASE/IFC4x3/HTML/content/introduction.html",
				SyncedAt: now.Add(-time.Hour),
				Success:  false,
			},
		},
	}
}

func testStats() ledger.Stats {
	return ledger.Stats{Total: 2, Success: 1, Failed: 1}
}

func TestNewLedgerListModel(t *testing.T) {
	model := NewLedgerListModel(testEntries(), testStats())

	if len(model.entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(model.entries))
	}
	if len(model.filtered) != 2 {
		t.Errorf("expected 2 filtered entries, got %d", len(model.filtered))
	}
	if cmd := model.Init(); cmd != nil {
		t.Error("expected nil command from Init")
	}
}

func TestLedgerListModel_Rows(t *testing.T) {
	model := NewLedgerListModel(testEntries(), testStats())
	rows := model.entriesToRows(model.entries)

	if rows[0][0] != "✓" || rows[1][0] != "✗" {
		t.Errorf("unexpected marks %q %q", rows[0][0], rows[1][0])
	}
	if !strings.HasPrefix(rows[0][1], "...") || !strings.HasSuffix(rows[0][1], "README.md") {
		t.Errorf("long key should keep its tail, got %q", rows[0][1])
	}
	if !strings.HasSuffix(rows[1][2], "ago") {
		t.Errorf("expected relative time, got %q", rows[1][2])
	}
}

func TestLedgerListModel_Filter(t *testing.T) {
	model := NewLedgerListModel(testEntries(), testStats())
	model.filter = "trimmed"
	model.applyFilter()

	if len(model.filtered) != 1 {
		t.Fatalf("expected 1 filtered entry, got %d", len(model.filtered))
	}
	if !strings.Contains(model.filtered[0].Key, "IfcTrimmedCurve") {
		t.Errorf("unexpected entry %q", model.filtered[0].Key)
	}

	model.filter = ""
	model.applyFilter()
	if len(model.filtered) != 2 {
		t.Errorf("expected 2 entries after clearing filter, got %d", len(model.filtered))
	}
}

func TestLedgerListModel_OutcomeCycle(t *testing.T) {
	var m tea.Model = NewLedgerListModel(testEntries(), testStats())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	lm := m.(LedgerListModel)
	if lm.outcome != showSucceeded || len(lm.filtered) != 1 || !lm.filtered[0].Success {
		t.Errorf("expected only succeeded entries, got %+v", lm.filtered)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	lm = m.(LedgerListModel)
	if lm.outcome != showFailed || len(lm.filtered) != 1 || lm.filtered[0].Success {
		t.Errorf("expected only failed entries, got %+v", lm.filtered)
	}
	if !strings.Contains(lm.statusLine(), "Failed") {
		t.Errorf("status line should name the outcome, got %q", lm.statusLine())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.(LedgerListModel); got.outcome != showAll || len(got.filtered) != 2 {
		t.Errorf("expected all entries after a full cycle")
	}
}

func TestLedgerListModel_FilterTyping(t *testing.T) {
	var m tea.Model = NewLedgerListModel(testEntries(), testStats())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	for _, r := range "intro" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	lm := m.(LedgerListModel)
	if lm.filter != "intro" || len(lm.filtered) != 1 {
		t.Errorf("filter = %q, filtered = %d", lm.filter, len(lm.filtered))
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	lm = m.(LedgerListModel)
	if lm.filtering || lm.filter != "" || len(lm.filtered) != 2 {
		t.Errorf("esc should clear the filter, got %q (%d)", lm.filter, len(lm.filtered))
	}
}

func TestLedgerListModel_ResyncConfirm(t *testing.T) {
	var m tea.Model = NewLedgerListModel(testEntries(), testStats())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	lm := m.(LedgerListModel)
	if !lm.confirmMode {
		t.Fatal("expected confirmation prompt")
	}
	if !strings.Contains(lm.View(), "Resync") {
		t.Error("view should show the confirmation")
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	lm = m.(LedgerListModel)
	if cmd == nil {
		t.Error("expected quit command after confirming")
	}
	res := lm.Result()
	if res.Action != LedgerActionResync || res.Entry.Key != testEntries()[0].Key {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestLedgerListModel_ResyncDeclined(t *testing.T) {
	var m tea.Model = NewLedgerListModel(testEntries(), testStats())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	lm := m.(LedgerListModel)
	if lm.confirmMode {
		t.Error("expected confirmation to close")
	}
	if lm.Result().Action != LedgerActionNone {
		t.Errorf("declined resync should leave no action, got %v", lm.Result().Action)
	}
}

func TestLedgerListModel_Quit(t *testing.T) {
	model := NewLedgerListModel(testEntries(), testStats())

	newModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m := newModel.(LedgerListModel)
	if !m.quitting {
		t.Error("expected quitting after q")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	if m.View() != "" {
		t.Error("expected empty view when quitting")
	}
	if m.Result().Action != LedgerActionNone {
		t.Errorf("expected no action, got %v", m.Result().Action)
	}
}

func TestLedgerListModel_EmptyView(t *testing.T) {
	model := NewLedgerListModel(nil, ledger.Stats{})
	view := model.View()
	if !strings.Contains(view, "IFC Sync Ledger") {
		t.Errorf("expected title in view, got %q", view)
	}
	if !strings.Contains(view, "0 of 0") {
		t.Errorf("expected empty status, got %q", view)
	}
}

func TestRunLedgerList_Empty(t *testing.T) {
	res, err := RunLedgerList(nil, ledger.Stats{})
	if err != nil {
		t.Fatalf("RunLedgerList() error = %v", err)
	}
	if res.Action != LedgerActionNone {
		t.Errorf("expected no action, got %v", res.Action)
	}
}

func TestShortenLeft(t *testing.T) {
	if got := shortenLeft("short.md", 20); got != "short.md" {
		t.Errorf("shortenLeft() = %q", got)
	}
	got := shortenLeft("content_zh/a/very/long/path/doc.md", 12)
	if len(got) != 12 || !strings.HasSuffix(got, "doc.md") {
		t.Errorf("shortenLeft() = %q", got)
	}
}
