package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/klauern/ifcsync/internal/ledger"
)

// LedgerAction represents the action to perform on a selected ledger entry.
type LedgerAction int

const (
	// LedgerActionNone means no action was taken (user quit).
	LedgerActionNone LedgerAction = iota
	// LedgerActionResync means the user wants the selected document synced
	// again, ignoring the ledger.
	LedgerActionResync
)

// LedgerListResult contains the result of the ledger browser interaction.
type LedgerListResult struct {
	Action LedgerAction
	Entry  ledger.Entry
}

// ledgerFilter narrows entries by outcome.
type ledgerFilter int

const (
	showAll ledgerFilter = iota
	showSucceeded
	showFailed
)

func (f ledgerFilter) String() string {
	switch f {
	case showSucceeded:
		return "succeeded"
	case showFailed:
		return "failed"
	default:
		return "all"
	}
}

type ledgerListKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Resync   key.Binding
	Outcome  key.Binding
	Filter   key.Binding
	ClearFlt key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultLedgerListKeyMap() ledgerListKeyMap {
	return ledgerListKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Resync: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resync"),
		),
		Outcome: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle outcome"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		ClearFlt: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// LedgerListModel is the BubbleTea model for browsing sync ledger entries.
type LedgerListModel struct {
	table       table.Model
	entries     []ledger.Entry
	filtered    []ledger.Entry
	stats       ledger.Stats
	keys        ledgerListKeyMap
	result      LedgerListResult
	filter      string
	outcome     ledgerFilter
	filtering   bool
	showHelp    bool
	confirmMode bool
	confirmMsg  string
	now         func() time.Time
	quitting    bool
}

var ledgerListStyles = struct {
	Title       lipgloss.Style
	Help        lipgloss.Style
	Filter      lipgloss.Style
	FilterInput lipgloss.Style
	Confirm     lipgloss.Style
	Status      lipgloss.Style
}{
	Title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Filter:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	FilterInput: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
	Confirm:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Padding(1, 2),
	Status:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
}

// NewLedgerListModel creates a ledger browser over entries.
func NewLedgerListModel(entries []ledger.Entry, stats ledger.Stats) LedgerListModel {
	columns := []table.Column{
		{Title: "", Width: 2},
		{Title: "Document", Width: 44},
		{Title: "Synced", Width: 16},
		{Title: "Target", Width: 40},
	}

	m := LedgerListModel{
		entries:  entries,
		filtered: entries,
		stats:    stats,
		keys:     defaultLedgerListKeyMap(),
		now:      time.Now,
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(m.entriesToRows(entries)),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	m.table = t

	return m
}

func (m LedgerListModel) entriesToRows(entries []ledger.Entry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		mark := "✓"
		if !e.Success {
			mark = "✗"
		}
		rows[i] = table.Row{
			mark,
			shortenLeft(e.Key, 44),
			humanize.RelTime(e.SyncedAt, m.now(), "ago", "from now"),
			shortenLeft(e.Target, 40),
		}
	}
	return rows
}

// shortenLeft keeps the tail of a path, which carries the document name.
func shortenLeft(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return "..." + s[len(s)-(width-3):]
}

// Init implements tea.Model.
func (m LedgerListModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m LedgerListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		newHeight := msg.Height - 8
		if newHeight < 5 {
			newHeight = 5
		}
		m.table.SetHeight(newHeight)

	case tea.KeyMsg:
		if m.confirmMode {
			switch msg.String() {
			case "y", "Y":
				m.quitting = true
				return m, tea.Quit
			case "n", "N", "esc":
				m.confirmMode = false
				m.confirmMsg = ""
				m.result = LedgerListResult{}
				return m, nil
			}
			return m, nil
		}

		if m.filtering {
			switch msg.String() {
			case "enter":
				m.filtering = false
			case "esc":
				m.filter = ""
				m.filtering = false
				m.applyFilter()
			case "backspace":
				if len(m.filter) > 0 {
					m.filter = m.filter[:len(m.filter)-1]
					m.applyFilter()
				}
			default:
				if len(msg.String()) == 1 {
					m.filter += msg.String()
					m.applyFilter()
				}
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Filter):
			m.filtering = true
			return m, nil

		case key.Matches(msg, m.keys.ClearFlt):
			m.filter = ""
			m.outcome = showAll
			m.applyFilter()
			return m, nil

		case key.Matches(msg, m.keys.Outcome):
			m.outcome = (m.outcome + 1) % 3
			m.applyFilter()
			return m, nil

		case key.Matches(msg, m.keys.Resync):
			if len(m.filtered) > 0 {
				selected := m.selectedEntry()
				m.result = LedgerListResult{Action: LedgerActionResync, Entry: selected}
				m.confirmMode = true
				m.confirmMsg = fmt.Sprintf("Resync %s? (y/n)", selected.Key)
			}
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *LedgerListModel) applyFilter() {
	lowerFilter := strings.ToLower(m.filter)
	var filtered []ledger.Entry
	for _, e := range m.entries {
		if m.outcome == showSucceeded && !e.Success {
			continue
		}
		if m.outcome == showFailed && e.Success {
			continue
		}
		if lowerFilter != "" &&
			!strings.Contains(strings.ToLower(e.Key), lowerFilter) &&
			!strings.Contains(strings.ToLower(e.Target), lowerFilter) {
			continue
		}
		filtered = append(filtered, e)
	}
	m.filtered = filtered
	m.table.SetRows(m.entriesToRows(m.filtered))
}

func (m LedgerListModel) selectedEntry() ledger.Entry {
	cursor := m.table.Cursor()
	if cursor >= 0 && cursor < len(m.filtered) {
		return m.filtered[cursor]
	}
	return ledger.Entry{}
}

// View implements tea.Model.
func (m LedgerListModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(ledgerListStyles.Title.Render("IFC Sync Ledger"))
	b.WriteString("\n\n")

	if m.filter != "" || m.filtering {
		filterVal := ledgerListStyles.FilterInput.Render(m.filter)
		if m.filtering {
			filterVal += "█"
		}
		b.WriteString(ledgerListStyles.Filter.Render("Filter: ") + filterVal + "\n\n")
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.confirmMode {
		b.WriteString("\n")
		b.WriteString(ledgerListStyles.Confirm.Render(m.confirmMsg))
		return b.String()
	}

	b.WriteString(ledgerListStyles.Status.Render(m.statusLine()))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderFullHelp())
	} else {
		b.WriteString(m.renderShortHelp())
	}

	return b.String()
}

func (m LedgerListModel) statusLine() string {
	title := cases.Title(language.English)
	status := fmt.Sprintf("%d of %d document(s), %s: %d succeeded, %d failed",
		len(m.filtered), m.stats.Total, title.String(m.outcome.String()),
		m.stats.Success, m.stats.Failed)
	if m.stats.LastSync != nil {
		status += ", last sync " + humanize.RelTime(*m.stats.LastSync, m.now(), "ago", "from now")
	}
	return status
}

func (m LedgerListModel) renderShortHelp() string {
	keys := []string{
		"↑/↓ navigate",
		"r resync",
		"tab outcome",
		"/ filter",
		"? help",
		"q quit",
	}
	return ledgerListStyles.Help.Render(strings.Join(keys, " • "))
}

func (m LedgerListModel) renderFullHelp() string {
	help := `Navigation:
  ↑/k      Move up
  ↓/j      Move down

Actions:
  r        Resync selected document
  Tab      Cycle all / succeeded / failed

Filter:
  /        Start filtering
  Esc      Clear filters
  Enter    Finish filtering

General:
  ?        Toggle full help
  q        Quit`
	return ledgerListStyles.Help.Render(help)
}

// Result returns the result of the user interaction.
func (m LedgerListModel) Result() LedgerListResult {
	return m.result
}

// RunLedgerList runs the interactive ledger browser and returns the result.
func RunLedgerList(entries []ledger.Entry, stats ledger.Stats) (LedgerListResult, error) {
	if len(entries) == 0 {
		return LedgerListResult{}, nil
	}

	finalModel, err := Run(NewLedgerListModel(entries, stats), tea.WithAltScreen())
	if err != nil {
		return LedgerListResult{}, err
	}

	if m, ok := finalModel.(LedgerListModel); ok {
		return m.Result(), nil
	}
	return LedgerListResult{}, nil
}
