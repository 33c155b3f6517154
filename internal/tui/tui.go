// Package tui provides a Bubble Tea TUI for browsing a session record.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/guntarion/convlog/internal/mdlog"
	"github.com/guntarion/convlog/internal/session"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	// Section heading inside a tab
	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	kindPromptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindAgentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	kindSubagentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabPrompts
	tabResponses
	tabFiles
	tabTimeline
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Prompts", "Responses", "Files", "Timeline",
}

// ── Timeline event ───────────────────

type eventKind string

const (
	kindPrompt   eventKind = "PROMPT"
	kindAgent    eventKind = "AGENT"
	kindSubagent eventKind = "SUBAGENT"
)

type timelineEvent struct {
	ts   time.Time
	kind eventKind
	text string
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	rec       *session.Record
	root      string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	timeline  []timelineEvent
}

// New creates a TUI model for rec. root is the project root, used to show
// tracked files relative to it.
func New(rec *session.Record, root string) Model {
	return Model{
		rec:      rec,
		root:     root,
		sortAsc:  true,
		timeline: buildTimeline(rec),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3", "4", "5":
			m.activeTab = tabID(msg.String()[0] - '1')
			return m, nil
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				if m.ready {
					m.viewports[tabTimeline].SetContent(m.renderTab(tabTimeline))
					m.viewports[tabTimeline].GotoTop()
				}
			}
			return m, nil
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	status := "active"
	if m.rec.Finalized {
		status = "finalized"
	}
	title := titleStyle.Width(m.width).Render("  convlog  " + m.rec.SessionID + "  (" + status + ")")

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-5 jump  q quit"
	if m.activeTab == tabTimeline {
		dir := "newest first"
		if m.sortAsc {
			dir = "oldest first"
		}
		hint += "  s sort (" + dir + ")"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabPrompts:
		return m.renderPrompts()
	case tabResponses:
		return m.renderResponses()
	case tabFiles:
		return m.renderFiles()
	case tabTimeline:
		return m.renderTimeline()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func (m *Model) renderSummary() string {
	r := m.rec
	var sb strings.Builder
	sb.WriteString(heading("Session Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Session:", r.SessionID)
	row("Log File:", r.LogFile)
	row("Started:", r.StartTime.Format("2006-01-02 15:04:05 MST"))
	row("Updated:", r.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	if r.EndTime != nil {
		row("Ended:", r.EndTime.Format("2006-01-02 15:04:05 MST"))
		row("Duration:", mdlog.FormatDuration(r.EndTime.Sub(r.StartTime)))
	}
	row("Finalized:", fmt.Sprintf("%t", r.Finalized))

	sb.WriteString("\n")
	sb.WriteString(heading("Counts"))
	row("Prompts:", fmt.Sprintf("%d", len(r.Prompts)))
	row("Agent:", fmt.Sprintf("%d", r.CountResponses(session.ResponseAgent)))
	row("Sub-agent:", fmt.Sprintf("%d", r.CountResponses(session.ResponseSubagent)))
	row("Files:", fmt.Sprintf("%d", len(r.FileChanges)))
	return sb.String()
}

func (m *Model) renderPrompts() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Prompts (%d)", len(m.rec.Prompts))))
	if len(m.rec.Prompts) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, p := range m.rec.Prompts {
		ts := timeStyle.Render(p.Timestamp.Format("15:04:05"))
		sb.WriteString(fmt.Sprintf("  %s\n%s\n\n", ts, indent(p.Content, "    ")))
	}
	return sb.String()
}

func (m *Model) renderResponses() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Responses (%d)", len(m.rec.Responses))))
	if len(m.rec.Responses) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, r := range m.rec.Responses {
		ts := timeStyle.Render(r.Timestamp.Format("15:04:05"))
		badge := kindAgentStyle.Render("[agent]")
		if r.Type == session.ResponseSubagent {
			badge = kindSubagentStyle.Render("[sub-agent]")
		}
		sb.WriteString(fmt.Sprintf("  %s  %s\n%s\n\n", ts, badge, indent(r.Content, "    ")))
	}
	return sb.String()
}

func (m *Model) renderFiles() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Files (%d)", len(m.rec.FileChanges))))
	if len(m.rec.FileChanges) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	files := make([]string, len(m.rec.FileChanges))
	for i, f := range m.rec.FileChanges {
		files[i] = stripWorkDir(f, m.root)
	}
	sort.Strings(files)
	for _, f := range files {
		sb.WriteString(bullet(f))
	}
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder

	dir := "newest first"
	if m.sortAsc {
		dir = "oldest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	events := make([]timelineEvent, len(m.timeline))
	copy(events, m.timeline)
	if m.sortAsc {
		sort.SliceStable(events, func(i, j int) bool { return events[i].ts.Before(events[j].ts) })
	} else {
		sort.SliceStable(events, func(i, j int) bool { return events[i].ts.After(events[j].ts) })
	}

	if len(events) == 0 {
		sb.WriteString(dimStyle.Render("  (no events in this session)") + "\n")
		return sb.String()
	}

	for _, ev := range events {
		ts := timeStyle.Render(ev.ts.Format("15:04:05"))
		var badge string
		switch ev.kind {
		case kindPrompt:
			badge = kindPromptStyle.Render(fmt.Sprintf("  %-9s", string(ev.kind)))
		case kindAgent:
			badge = kindAgentStyle.Render(fmt.Sprintf("  %-9s", string(ev.kind)))
		case kindSubagent:
			badge = kindSubagentStyle.Render(fmt.Sprintf("  %-9s", string(ev.kind)))
		}
		sb.WriteString(ts + badge + "  " + firstLine(ev.text) + "\n\n")
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func buildTimeline(r *session.Record) []timelineEvent {
	var events []timelineEvent
	for _, p := range r.Prompts {
		events = append(events, timelineEvent{ts: p.Timestamp, kind: kindPrompt, text: p.Content})
	}
	for _, resp := range r.Responses {
		k := kindAgent
		if resp.Type == session.ResponseSubagent {
			k = kindSubagent
		}
		events = append(events, timelineEvent{ts: resp.Timestamp, kind: k, text: resp.Content})
	}
	return events
}

// stripWorkDir removes the workDir prefix from path, returning a relative path.
// If path doesn't start with workDir, it's returned unchanged.
func stripWorkDir(path, workDir string) string {
	if workDir == "" {
		return path
	}
	prefix := workDir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if strings.HasPrefix(path, prefix) {
		return path[len(prefix):]
	}
	return path
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// Run starts the TUI for the given record.
func Run(rec *session.Record, root string) error {
	p := tea.NewProgram(New(rec, root), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
