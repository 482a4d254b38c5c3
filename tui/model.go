// Package tui is a live terminal dashboard for AMP traffic: it connects
// to an ampd web.Server's /events stream and renders each MonitorEvent
// as it arrives. Same Bubble Tea model/list/inspector shape as a SQL
// query monitor TUI, generalized from per-query rows (with transaction
// grouping, EXPLAIN, and analytics panes) down to a flat stream of
// protocol events, since AMP has no transactions, query plans, or
// aggregate query analytics to show.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/goamp/amp/clipboard"
)

type viewMode int

const (
	viewList viewMode = iota
	viewInspect
)

type sortMode int

const (
	sortChronological sortMode = iota
	sortDuration
)

// Model is the Bubble Tea model for the amp dashboard.
type Model struct {
	target string
	stream *sseStream

	events  []monitorEvent
	visible []int // indices into events passing the current filter/search
	cursor  int
	follow  bool
	width   int
	height  int
	err     error
	view    viewMode

	searchMode   bool
	searchQuery  string
	searchCursor int
	filterMode   bool
	filterQuery  string
	filterCursor int
	sortMode     sortMode

	inspectScroll int
}

type eventMsg struct{ Event monitorEvent }
type errMsg struct{ Err error }
type connectedMsg struct{ stream *sseStream }

// New creates a new Model targeting the given ampd web.Server /events URL.
func New(target string) Model {
	return Model{
		target: target,
		follow: true,
	}
}

// Init starts the SSE connection.
func (m Model) Init() tea.Cmd {
	return connect(m.target)
}

func connect(target string) tea.Cmd {
	return func() tea.Msg {
		s, err := dialSSE(target)
		if err != nil {
			return errMsg{Err: err}
		}
		return connectedMsg{stream: s}
	}
}

func recvEvent(s *sseStream) tea.Cmd {
	return func() tea.Msg {
		ev, err := s.next()
		if err != nil {
			return errMsg{Err: err}
		}
		return eventMsg{Event: ev}
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectedMsg:
		m.stream = msg.stream
		return m, recvEvent(msg.stream)

	case eventMsg:
		m.events = append(m.events, msg.Event)
		m.visible = m.rebuildVisible()
		if m.follow {
			m.cursor = max(len(m.visible)-1, 0)
		}
		return m, recvEvent(m.stream)

	case errMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case viewInspect:
			return m.updateInspect(msg)
		case viewList:
			return m.updateList(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.err != nil {
		return friendlyError(m.err, m.width)
	}

	if len(m.events) == 0 {
		return "Waiting for events..."
	}

	if m.view == viewInspect {
		return m.renderInspector()
	}

	var footer string
	switch {
	case m.searchMode:
		footer = "  / " + renderInputWithCursor(m.searchQuery, m.searchCursor)
	case m.filterMode:
		footer = "  filter: " + renderInputWithCursor(m.filterQuery, m.filterCursor)
	default:
		items := []string{
			"q: quit", "j/k: navigate",
			"enter: inspect", "c: copy fields",
			"/: search", "f: filter", "s: sort",
		}
		footer = wrapFooterItems(items, m.width)
		if m.filterQuery != "" {
			footer += "\n  " + fmt.Sprintf("[filter: %s]", describeFilter(m.filterQuery))
		}
		if m.searchQuery != "" || m.filterQuery != "" {
			footer += "  esc: clear"
		}
		if m.sortMode == sortDuration {
			footer += "  [sorted: duration]"
		}
	}

	footerLines := strings.Count(footer, "\n") + 1
	listHeight := m.listHeight(footerLines)

	return strings.Join([]string{
		m.renderList(listHeight),
		m.renderPreview(),
		footer,
	}, "\n")
}

func (m Model) listHeight(footerLines int) int {
	extra := max(footerLines-1, 0)
	return max(m.height-12-extra, 3)
}

func (m Model) rebuildVisible() []int {
	var conds []filterCondition
	if m.filterQuery != "" {
		conds = parseFilter(m.filterQuery)
	}
	searchLower := strings.ToLower(m.searchQuery)

	var rows []int
	for i, ev := range m.events {
		if len(conds) > 0 && !matchAllConditions(ev, conds) {
			continue
		}
		if searchLower != "" && !strings.Contains(strings.ToLower(ev.Command), searchLower) {
			continue
		}
		rows = append(rows, i)
	}

	if m.sortMode == sortDuration {
		sort.SliceStable(rows, func(a, b int) bool {
			return m.events[rows[a]].DurationMs > m.events[rows[b]].DurationMs
		})
	}
	return rows
}

func (m Model) cursorEvent() *monitorEvent {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return nil
	}
	return &m.events[m.visible[m.cursor]]
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode {
		return m.updateSearch(msg)
	}
	if m.filterMode {
		return m.updateFilter(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if m.stream != nil {
			m.stream.close()
		}
		return m, tea.Quit
	case "enter":
		if len(m.visible) > 0 {
			m.view = viewInspect
			m.inspectScroll = 0
		}
		return m, nil
	case "c":
		return m.copyFields(), nil
	case "/":
		m.searchMode = true
		m.searchQuery = ""
		m.searchCursor = 0
		return m, nil
	case "f":
		m.filterMode = true
		m.filterQuery = ""
		m.filterCursor = 0
		return m, nil
	case "s":
		return m.toggleSort(), nil
	case "esc":
		return m.clearFilter(), nil
	case "j", "down":
		return m.navigateCursor(msg.String()), nil
	case "k", "up":
		return m.navigateCursor(msg.String()), nil
	case "ctrl+d", "pgdown":
		return m.pageScroll(msg.String()), nil
	case "ctrl+u", "pgup":
		return m.pageScroll(msg.String()), nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		return m, nil
	case "esc":
		m.searchMode = false
		m.searchQuery = ""
		m.visible = m.rebuildVisible()
		m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
		return m, nil
	case "backspace":
		if m.searchCursor > 0 {
			runes := []rune(m.searchQuery)
			m.searchQuery = string(runes[:m.searchCursor-1]) + string(runes[m.searchCursor:])
			m.searchCursor--
			m.visible = m.rebuildVisible()
			m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
		}
		return m, nil
	case "ctrl+c":
		if m.stream != nil {
			m.stream.close()
		}
		return m, tea.Quit
	case "left":
		if m.searchCursor > 0 {
			m.searchCursor--
		}
		return m, nil
	case "right":
		if m.searchCursor < len([]rune(m.searchQuery)) {
			m.searchCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}

	runes := []rune(m.searchQuery)
	m.searchQuery = string(runes[:m.searchCursor]) + string(r) + string(runes[m.searchCursor:])
	m.searchCursor += len(r)
	m.visible = m.rebuildVisible()
	m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterMode = false
		return m, nil
	case "esc":
		m.filterMode = false
		m.filterQuery = ""
		m.visible = m.rebuildVisible()
		m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
		return m, nil
	case "backspace":
		if m.filterCursor > 0 {
			runes := []rune(m.filterQuery)
			m.filterQuery = string(runes[:m.filterCursor-1]) + string(runes[m.filterCursor:])
			m.filterCursor--
			m.visible = m.rebuildVisible()
			m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
		}
		return m, nil
	case "ctrl+c":
		if m.stream != nil {
			m.stream.close()
		}
		return m, tea.Quit
	case "left":
		if m.filterCursor > 0 {
			m.filterCursor--
		}
		return m, nil
	case "right":
		if m.filterCursor < len([]rune(m.filterQuery)) {
			m.filterCursor++
		}
		return m, nil
	case "up", "down":
		return m.navigateCursor(msg.String()), nil
	}

	r := msg.Runes
	if len(r) == 0 {
		return m, nil
	}

	runes := []rune(m.filterQuery)
	m.filterQuery = string(runes[:m.filterCursor]) + string(r) + string(runes[m.filterCursor:])
	m.filterCursor += len(r)
	m.visible = m.rebuildVisible()
	m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
	return m, nil
}

func (m Model) pageScroll(key string) Model {
	half := max(m.listHeight(1)/2, 1)
	switch key {
	case "ctrl+d", "pgdown":
		m.cursor = min(m.cursor+half, max(len(m.visible)-1, 0))
		if len(m.visible) > 0 && m.cursor == len(m.visible)-1 {
			m.follow = true
		}
	case "ctrl+u", "pgup":
		m.cursor = max(m.cursor-half, 0)
		m.follow = false
	}
	return m
}

func (m Model) navigateCursor(key string) Model {
	switch key {
	case "up":
		if m.cursor > 0 {
			m.cursor--
			m.follow = false
		}
	case "down":
		if len(m.visible) > 0 && m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		if len(m.visible) > 0 && m.cursor == len(m.visible)-1 {
			m.follow = true
		}
	}
	return m
}

func (m Model) copyFields() Model {
	ev := m.cursorEvent()
	if ev == nil {
		return m
	}
	_ = clipboard.Copy(context.Background(), fieldsToText(*ev))
	return m
}

func (m Model) toggleSort() Model {
	switch m.sortMode {
	case sortChronological:
		m.sortMode = sortDuration
		m.follow = false
	case sortDuration:
		m.sortMode = sortChronological
	}
	m.visible = m.rebuildVisible()
	m.cursor = 0
	return m
}

func (m Model) clearFilter() Model {
	changed := false
	if m.searchQuery != "" {
		m.searchQuery = ""
		changed = true
	}
	if m.filterQuery != "" {
		m.filterQuery = ""
		changed = true
	}
	if changed {
		m.visible = m.rebuildVisible()
		m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
	}
	return m
}
