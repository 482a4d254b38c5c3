package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/goamp/amp/clipboard"
	"github.com/goamp/amp/highlight"
)

// fieldsToText renders an event's decoded field map as indented JSON for
// copying to the clipboard or highlighting in the list view's preview pane.
func fieldsToText(ev monitorEvent) string {
	if len(ev.Fields) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(ev.Fields, "", "  ")
	if err != nil {
		return fmt.Sprint(ev.Fields)
	}
	return string(b)
}

func (m Model) updateInspect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.stream != nil {
			m.stream.close()
		}
		return m, tea.Quit
	case "q":
		m.view = viewList
		return m, nil
	case "c":
		ev := m.cursorEvent()
		if ev == nil {
			return m, nil
		}
		_ = clipboard.Copy(context.Background(), fieldsToText(*ev))
		return m, nil
	case "j", "down":
		maxScroll := max(len(m.inspectLines())-m.inspectVisibleRows(), 0)
		if m.inspectScroll < maxScroll {
			m.inspectScroll++
		}
		return m, nil
	case "k", "up":
		if m.inspectScroll > 0 {
			m.inspectScroll--
		}
		return m, nil
	}
	return m, nil
}

func (m Model) inspectLines() []string {
	ev := m.cursorEvent()
	if ev == nil {
		return nil
	}
	return m.inspectorEventLines(*ev)
}

func (m Model) inspectVisibleRows() int {
	return max(m.height-2, 3) // -2 for top/bottom border
}

func (m Model) renderInspector() string {
	innerWidth := max(m.width-4, 20)
	visibleRows := m.inspectVisibleRows()

	lines := m.inspectLines()
	if lines == nil {
		return ""
	}

	maxScroll := max(len(lines)-visibleRows, 0)
	if m.inspectScroll > maxScroll {
		m.inspectScroll = maxScroll
	}

	end := min(m.inspectScroll+visibleRows, len(lines))
	visible := lines[m.inspectScroll:end]
	content := strings.Join(visible, "\n")

	borderColor := lipgloss.Color("240")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(borderColor).
		Render(content)

	boxLines := strings.Split(box, "\n")
	if len(boxLines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		title := " Inspector "
		dashes := max(innerWidth-len([]rune(title)), 0)
		boxLines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
	}

	if n := len(boxLines); n > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		help := " q: back  j/k: scroll  c: copy fields "
		dashes := max(innerWidth-len([]rune(help)), 0)
		boxLines[n-1] = borderFg.Render("╰") +
			lipgloss.NewStyle().Faint(true).Render(help) +
			borderFg.Render(strings.Repeat("─", dashes)+"╯")
	}

	return strings.Join(boxLines, "\n")
}

func (m Model) inspectorEventLines(ev monitorEvent) []string {
	var lines []string
	lines = append(lines, "Command:  "+ev.Command)
	lines = append(lines, "Direction:"+" "+ev.Direction)
	lines = append(lines, "Tag:      "+fmt.Sprint(ev.Tag))

	if len(ev.Fields) > 0 {
		lines = append(lines, "Fields:")
		keys := make([]string, 0, len(ev.Fields))
		for k := range ev.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			raw, _ := json.Marshal(ev.Fields[k])
			lines = append(lines, "  "+highlight.JSON(fmt.Sprintf("%q: %s", k, raw)))
		}
	}

	lines = append(lines, "Duration: "+formatDuration(ev.DurationMs))
	lines = append(lines, "Time:     "+formatTimeFull(ev.parsedAt()))

	if ev.Error != "" {
		lines = append(lines, "Error:    "+ev.Error)
	}

	if ev.EngineID != "" {
		lines = append(lines, "Engine:   "+ev.EngineID)
	}

	return lines
}
