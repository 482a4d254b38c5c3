package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/goamp/amp/highlight"
)

func eventStatus(ev monitorEvent) string {
	if ev.Error != "" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("E")
	}
	switch ev.Direction {
	case "error-sent", "error-recv":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("E")
	}
	return ""
}

// Column widths.
const (
	colMarker   = 2
	colDir      = 12
	colDuration = 10
	colTime     = 12
	colStatus   = 4
)

func (m Model) renderList(maxRows int) string {
	innerWidth := max(m.width-4, 20)
	colCommand := max(innerWidth-colMarker-colDir-colDuration-colTime-colStatus-4, 10)

	var title string
	if m.searchQuery != "" || m.filterQuery != "" {
		title = fmt.Sprintf(" amp-monitor (%d/%d events) ", len(m.visible), len(m.events))
	} else {
		title = fmt.Sprintf(" amp-monitor (%d events) ", len(m.events))
	}
	if m.sortMode == sortDuration {
		title += "[slow] "
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth)

	dataRows := max(maxRows-1, 1) // -1 for header row

	start := 0
	if len(m.visible) > dataRows {
		start = max(m.cursor-dataRows/2, 0)
		if start+dataRows > len(m.visible) {
			start = len(m.visible) - dataRows
		}
	}
	end := min(start+dataRows, len(m.visible))

	header := fmt.Sprintf("  %-*s %-*s %*s %*s %-*s",
		colDir, "Direction",
		colCommand, "Command",
		colDuration, "Duration",
		colTime, "Time",
		colStatus, "",
	)

	var rows []string
	rows = append(rows, lipgloss.NewStyle().Bold(true).Render(header))
	for i := start; i < end; i++ {
		rows = append(rows, m.renderEventRow(i))
	}

	borderColor := lipgloss.Color("240")
	border = border.BorderForeground(borderColor)
	content := strings.Join(rows, "\n")

	box := border.Render(content)
	lines := strings.Split(box, "\n")
	if len(lines) > 0 {
		borderFg := lipgloss.NewStyle().Foreground(borderColor)
		titleStyle := lipgloss.NewStyle().Bold(true)
		dashes := max(innerWidth-len([]rune(title)), 0)
		lines[0] = borderFg.Render("╭") +
			titleStyle.Render(title) +
			borderFg.Render(strings.Repeat("─", dashes)+"╮")
		box = strings.Join(lines, "\n")
	}

	return box
}

func (m Model) renderEventRow(i int) string {
	ev := m.events[m.visible[i]]
	isCursor := i == m.cursor

	marker := "  "
	if isCursor {
		marker = "▶ "
	}

	innerWidth := max(m.width-4, 20)
	colCommand := max(innerWidth-colMarker-colDir-colDuration-colTime-colStatus-4, 10)

	cmd := truncate(ev.Command, colCommand)
	if cmd == "" {
		cmd = "-"
	}

	row := fmt.Sprintf("%s%-*s %-*s %*s %*s",
		marker,
		colDir, ev.Direction,
		colCommand, cmd,
		colDuration, formatDuration(ev.DurationMs),
		colTime, formatTime(ev.parsedAt()),
	) + " " + eventStatus(ev)

	if isCursor {
		row = lipgloss.NewStyle().Bold(true).Render(row)
	}
	return row
}

func (m Model) renderPreview() string {
	innerWidth := max(m.width-4, 20)

	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return ""
	}
	ev := m.events[m.visible[m.cursor]]

	var lines []string
	lines = append(lines, "Command:  "+ev.Command)
	lines = append(lines, "Tag:      "+fmt.Sprint(ev.Tag))

	if len(ev.Fields) > 0 {
		maxLen := max(innerWidth-10, 20)
		lines = append(lines, "Fields:   "+highlight.JSON(truncate(fieldsToText(ev), maxLen)))
	}

	lines = append(lines, "Duration: "+formatDuration(ev.DurationMs))

	if ev.Error != "" {
		lines = append(lines, "Error:    "+ev.Error)
	}

	content := strings.Join(lines, "\n")

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(innerWidth).
		BorderForeground(lipgloss.Color("240"))

	return border.Render(content)
}
