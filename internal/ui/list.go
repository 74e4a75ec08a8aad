package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/verdant/internal/card"
)

// wateringColWidth is the width reserved for the right-hand countdown.
const wateringColWidth = 28

// RenderRows renders the plant list, scrolled so the cursor stays visible.
func RenderRows(rows []card.Row, labels card.Labels, cursor, width, height int) string {
	if len(rows) == 0 {
		return emptyState.Render(labels.NoPlants)
	}

	availableHeight := max(height, 1)
	offset := calcScrollOffset(len(rows), cursor, availableHeight)

	var b strings.Builder
	for i := offset; i < len(rows) && i < offset+availableHeight; i++ {
		b.WriteString(renderRowLine(rows[i], labels, i == cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first visible index such that cursor fits.
func calcScrollOffset(total, cursor, availableHeight int) int {
	if total == 0 || cursor < 0 {
		return 0
	}
	cursor = min(cursor, total-1)
	if cursor >= availableHeight {
		return cursor - availableHeight + 1
	}
	return 0
}

// renderRowLine renders one plant: name on the left, countdown right-aligned.
func renderRowLine(r card.Row, labels card.Labels, selected bool, width int) string {
	name := r.Name()
	if nick := r.Nickname(); nick != "" && nick != name {
		name += " (" + nick + ")"
	}

	watering := truncateRunes(labels.Watering(r), wateringColWidth)
	nameWidth := max(width-wateringColWidth-4, 12)
	name = truncateRunes(name, nameWidth)

	pad := max(width-utf8.RuneCountInString(name)-utf8.RuneCountInString(watering)-3, 1)
	plain := name + strings.Repeat(" ", pad) + watering

	if selected {
		return rowSelected.Width(max(width, 1)).Render(plain)
	}

	wateringStyle := rowWatering
	if r.Watering != nil && *r.Watering <= 0 {
		wateringStyle = rowDue
	}
	return rowNormal.Render(name) + strings.Repeat(" ", pad) + wateringStyle.Render(watering)
}

// truncateRunes shortens s to at most n runes, marking the cut with "…".
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

// RenderStatusBar renders the bottom status bar with position, sort key
// and key hints.
func RenderStatusBar(cursor, total int, sortName string, width int, hints string) string {
	position := fmt.Sprintf(" %d/%d ", min(cursor+1, total), total)
	sort := footerText.Render("sort:") + footerKey.Render(sortName)
	left := position + sort

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(hints)-2, 1)
	return footer.Width(width).Render(left + strings.Repeat(" ", padding) + hints)
}
