package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/verdant/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by eventsPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if eventsPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the debug panel showing pipeline stats and recent events.
// Pure function with no side effects. Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int) string {
	if ring == nil {
		return ""
	}

	count := func(kinds ...otel.EventKind) int { return len(ring.Filter(kinds...)) }
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, eventsHeading.Render("Pipeline Stats"))
	lines = append(lines, fmt.Sprintf("  Refreshes:  %d applied, %d stale",
		count(otel.KindRefreshApplied), count(otel.KindRefreshStale)))
	lines = append(lines, fmt.Sprintf("  Lookups:    %d failed, %d missing",
		count(otel.KindMetadataError), count(otel.KindEntityMissing)))
	lines = append(lines, fmt.Sprintf("  Debounce:   %d fired",
		count(otel.KindDebounceFire)))
	lines = append(lines, fmt.Sprintf("  Actions:    %d sent, %d failed, %d declined",
		count(otel.KindActionDispatch), count(otel.KindActionError), count(otel.KindActionDeclined)))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d events", ring.Len()))
	lines = append(lines, "")

	lines = append(lines, eventsHeading.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-24s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Entity != "" {
			line += "  " + truncateRunes(e.Entity, 28)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 30)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		if e.Seq != 0 {
			line += fmt.Sprintf("  #%d", e.Seq)
		}
		lines = append(lines, line)
	}

	// Truncate to fit terminal height (subtract chrome added by eventsPanel border/padding)
	maxHeight := max(height-debugPanelChrome, 1)
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := max(min(76, width-4), 20)
	return eventsPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := footerKey.Render("D") + footerText.Render(":close")
	return footer.Width(width).Render("  [DEBUG]  " + keys)
}
