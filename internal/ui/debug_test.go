package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/otel"
)

func TestDebugOverlayNilRing(t *testing.T) {
	result := debugOverlay(nil, 80, 24)
	if result != "" {
		t.Errorf("debugOverlay(nil) should return empty string, got %q", result)
	}
}

func TestDebugOverlayRendersStats(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindRefreshApplied, Time: time.Now()})
	ring.Push(otel.Event{Kind: otel.KindRefreshApplied, Time: time.Now()})
	ring.Push(otel.Event{Kind: otel.KindRefreshStale, Time: time.Now()})
	ring.Push(otel.Event{Kind: otel.KindActionDispatch, Time: time.Now()})
	ring.Push(otel.Event{Kind: otel.KindActionDeclined, Time: time.Now()})

	result := debugOverlay(ring, 80, 40)

	if !strings.Contains(result, "Pipeline Stats") {
		t.Error("overlay should contain 'Pipeline Stats' header")
	}
	if !strings.Contains(result, "2 applied, 1 stale") {
		t.Errorf("overlay should show refresh stats, got:\n%s", result)
	}
	if !strings.Contains(result, "1 sent, 0 failed, 1 declined") {
		t.Errorf("overlay should show action stats, got:\n%s", result)
	}
	if !strings.Contains(result, "5 events") {
		t.Errorf("overlay should show buffer stats, got:\n%s", result)
	}
}

func TestDebugOverlayRecentEvents(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindEntityMissing, Time: time.Now(), Entity: "plant.fren", Msg: "plant.fern"})
	ring.Push(otel.Event{Kind: otel.KindMetadataError, Time: time.Now(), Err: "timeout"})
	ring.Push(otel.Event{Kind: otel.KindRefreshApplied, Time: time.Now(), Seq: 42})

	result := debugOverlay(ring, 80, 40)

	for _, want := range []string{"Recent Events", "plant.fren", "plant.fern", "ERR:timeout", "#42"} {
		if !strings.Contains(result, want) {
			t.Errorf("overlay missing %q, got:\n%s", want, result)
		}
	}
}

func TestDebugOverlayTruncation(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	for i := 0; i < 30; i++ {
		ring.Push(otel.Event{Kind: otel.KindDebounceFire, Time: time.Now()})
	}

	// Very small height should still render without panic
	result := debugOverlay(ring, 80, 10)
	if result == "" {
		t.Error("overlay should still render with small height")
	}

	// With height=10, maxHeight=6, so at most ~6 content lines (plus border/padding)
	if lines := strings.Count(result, "\n"); lines > 20 {
		t.Errorf("overlay should be truncated, got %d lines", lines)
	}
}

func TestDebugToggle(t *testing.T) {
	ring := otel.NewRingBuffer(16)
	app := NewApp("Plants", card.Labels{}, config.SortWatering, Actions{}, ring)
	app.ready = true
	app.width = 80
	app.height = 24

	if app.debug {
		t.Error("debug should be hidden initially")
	}

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'D'}})
	updated := model.(App)
	if !updated.debug {
		t.Error("D should show debug overlay")
	}

	view := updated.View()
	if !strings.Contains(view, "[DEBUG]") {
		t.Errorf("debug view should contain '[DEBUG]', got:\n%s", view)
	}

	model, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'D'}})
	if model.(App).debug {
		t.Error("second D should hide debug overlay")
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{0, "0ms"},
		{50 * time.Millisecond, "50ms"},
		{999 * time.Millisecond, "999ms"},
		{1500 * time.Millisecond, "1.5s"},
		{30 * time.Second, "30.0s"},
		{5 * time.Minute, "5m"},
	}
	for _, tt := range tests {
		got := formatAge(tt.dur)
		if got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.dur, got, tt.want)
		}
	}
}

func TestFormatAgeNegative(t *testing.T) {
	got := formatAge(-5 * time.Second)
	if got != "0ms" {
		t.Errorf("formatAge(-5s) = %q, want \"0ms\"", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Monstera", 20, "Monstera"},
		{"Monstera", 5, "Mons…"},
		{"Éléonore", 4, "Élé…"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCalcScrollOffset(t *testing.T) {
	if got := calcScrollOffset(10, 2, 5); got != 0 {
		t.Errorf("offset = %d, want 0", got)
	}
	if got := calcScrollOffset(10, 7, 5); got != 3 {
		t.Errorf("offset = %d, want 3", got)
	}
	if got := calcScrollOffset(0, 3, 5); got != 0 {
		t.Errorf("offset = %d, want 0", got)
	}
}
