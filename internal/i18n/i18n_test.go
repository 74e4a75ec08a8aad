package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestNewMatchesLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"", language.English},
		{"fr", language.French},
		{"fr-BE", language.French},
		{"de", language.English},
		{"not a tag", language.English},
	}
	for _, tt := range tests {
		if got := New(tt.in).Tag(); got != tt.want {
			t.Errorf("New(%q).Tag() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLocalizeInterpolates(t *testing.T) {
	l := New("en")
	got, ok := l.Localize(KeyConfirmMarkDone, map[string]string{"name": "Fern"})
	if !ok {
		t.Fatal("expected key to exist")
	}
	if got != "Mark Fern as watered?" {
		t.Errorf("got %q", got)
	}

	if _, ok := l.Localize("card.missing", nil); ok {
		t.Error("unknown key should report ok=false")
	}
}

func TestTextFallbackChain(t *testing.T) {
	l := New("fr")

	if got := l.Text("Arrosé!", KeyDone, nil); got != "Arrosé!" {
		t.Errorf("override should win, got %q", got)
	}
	if got := l.Text("", KeyDone, nil); got != "Fait" {
		t.Errorf("localized string expected, got %q", got)
	}
	if got := l.Text("", "card.unknown", nil); got != "card.unknown" {
		t.Errorf("key fallback expected, got %q", got)
	}
	if got := l.Text("Water {name}?", KeyConfirmMarkDone, map[string]string{"name": "Ivy"}); got != "Water Ivy?" {
		t.Errorf("override should be interpolated, got %q", got)
	}
}
