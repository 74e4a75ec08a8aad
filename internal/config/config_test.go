package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseCardDefaults(t *testing.T) {
	c, err := ParseCard([]byte("entities:\n  - plant.fern\n  - plant.cactus\n"))
	if err != nil {
		t.Fatalf("ParseCard: %v", err)
	}
	if c.SortBy != SortWatering {
		t.Errorf("default sort = %q, want watering", c.SortBy)
	}
	if !c.ConfirmDone() {
		t.Error("confirm_before_done should default to true")
	}
	if len(c.Entities) != 2 || c.Entities[1] != "plant.cactus" {
		t.Errorf("entities = %v", c.Entities)
	}
}

func TestParseCardValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"no selection", "sort_by: name\n", ErrNoSelection},
		{"empty entities", "entities: []\n", ErrNoSelection},
		{"blank entity ids", "entities: ['  ']\n", ErrNoSelection},
		{"unknown sort", "show_all: true\nsort_by: age\n", ErrUnknownSort},
		{"nickname disabled", "show_all: true\nsort_by: nickname\n", ErrUnknownSort},
		{"nickname enabled", "show_all: true\nsort_by: nickname\nenable_nickname: true\n", nil},
		{"show all", "show_all: true\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCard([]byte(tt.yaml))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseCardConfirmDisabled(t *testing.T) {
	c, err := ParseCard([]byte("show_all: true\nconfirm_before_done: false\nsort_by: Name\n"))
	if err != nil {
		t.Fatalf("ParseCard: %v", err)
	}
	if c.ConfirmDone() {
		t.Error("confirm_before_done: false should disable confirmation")
	}
	if c.SortBy != SortName {
		t.Errorf("sort_by should be lowercased, got %q", c.SortBy)
	}
}

func TestSortKeys(t *testing.T) {
	c := Card{ShowAll: true}
	if got := c.SortKeys(); len(got) != 2 {
		t.Errorf("expected 2 keys without nickname, got %v", got)
	}
	c.EnableNickname = true
	if got := c.SortKeys(); len(got) != 3 || got[2] != SortNickname {
		t.Errorf("expected nickname as third key, got %v", got)
	}
}

func TestLoadInlineCard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `hass:
  url: http://ha.test:8123
  token: abc
resync_interval: 2m
card:
  entities:
    - plant.fern
  sort_by: name
  done_label: Watered
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Hass.URL != "http://ha.test:8123" || c.Hass.Token != "abc" {
		t.Errorf("hass = %+v", c.Hass)
	}
	if c.ResyncInterval != 2*time.Minute {
		t.Errorf("resync = %v", c.ResyncInterval)
	}
	if c.Card.SortBy != SortName || c.Card.DoneLabel != "Watered" {
		t.Errorf("card = %+v", c.Card)
	}
}

func TestLoadCardFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cardPath := filepath.Join(dir, "card.yaml")
	if err := os.WriteFile(cardPath, []byte("show_all: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("card_file: "+cardPath+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VERDANT_HASS_TOKEN", "from-env")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Card.ShowAll {
		t.Error("card_file should be loaded")
	}
	if c.Hass.Token != "from-env" {
		t.Errorf("token = %q, want env override", c.Hass.Token)
	}
}

func TestLoadWithoutCardFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if c.DataDir == "" {
		t.Error("settings should survive a card error")
	}
}
