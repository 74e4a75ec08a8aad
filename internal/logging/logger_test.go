package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	defer func() { Logger = nil }()

	Info("hidden")
	Warn("shown", "entity", "plant.fern")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "plant.fern") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestWithPrefixBeforeInit(t *testing.T) {
	Logger = nil
	l := WithPrefix("card")
	if l == nil {
		t.Fatal("WithPrefix must never return nil")
	}
	l.Info("discarded")
}

func TestInitCreatesDatedFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir, "debug"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Close()
	Logger = nil

	matches, err := filepath.Glob(filepath.Join(dir, "logs", "verdant-*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one log file, got %v (%v)", matches, err)
	}
	data, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(data), "verdant started") {
		t.Errorf("log file missing startup line: %q", data)
	}
}
