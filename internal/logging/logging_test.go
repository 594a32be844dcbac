package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "info", "json")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	log.Debug("hidden")
	log.Info("store: loaded")
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["msg"] != "store: loaded" || entry["level"] != "info" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("entry missing ts key")
	}
}

func TestNewWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "debug", "console")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	log.Debug("telegraph: tick")
	_ = log.Sync()
	if !strings.Contains(buf.String(), "telegraph: tick") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNewWriter_BadLevel(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, "loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}
