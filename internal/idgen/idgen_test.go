package idgen

import (
	"strings"
	"testing"
)

func TestShort_Format(t *testing.T) {
	id, err := Short("risk-")
	if err != nil {
		t.Fatalf("Short() error: %v", err)
	}
	if !strings.HasPrefix(id, "risk-") {
		t.Errorf("id %q missing risk- prefix", id)
	}
	if len(id) != len("risk-")+Length {
		t.Errorf("id length = %d, want %d; id = %q", len(id), len("risk-")+Length, id)
	}
	for _, c := range id[len("risk-"):] {
		if !strings.ContainsRune(Alphabet, c) {
			t.Errorf("id %q contains char %c outside alphabet", id, c)
		}
	}
}

func TestShort_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := Checklist()
		if seen[id] {
			t.Fatalf("duplicate id %q on iteration %d", id, i)
		}
		seen[id] = true
	}
}

func TestEvent_Prefix(t *testing.T) {
	a, b := Event(), Event()
	if !strings.HasPrefix(a, "evt-") {
		t.Errorf("Event() = %q, want evt- prefix", a)
	}
	if a == b {
		t.Errorf("Event() returned duplicate %q", a)
	}
}
