package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"curto", 10, "curto"},
		{"exato", 5, "exato"},
		{"migração do billing", 10, "migração …"},
		{"abc", 1, "a"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate(time.Time{}); got != "-" {
		t.Errorf("formatDate(zero) = %q, want -", got)
	}
	d := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	if got := formatDate(d); got != "09/03/2026" {
		t.Errorf("formatDate = %q, want 09/03/2026", got)
	}
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		p    models.Progress
		want string
	}{
		{models.Progress{}, "-"},
		{models.Progress{Total: 3, Completed: 2, Percent: 67}, "2/3 (67%)"},
		{models.Progress{Total: 1, Completed: 1, Percent: 100}, "1/1 (100%)"},
	}
	for _, tt := range tests {
		if got := formatProgress(tt.p); got != tt.want {
			t.Errorf("formatProgress(%+v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestCommitmentFlags(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	highRisk := models.Risk{
		Descricao:       "fornecedor atrasado",
		StatusMitigacao: models.MitigationAberto,
		Probabilidade:   models.LevelHigh,
		Impacto:         models.LevelMedium,
	}

	tests := []struct {
		name string
		c    models.Commitment
		want string
	}{
		{"clean", models.Commitment{Status: models.StatusActive, DataEsperada: now.AddDate(0, 0, 3)}, ""},
		{"overdue", models.Commitment{Status: models.StatusActive, DataEsperada: yesterday}, "vencido"},
		{"done past due is not overdue", models.Commitment{Status: models.StatusDone, DataEsperada: yesterday}, ""},
		{"all signals", models.Commitment{
			Status:           models.StatusBacklog,
			DataEsperada:     yesterday,
			HasImpedimento:   true,
			RenegociadoCount: 2,
			Riscos:           models.RiskList{highRisk},
		}, "vencido, bloqueado, reincidente, risco alto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commitmentFlags(tt.c, now); got != tt.want {
				t.Errorf("commitmentFlags() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUseColor_NonTerminal(t *testing.T) {
	if useColor(new(bytes.Buffer)) {
		t.Error("useColor(buffer) = true, want false")
	}
}

func TestWriteJSON_Indents(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := writeJSON(buf, map[string]int{"total": 2}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if got, want := buf.String(), "{\n  \"total\": 2\n}\n"; got != want {
		t.Errorf("writeJSON = %q, want %q", got, want)
	}
}
