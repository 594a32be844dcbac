package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestCollectionSnapshot_Fields(t *testing.T) {
	typ := reflect.TypeOf(CollectionSnapshot{})
	assertGormTag(t, typ, "Key", "primaryKey")
	assertGormTag(t, typ, "Key", "size:128")
	assertGormTag(t, typ, "Payload", "type:longtext")
}

func TestFeedCooldown_Fields(t *testing.T) {
	typ := reflect.TypeOf(FeedCooldown{})
	assertGormTag(t, typ, "Namespace", "primaryKey")
	assertGormTag(t, typ, "DedupKey", "primaryKey")
	assertGormTag(t, typ, "DedupKey", "size:191")
}

func TestStatus(t *testing.T) {
	tests := []struct {
		s        Status
		valid    bool
		terminal bool
	}{
		{StatusBacklog, true, false},
		{StatusActive, true, false},
		{StatusDone, true, true},
		{StatusCancelled, true, true},
		{Status("PAUSED"), false, false},
	}
	for _, tt := range tests {
		if got := tt.s.Valid(); got != tt.valid {
			t.Errorf("%s.Valid() = %v, want %v", tt.s, got, tt.valid)
		}
		if got := tt.s.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.s, got, tt.terminal)
		}
	}
}

func TestImpact_IsHigh(t *testing.T) {
	for imp, want := range map[Impact]bool{
		ImpactLow: false, ImpactMedium: false, ImpactHigh: true, ImpactCritical: true,
	} {
		if got := imp.IsHigh(); got != want {
			t.Errorf("%s.IsHigh() = %v, want %v", imp, got, want)
		}
	}
}

func TestCommitment_IsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  time.Time
		want bool
	}{
		{"yesterday", now.AddDate(0, 0, -1), true},
		{"earlier today", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), false},
		{"tomorrow", now.AddDate(0, 0, 1), false},
	}
	for _, tt := range tests {
		c := Commitment{DataEsperada: tt.due}
		if got := c.IsOverdue(now); got != tt.want {
			t.Errorf("%s: IsOverdue() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCommitment_UnstableSignals(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	c := Commitment{
		DataEsperada:     now.AddDate(0, 0, -2),
		HasImpedimento:   true,
		RenegociadoCount: RecurrentMin,
		Riscos: RiskList{{
			Descricao: "x", StatusMitigacao: MitigationEmMitigacao,
			Probabilidade: LevelHigh, Impacto: LevelHigh,
		}},
	}
	if got := c.UnstableSignals(now); got != 4 {
		t.Errorf("UnstableSignals() = %d, want 4", got)
	}
	if !c.IsUnstable(now) {
		t.Error("IsUnstable() = false, want true")
	}

	c.Riscos[0].StatusMitigacao = MitigationMitigado
	if c.HasOpenHighRisk() {
		t.Error("mitigated risk should not count as open")
	}
}

func TestCommitment_ChecklistProgress(t *testing.T) {
	c := Commitment{Checklist: []ChecklistItem{
		{ID: "a", Completed: true},
		{ID: "b"},
		{ID: "c"},
	}}
	p := c.ChecklistProgress()
	if p.Total != 3 || p.Completed != 1 || p.Percent != 33 {
		t.Errorf("ChecklistProgress() = %+v, want 1/3 (33%%)", p)
	}
	if p := (&Commitment{}).ChecklistProgress(); p.Percent != 0 {
		t.Errorf("empty checklist percent = %d, want 0", p.Percent)
	}
}

func TestCommitment_DoneAt(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(0, 0, 3)
	c := Commitment{Historico: []AuditEvent{
		{Tipo: EventStatusChange, ValorNovo: "DONE", Timestamp: t1},
		{Tipo: EventStatusChange, ValorNovo: "ACTIVE", Timestamp: t1.Add(time.Hour)},
		{Tipo: EventStatusChange, ValorNovo: "DONE", Timestamp: t2},
		{Tipo: EventEdit, ValorNovo: "DONE", Timestamp: t2.Add(time.Hour)},
	}}
	got, ok := c.DoneAt()
	if !ok || !got.Equal(t2) {
		t.Errorf("DoneAt() = %v, %v; want %v, true", got, ok, t2)
	}
	if _, ok := (&Commitment{}).DoneAt(); ok {
		t.Error("DoneAt() on empty history should report false")
	}
}

func TestCommitment_CloneIsDeep(t *testing.T) {
	orig := Commitment{Dependencias: []string{"1"}, Checklist: []ChecklistItem{{ID: "a"}}}
	cp := orig.Clone()
	cp.Dependencias[0] = "2"
	cp.Checklist[0].Completed = true
	if orig.Dependencias[0] != "1" || orig.Checklist[0].Completed {
		t.Error("Clone shares slices with the original")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 12, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 3 {
		t.Errorf("DaysBetween() = %d, want 3", got)
	}
	if got := DaysBetween(b, a); got != -3 {
		t.Errorf("DaysBetween(reversed) = %d, want -3", got)
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	got, err := ParseDate("2026-03-09", loc)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Location() != loc || got.Day() != 9 || got.Hour() != 0 {
		t.Errorf("ParseDate(date) = %v", got)
	}
	if _, err := ParseDate("2026-03-09T12:30:00Z", loc); err != nil {
		t.Errorf("ParseDate(RFC3339): %v", err)
	}
	if _, err := ParseDate("09/03/2026", loc); err == nil {
		t.Error("ParseDate should reject dd/mm/yyyy")
	}
}

func TestRisk_MatrixScore(t *testing.T) {
	tests := []struct {
		p, i MatrixLevel
		want int
	}{
		{LevelLow, LevelLow, 1},
		{LevelMedium, LevelHigh, 6},
		{LevelHigh, LevelHigh, 9},
		{MatrixLevel("??"), LevelLow, 2},
	}
	for _, tt := range tests {
		r := Risk{Probabilidade: tt.p, Impacto: tt.i}
		if got := r.MatrixScore(); got != tt.want {
			t.Errorf("MatrixScore(%s x %s) = %d, want %d", tt.p, tt.i, got, tt.want)
		}
	}
}

func TestSanitizeRisks(t *testing.T) {
	n := 0
	newID := func() string { n++; return "r" + strings.Repeat("x", n) }
	in := []Risk{
		{Descricao: "  atraso do fornecedor  ", Categoria: "FOO", StatusMitigacao: "?", Probabilidade: "HIGH"},
		{Descricao: "   "},
		{ID: "keep", Descricao: "escopo", Categoria: RiskEscopo, StatusMitigacao: MitigationAceito},
	}
	out := SanitizeRisks(in, newID)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	first := out[0]
	if first.Descricao != "atraso do fornecedor" || first.Categoria != RiskOutro ||
		first.StatusMitigacao != MitigationAberto || first.Probabilidade != LevelHigh ||
		first.Impacto != LevelMedium || first.ID != "rx" {
		t.Errorf("first = %+v", first)
	}
	if out[1].ID != "keep" || out[1].StatusMitigacao != MitigationAceito {
		t.Errorf("second = %+v", out[1])
	}
}

func TestRiskList_UnmarshalJSON(t *testing.T) {
	orig := NewRiskID
	NewRiskID = func() string { return "risk-fixed" }
	defer func() { NewRiskID = orig }()

	tests := []struct {
		name    string
		in      string
		wantLen int
		wantID  string
	}{
		{"null", `null`, 0, ""},
		{"legacy text", `"fornecedor pode atrasar"`, 1, "risk-fixed"},
		{"empty legacy text", `"  "`, 0, ""},
		{"array", `[{"id":"r1","descricao":"x","categoria":"PRAZO","statusMitigacao":"ABERTO","probabilidade":"LOW","impacto":"HIGH"}]`, 1, "r1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l RiskList
			if err := json.Unmarshal([]byte(tt.in), &l); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if l == nil {
				t.Fatal("decoded list is nil, want empty")
			}
			if len(l) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(l), tt.wantLen)
			}
			if tt.wantLen > 0 && l[0].ID != tt.wantID {
				t.Errorf("ID = %q, want %q", l[0].ID, tt.wantID)
			}
		})
	}
}

func TestRisksEqual_IgnoresIDs(t *testing.T) {
	a := []Risk{{ID: "1", Descricao: "x", Categoria: RiskPrazo}}
	b := []Risk{{ID: "2", Descricao: "x", Categoria: RiskPrazo}}
	if !RisksEqual(a, b) {
		t.Error("RisksEqual should ignore ids")
	}
	b[0].Categoria = RiskEscopo
	if RisksEqual(a, b) {
		t.Error("RisksEqual should compare categories")
	}
}
