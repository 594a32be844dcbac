package insights

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

var now = time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)

func live(id, owner, projeto string, dueIn int) models.Commitment {
	return models.Commitment{
		ID: id, Titulo: "c" + id, Owner: owner, Projeto: projeto,
		Status: models.StatusActive, DataEsperada: now.AddDate(0, 0, dueIn),
	}
}

// saturated returns n overdue and blocked commitments for owner: score 5 each.
func saturated(owner, projeto string, n int) []models.Commitment {
	var out []models.Commitment
	for i := 0; i < n; i++ {
		c := live(fmt.Sprintf("%s-%d", owner, i), owner, projeto, -1)
		c.HasImpedimento = true
		out = append(out, c)
	}
	return out
}

func find(list []Insight, id string) (Insight, bool) {
	for _, in := range list {
		if in.ID == id {
			return in, true
		}
	}
	return Insight{}, false
}

func TestExcludedOwners(t *testing.T) {
	got := ExcludedOwners([]string{" Marina ", "TAVARES", "", "marina"})
	want := []string{"tavares", "marina"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExcludedOwners = %v, want %v", got, want)
	}
}

func TestBuild_OwnerSaturation(t *testing.T) {
	res := Build(saturated("ana", "P", 1), now, Options{})
	in, ok := find(res.Insights, "owner-saturation:ana")
	if !ok {
		t.Fatalf("owner insight missing: %+v", res.Insights)
	}
	if in.Severity != SeverityMedium {
		t.Errorf("severity = %s, want MEDIUM (score 5)", in.Severity)
	}
	if in.Evidence != "1 ativos, 1 vencidos, 1 bloqueados, 0 com risco alto aberto." {
		t.Errorf("evidence = %q", in.Evidence)
	}

	res = Build(saturated("ana", "P", 2), now, Options{})
	if in, _ := find(res.Insights, "owner-saturation:ana"); in.Severity != SeverityHigh {
		t.Errorf("severity = %s, want HIGH (score 10)", in.Severity)
	}
}

func TestBuild_OwnerBelowThreshold(t *testing.T) {
	c := live("1", "ana", "P", 10)
	c.RenegociadoCount = 2
	res := Build([]models.Commitment{c}, now, Options{})
	if _, ok := find(res.Insights, "owner-saturation:ana"); ok {
		t.Error("owner insight emitted for score 2.5")
	}
	if got := res.SystemSignals.TopOwners[0].SaturationScore; got != 2.5 {
		t.Errorf("saturation = %v, want 2.5", got)
	}
}

func TestBuild_OwnerExclusion(t *testing.T) {
	collection := append(saturated("TAVARES", "P", 3), saturated("Marina", "Q", 2)...)
	collection = append(collection, saturated("bia", "R", 1)...)

	res := Build(collection, now, Options{ExcludedOwners: []string{"marina"}})
	for _, owner := range []string{"TAVARES", "Marina"} {
		if _, ok := find(res.Insights, "owner-saturation:"+owner); ok {
			t.Errorf("excluded owner %s reported", owner)
		}
	}
	if _, ok := find(res.Insights, "owner-saturation:bia"); !ok {
		t.Errorf("next owner bia not reported: %+v", res.Insights)
	}
}

func TestBuild_ChecklistStalledCountsAsHighRisk(t *testing.T) {
	c := live("1", "ana", "P", 2)
	c.Checklist = []models.ChecklistItem{{ID: "a"}, {ID: "b"}}
	res := Build([]models.Commitment{c}, now, Options{})
	row := res.SystemSignals.TopOwners[0]
	if row.HighRiskOpenCount != 1 || row.SaturationScore != 3 {
		t.Errorf("owner row = %+v, want highRisk 1 score 3", row)
	}
	in, ok := find(res.Insights, "checklist-stalled-near-due")
	if !ok || in.Severity != SeverityMedium {
		t.Errorf("stalled insight = %+v, %v; want MEDIUM", in, ok)
	}
	if res.SystemSignals.Totals.ChecklistStalledNearDue != 1 {
		t.Errorf("totals = %+v", res.SystemSignals.Totals)
	}
}

func TestBuild_ChecklistNotStalledFarFromDue(t *testing.T) {
	c := live("1", "ana", "P", 3)
	c.Checklist = []models.ChecklistItem{{ID: "a"}}
	res := Build([]models.Commitment{c}, now, Options{})
	if res.SystemSignals.Totals.ChecklistStalledNearDue != 0 {
		t.Errorf("stalled = %d, want 0 for due in 3 days", res.SystemSignals.Totals.ChecklistStalledNearDue)
	}
}

func TestBuild_ChecklistInconsistency(t *testing.T) {
	c := live("1", "ana", "P", 10)
	c.Checklist = []models.ChecklistItem{{ID: "a", Completed: true}}
	res := Build([]models.Commitment{c}, now, Options{})
	in, ok := find(res.Insights, "checklist-status-inconsistency")
	if !ok || in.Severity != SeverityLow {
		t.Errorf("inconsistency insight = %+v, %v; want LOW", in, ok)
	}
}

func TestBuild_ProjectInstability(t *testing.T) {
	a := live("1", "ana", "Apollo", -1)
	a.HasImpedimento = true
	b := live("2", "bia", "Apollo", 5)
	b.RenegociadoCount = 2
	solo := live("3", "caio", "Zeus", -4)
	solo.HasImpedimento = true
	solo.RenegociadoCount = 5

	res := Build([]models.Commitment{solo, a, b}, now, Options{})
	in, ok := find(res.Insights, "project-instability:Apollo")
	if !ok {
		t.Fatalf("project insight missing: %+v", res.Insights)
	}
	if in.Severity != SeverityMedium || in.Evidence != "2 ativos e 3 sinais de instabilidade agregados." {
		t.Errorf("insight = %+v", in)
	}
	if _, ok := find(res.Insights, "project-instability:Zeus"); ok {
		t.Error("single-commitment project reported")
	}
}

func TestBuild_EmptyKeys(t *testing.T) {
	res := Build([]models.Commitment{live("1", "", "", 5)}, now, Options{})
	if res.SystemSignals.TopOwners[0].Owner != NoOwner {
		t.Errorf("owner key = %q, want %q", res.SystemSignals.TopOwners[0].Owner, NoOwner)
	}
	if res.SystemSignals.TopProjects[0].Projeto != NoProject {
		t.Errorf("project key = %q, want %q", res.SystemSignals.TopProjects[0].Projeto, NoProject)
	}
}

func TestBuild_SystemicAndRanking(t *testing.T) {
	var all []models.Commitment
	for i := 0; i < 5; i++ {
		c := live(fmt.Sprint(i), fmt.Sprintf("o%d", i), fmt.Sprintf("p%d", i), 10)
		c.HasImpedimento = true
		c.RenegociadoCount = 2
		if i == 0 {
			c.Checklist = []models.ChecklistItem{{ID: "x", Completed: true}}
		}
		all = append(all, c)
	}
	res := Build(all, now, Options{})
	blocked, ok := find(res.Insights, "blocked-pressure")
	if !ok || blocked.Severity != SeverityHigh {
		t.Errorf("blocked-pressure = %+v, %v; want HIGH", blocked, ok)
	}
	recurrent, ok := find(res.Insights, "recurrent-renegotiation")
	if !ok || recurrent.Severity != SeverityHigh {
		t.Errorf("recurrent-renegotiation = %+v, %v; want HIGH", recurrent, ok)
	}
	for i := 1; i < len(res.Insights); i++ {
		if res.Insights[i].Severity.rank() > res.Insights[i-1].Severity.rank() {
			t.Fatalf("insights not ranked: %+v", res.Insights)
		}
	}
	if last := res.Insights[len(res.Insights)-1]; last.ID != "checklist-status-inconsistency" {
		t.Errorf("last insight = %s, want the LOW inconsistency", last.ID)
	}
}

func TestBuild_ArchivedIgnored(t *testing.T) {
	c := live("1", "ana", "P", -10)
	c.Status = models.StatusCancelled
	c.HasImpedimento = true
	res := Build([]models.Commitment{c}, now, Options{})
	if len(res.Insights) != 0 || res.SystemSignals.Totals.Active != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestAnalyze(t *testing.T) {
	got := Analyze(nil, now, Options{})
	if got.Status != "ok" || got.Mode != "deterministic" || got.Result.Insights == nil {
		t.Errorf("Analyze = %+v", got)
	}
}
