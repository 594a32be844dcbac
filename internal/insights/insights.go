// Package insights aggregates per-owner and per-project signals into a
// ranked, capped list of actionable insights.
package insights

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

// Severity ranks insights.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}

// Thresholds and limits.
const (
	MaxInsights = 6
	TopRows     = 5

	OwnerMinScore  = 5.0
	OwnerHighScore = 8.0

	ProjectMinActive   = 2
	ProjectMinSignals  = 3
	ProjectHighSignals = 5

	RecurrentMin     = 2
	RecurrentHigh    = 4
	BlockedMin       = 3
	BlockedHigh      = 5
	StalledMin       = 1
	StalledHigh      = 2
	StalledDueWithin = 2

	NoOwner   = "Sem owner"
	NoProject = "Sem projeto"
)

// DefaultExcludedOwners are never reported for saturation.
var DefaultExcludedOwners = []string{"Tavares"}

const resultWhy = "Insights gerados por leitura determinística dos sinais de saturação, risco e recorrência."

// Insight is one actionable finding.
type Insight struct {
	ID                string   `json:"id"`
	Severity          Severity `json:"severity"`
	Headline          string   `json:"headline"`
	Evidence          string   `json:"evidence"`
	RecommendedAction string   `json:"recommendedAction"`
	Why               string   `json:"why"`
}

// OwnerRow aggregates one owner's live commitments.
type OwnerRow struct {
	Owner             string  `json:"owner"`
	ActiveCount       int     `json:"activeCount"`
	OverdueCount      int     `json:"overdueCount"`
	BlockedCount      int     `json:"blockedCount"`
	HighRiskOpenCount int     `json:"highRiskOpenCount"`
	RecurrentCount    int     `json:"recurrentCount"`
	SaturationScore   float64 `json:"saturationScore"`
}

// ProjectRow aggregates one project's live commitments.
type ProjectRow struct {
	Projeto           string `json:"projeto"`
	ActiveCount       int    `json:"activeCount"`
	OverdueCount      int    `json:"overdueCount"`
	BlockedCount      int    `json:"blockedCount"`
	HighRiskOpenCount int    `json:"highRiskOpenCount"`
	RecurrentCount    int    `json:"recurrentCount"`
	UnstableSignals   int    `json:"unstableSignals"`
}

// Totals counts signals across all live commitments.
type Totals struct {
	Active                  int `json:"active"`
	Overdue                 int `json:"overdue"`
	Blocked                 int `json:"blocked"`
	HighRiskOpen            int `json:"highRiskOpen"`
	Recurrent               int `json:"recurrent"`
	ChecklistStalledNearDue int `json:"checklistStalledNearDue"`
	ChecklistInconsistency  int `json:"checklistInconsistency"`
}

// SystemSignals is the aggregate evidence behind the insights.
type SystemSignals struct {
	Totals      Totals       `json:"totals"`
	TopOwners   []OwnerRow   `json:"topOwners"`
	TopProjects []ProjectRow `json:"topProjects"`
}

// Result is the insights view.
type Result struct {
	GeneratedAt   time.Time     `json:"generatedAt"`
	Insights      []Insight     `json:"insights"`
	SystemSignals SystemSignals `json:"systemSignals"`
	Why           string        `json:"why"`
}

// Options tunes Build.
type Options struct {
	// ExcludedOwners is added to DefaultExcludedOwners; matching is case-insensitive.
	ExcludedOwners []string
}

// RunResult wraps a Result with the analysis mode.
type RunResult struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Result Result `json:"result"`
}

// Analyze runs Build and tags the result as deterministic.
func Analyze(collection []models.Commitment, now time.Time, opts Options) RunResult {
	return RunResult{Status: "ok", Mode: "deterministic", Result: Build(collection, now, opts)}
}

// ExcludedOwners merges the defaults with configured names, lower-cased and deduplicated.
func ExcludedOwners(configured []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range append(append([]string{}, DefaultExcludedOwners...), configured...) {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// Build computes owner and project rows, totals and the ranked insights.
func Build(collection []models.Commitment, now time.Time, opts Options) Result {
	var (
		totals       Totals
		ownerOrder   []string
		projectOrder []string
	)
	owners := make(map[string]*OwnerRow)
	projects := make(map[string]*ProjectRow)

	for _, c := range collection {
		if !c.IsLive() {
			continue
		}
		overdue := c.IsOverdue(now)
		blocked := c.HasImpedimento
		highRisk := c.HasOpenHighRisk()
		recurrent := c.IsRecurrent()
		progress := c.ChecklistProgress()
		stalled := progress.Total > 0 && progress.Percent == 0 &&
			models.DaysBetween(now, c.DataEsperada) <= StalledDueWithin
		inconsistent := progress.Total > 0 && progress.Percent == 100 && c.Status != models.StatusDone

		totals.Active++
		totals.Overdue += b2i(overdue)
		totals.Blocked += b2i(blocked)
		totals.HighRiskOpen += b2i(highRisk)
		totals.Recurrent += b2i(recurrent)
		totals.ChecklistStalledNearDue += b2i(stalled)
		totals.ChecklistInconsistency += b2i(inconsistent)

		ownerKey := strings.TrimSpace(c.Owner)
		if ownerKey == "" {
			ownerKey = NoOwner
		}
		o, ok := owners[ownerKey]
		if !ok {
			o = &OwnerRow{Owner: ownerKey}
			owners[ownerKey] = o
			ownerOrder = append(ownerOrder, ownerKey)
		}
		o.ActiveCount++
		o.OverdueCount += b2i(overdue)
		o.BlockedCount += b2i(blocked)
		o.HighRiskOpenCount += b2i(highRisk) + b2i(stalled)
		o.RecurrentCount += b2i(recurrent)

		projectKey := strings.TrimSpace(c.Projeto)
		if projectKey == "" {
			projectKey = NoProject
		}
		p, ok := projects[projectKey]
		if !ok {
			p = &ProjectRow{Projeto: projectKey}
			projects[projectKey] = p
			projectOrder = append(projectOrder, projectKey)
		}
		p.ActiveCount++
		p.OverdueCount += b2i(overdue)
		p.BlockedCount += b2i(blocked)
		p.HighRiskOpenCount += b2i(highRisk)
		p.RecurrentCount += b2i(recurrent)
		p.UnstableSignals += b2i(overdue) + b2i(blocked) + b2i(recurrent) + b2i(highRisk) + b2i(stalled)
	}

	ownerRows := make([]OwnerRow, 0, len(ownerOrder))
	for _, k := range ownerOrder {
		o := owners[k]
		o.SaturationScore = saturation(*o)
		ownerRows = append(ownerRows, *o)
	}
	sort.SliceStable(ownerRows, func(i, j int) bool { return ownerRows[i].SaturationScore > ownerRows[j].SaturationScore })

	projectRows := make([]ProjectRow, 0, len(projectOrder))
	for _, k := range projectOrder {
		projectRows = append(projectRows, *projects[k])
	}
	sort.SliceStable(projectRows, func(i, j int) bool { return projectRows[i].UnstableSignals > projectRows[j].UnstableSignals })

	var list []Insight
	if in, ok := ownerInsight(ownerRows, ExcludedOwners(opts.ExcludedOwners)); ok {
		list = append(list, in)
	}
	if in, ok := projectInsight(projectRows); ok {
		list = append(list, in)
	}
	list = append(list, systemic(totals)...)

	sort.SliceStable(list, func(i, j int) bool { return list[i].Severity.rank() > list[j].Severity.rank() })
	if len(list) > MaxInsights {
		list = list[:MaxInsights]
	}
	if list == nil {
		list = []Insight{}
	}

	return Result{
		GeneratedAt: now,
		Insights:    list,
		SystemSignals: SystemSignals{
			Totals:      totals,
			TopOwners:   head(ownerRows, TopRows),
			TopProjects: head(projectRows, TopRows),
		},
		Why: resultWhy,
	}
}

func saturation(o OwnerRow) float64 {
	raw := float64(o.ActiveCount) +
		2*float64(o.OverdueCount) +
		2*float64(o.BlockedCount) +
		2*float64(o.HighRiskOpenCount) +
		1.5*float64(o.RecurrentCount)
	return math.Round(raw*10) / 10
}

func ownerInsight(rows []OwnerRow, excluded []string) (Insight, bool) {
	skip := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		skip[e] = true
	}
	for _, row := range rows {
		if skip[strings.ToLower(row.Owner)] {
			continue
		}
		if row.SaturationScore < OwnerMinScore {
			return Insight{}, false
		}
		sev := SeverityMedium
		if row.SaturationScore >= OwnerHighScore {
			sev = SeverityHigh
		}
		return Insight{
			ID:       "owner-saturation:" + row.Owner,
			Severity: sev,
			Headline: "Saturação de owner: " + row.Owner,
			Evidence: fmt.Sprintf("%d ativos, %d vencidos, %d bloqueados, %d com risco alto aberto.",
				row.ActiveCount, row.OverdueCount, row.BlockedCount, row.HighRiskOpenCount),
			RecommendedAction: "Rebalancear carga, revisar prioridades da semana e definir backup operacional.",
			Why:               "Concentração de sinais críticos no mesmo owner aumenta risco de atraso sistêmico.",
		}, true
	}
	return Insight{}, false
}

func projectInsight(rows []ProjectRow) (Insight, bool) {
	for _, row := range rows {
		if row.ActiveCount < ProjectMinActive || row.UnstableSignals < ProjectMinSignals {
			continue
		}
		sev := SeverityMedium
		if row.UnstableSignals >= ProjectHighSignals {
			sev = SeverityHigh
		}
		return Insight{
			ID:                "project-instability:" + row.Projeto,
			Severity:          sev,
			Headline:          "Projeto com instabilidade recorrente: " + row.Projeto,
			Evidence:          fmt.Sprintf("%d ativos e %d sinais de instabilidade agregados.", row.ActiveCount, row.UnstableSignals),
			RecommendedAction: "Executar revisão de plano do projeto e congelar novos compromissos até estabilização.",
			Why:               "Projeto com múltiplos sinais simultâneos tende a gerar efeito cascata entre entregas.",
		}, true
	}
	return Insight{}, false
}

func systemic(t Totals) []Insight {
	var out []Insight
	if t.Recurrent >= RecurrentMin {
		out = append(out, Insight{
			ID:                "recurrent-renegotiation",
			Severity:          pick(t.Recurrent >= RecurrentHigh, SeverityHigh, SeverityMedium),
			Headline:          "Padrão de reincidência em renegociações",
			Evidence:          fmt.Sprintf("%d compromisso(s) ativo(s) já foram renegociados 2+ vezes.", t.Recurrent),
			RecommendedAction: "Revisar critérios de compromisso e capacidade antes de assumir novos prazos.",
			Why:               "Renegociação reincidente indica baixa aderência entre planejamento e execução.",
		})
	}
	if t.Blocked >= BlockedMin {
		out = append(out, Insight{
			ID:                "blocked-pressure",
			Severity:          pick(t.Blocked >= BlockedHigh, SeverityHigh, SeverityMedium),
			Headline:          "Pressão de bloqueios no fluxo",
			Evidence:          fmt.Sprintf("%d compromisso(s) ativo(s) estão bloqueados por dependências.", t.Blocked),
			RecommendedAction: "Atacar desbloqueios críticos primeiro e reduzir entrada de novos itens dependentes.",
			Why:               "Acúmulo de bloqueios aumenta WIP improdutivo e reduz previsibilidade de entrega.",
		})
	}
	if t.ChecklistStalledNearDue >= StalledMin {
		out = append(out, Insight{
			ID:                "checklist-stalled-near-due",
			Severity:          pick(t.ChecklistStalledNearDue >= StalledHigh, SeverityHigh, SeverityMedium),
			Headline:          "Checklist sem progresso próximo ao prazo",
			Evidence:          fmt.Sprintf("%d compromisso(s) com checklist em 0%% e vencimento em até 2 dias.", t.ChecklistStalledNearDue),
			RecommendedAction: "Quebrar desbloqueios imediatos e revisar escopo mínimo viável da entrega.",
			Why:               "Checklist parado perto do prazo é sinal de risco de execução concentrado.",
		})
	}
	if t.ChecklistInconsistency >= 1 {
		out = append(out, Insight{
			ID:                "checklist-status-inconsistency",
			Severity:          SeverityLow,
			Headline:          "Inconsistência leve: checklist concluído com status aberto",
			Evidence:          fmt.Sprintf("%d compromisso(s) com checklist em 100%% e status diferente de DONE.", t.ChecklistInconsistency),
			RecommendedAction: "Revisar status dos compromissos para refletir conclusão operacional.",
			Why:               "Sinal de desalinhamento entre execução e status registrado no fluxo.",
		})
	}
	return out
}

func pick(cond bool, a, b Severity) Severity {
	if cond {
		return a
	}
	return b
}

func head[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
