// Package graph derives explicit and heuristic relationships between live
// commitments and groups unstable projects into cascade clusters.
package graph

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

// EdgeKind distinguishes declared dependencies from inferred correlation.
type EdgeKind string

const (
	KindExplicit EdgeKind = "EXPLICIT_DEPENDENCY"
	KindImplicit EdgeKind = "IMPLICIT_CORRELATION"
)

// Severity of a cascade cluster.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Heuristic weights and limits.
const (
	WeightSameProject     = 0.35
	WeightSameOwner       = 0.2
	WeightSameStakeholder = 0.15
	WeightDueWithin3      = 0.2
	WeightDueWithin7      = 0.1
	WeightBothHighImpact  = 0.1
	WeightOpenHighRisk    = 0.1

	MinImplicitConfidence = 0.55
	MaxImplicitConfidence = 0.95
	MaxEdges              = 20

	ClusterMinCommitments = 2
	ClusterMinSignals     = 2
	ClusterHighSignals    = 4
)

const (
	explicitReason = "Dependência explícita cadastrada no compromisso"
	resultWhy      = "Correlação gerada por heurísticas determinísticas (dependência explícita + sinais de proximidade/risco)."
)

// Node is one live commitment in the graph.
type Node struct {
	ID      string        `json:"id"`
	Titulo  string        `json:"titulo"`
	Projeto string        `json:"projeto"`
	Owner   string        `json:"owner"`
	Status  models.Status `json:"status"`
	Impacto models.Impact `json:"impacto"`
	Signals int           `json:"signals"`
	DueDate time.Time     `json:"dataEsperada"`
}

// Edge links source to target. For explicit edges source is the dependency;
// for implicit edges source is the commitment due first.
type Edge struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Kind       EdgeKind `json:"kind"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Cluster is a project whose live commitments accumulate instability signals.
type Cluster struct {
	ID            string   `json:"id"`
	Projeto       string   `json:"projeto"`
	CommitmentIDs []string `json:"commitmentIds"`
	Signals       int      `json:"signals"`
	Severity      Severity `json:"severity"`
	Why           string   `json:"why"`
}

// Result is the full graph view.
type Result struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	Clusters    []Cluster `json:"clusters"`
	Why         string    `json:"why"`
}

// Mode reports whether AI enrichment was applied.
type Mode string

const (
	ModeDeterministic Mode = "deterministic"
	ModeHybrid        Mode = "hybrid"
)

// RunResult wraps a Result with the analysis mode.
type RunResult struct {
	Status string `json:"status"`
	Mode   Mode   `json:"mode"`
	Result Result `json:"result"`
}

// Analyze runs Build and tags the result as deterministic.
func Analyze(collection []models.Commitment, now time.Time) RunResult {
	return RunResult{Status: "ok", Mode: ModeDeterministic, Result: Build(collection, now)}
}

// Build computes nodes, the top edges and cascade clusters over live commitments.
func Build(collection []models.Commitment, now time.Time) Result {
	var live []models.Commitment
	for _, c := range collection {
		if c.IsLive() {
			live = append(live, c)
		}
	}
	byID := make(map[string]bool, len(live))
	nodes := make([]Node, 0, len(live))
	for _, c := range live {
		byID[c.ID] = true
		nodes = append(nodes, Node{
			ID: c.ID, Titulo: c.Titulo, Projeto: c.Projeto, Owner: c.Owner,
			Status: c.Status, Impacto: c.Impacto, Signals: c.UnstableSignals(now),
			DueDate: c.DataEsperada,
		})
	}

	edges := []Edge{}
	linked := make(map[[2]string]bool)
	for _, c := range live {
		for _, dep := range c.Dependencias {
			if !byID[dep] || dep == c.ID || linked[[2]string{dep, c.ID}] {
				continue
			}
			linked[[2]string{dep, c.ID}] = true
			linked[[2]string{c.ID, dep}] = true
			edges = append(edges, Edge{
				ID:         fmt.Sprintf("EXPLICIT:%s->%s", dep, c.ID),
				Source:     dep,
				Target:     c.ID,
				Kind:       KindExplicit,
				Confidence: 1,
				Reasons:    []string{explicitReason},
			})
		}
	}

	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			a, b := live[i], live[j]
			if linked[[2]string{a.ID, b.ID}] {
				continue
			}
			if e, ok := implicitEdge(a, b, now); ok {
				edges = append(edges, e)
			}
		}
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Confidence > edges[j].Confidence })
	if len(edges) > MaxEdges {
		edges = edges[:MaxEdges]
	}

	return Result{
		GeneratedAt: now,
		Nodes:       nodes,
		Edges:       edges,
		Clusters:    clusters(live, now),
		Why:         resultWhy,
	}
}

func implicitEdge(a, b models.Commitment, now time.Time) (Edge, bool) {
	var (
		confidence float64
		reasons    []string
	)
	add := func(w float64, reason string) {
		confidence += w
		reasons = append(reasons, reason)
	}
	if a.Projeto != "" && a.Projeto == b.Projeto {
		add(WeightSameProject, "Mesmo projeto")
	}
	if a.Owner != "" && a.Owner == b.Owner {
		add(WeightSameOwner, "Mesmo owner")
	}
	if a.Stakeholder != "" && a.Stakeholder == b.Stakeholder {
		add(WeightSameStakeholder, "Mesmo stakeholder")
	}
	gap := models.DaysBetween(a.DataEsperada.In(now.Location()), b.DataEsperada)
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap <= 3:
		add(WeightDueWithin3, "Datas esperadas muito próximas")
	case gap <= 7:
		add(WeightDueWithin7, "Datas esperadas na mesma janela semanal")
	}
	if a.Impacto.IsHigh() && b.Impacto.IsHigh() {
		add(WeightBothHighImpact, "Alto impacto sistêmico nos dois compromissos")
	}
	if a.HasOpenHighRisk() || b.HasOpenHighRisk() {
		add(WeightOpenHighRisk, "Risco alto aberto em pelo menos um compromisso")
	}
	// Compare on the rounded value: 0.35+0.2 is not exactly 0.55 in float64.
	confidence = round2(confidence)
	if confidence < MinImplicitConfidence {
		return Edge{}, false
	}
	confidence = math.Min(MaxImplicitConfidence, confidence)

	source, target := a, b
	if b.DataEsperada.Before(a.DataEsperada) {
		source, target = b, a
	}
	return Edge{
		ID:         fmt.Sprintf("IMPLICIT:%s->%s", source.ID, target.ID),
		Source:     source.ID,
		Target:     target.ID,
		Kind:       KindImplicit,
		Confidence: confidence,
		Reasons:    reasons,
	}, true
}

func clusters(live []models.Commitment, now time.Time) []Cluster {
	type group struct {
		ids     []string
		signals int
	}
	var order []string
	groups := make(map[string]*group)
	for _, c := range live {
		g, ok := groups[c.Projeto]
		if !ok {
			g = &group{}
			groups[c.Projeto] = g
			order = append(order, c.Projeto)
		}
		g.ids = append(g.ids, c.ID)
		g.signals += c.UnstableSignals(now)
	}

	out := []Cluster{}
	for _, p := range order {
		g := groups[p]
		if len(g.ids) < ClusterMinCommitments || g.signals < ClusterMinSignals {
			continue
		}
		sev := SeverityMedium
		if g.signals >= ClusterHighSignals {
			sev = SeverityHigh
		}
		out = append(out, Cluster{
			ID:            "CLUSTER:" + p,
			Projeto:       p,
			CommitmentIDs: g.ids,
			Signals:       g.signals,
			Severity:      sev,
			Why: fmt.Sprintf("Projeto com %d sinais de instabilidade distribuídos em %d compromisso(s) ativo(s).",
				g.signals, len(g.ids)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Signals > out[j].Signals })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
