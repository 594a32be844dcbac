// Package premortem assembles the context and prompt used to ask an advisor
// why a commitment is most likely to fail.
package premortem

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

// Risk signal names attached to at-risk commitments.
const (
	SignalOverdue   = "vencido"
	SignalBlocked   = "bloqueado"
	SignalRecurrent = "reincidente"
	SignalHighRisk  = "risco_alto_aberto"
)

// Limits on the collected context.
const (
	MaxAtRisk             = 5
	MaxLastRenegotiations = 3
)

const dateKey = "2006-01-02"

// CommitmentSnapshot is the commitment under analysis.
type CommitmentSnapshot struct {
	ID             string        `json:"id"`
	Titulo         string        `json:"titulo"`
	Descricao      string        `json:"descricao"`
	Projeto        string        `json:"projeto"`
	Owner          string        `json:"owner"`
	Stakeholder    string        `json:"stakeholder"`
	Tipo           models.Type   `json:"tipo"`
	Impacto        models.Impact `json:"impacto"`
	Status         models.Status `json:"status"`
	DueDate        string        `json:"dueDate"`
	HasImpedimento bool          `json:"hasImpedimento"`
}

// ProjectSummary counts the commitments sharing the project.
type ProjectSummary struct {
	Projeto   string `json:"projeto"`
	Total     int    `json:"total"`
	Active    int    `json:"active"`
	Done      int    `json:"done"`
	Cancelled int    `json:"cancelled"`
}

// AtRisk is another live commitment of the project carrying risk signals.
type AtRisk struct {
	ID      string   `json:"id"`
	Titulo  string   `json:"titulo"`
	Owner   string   `json:"owner"`
	DueDate string   `json:"dueDate"`
	Signals []string `json:"signals"`
}

// Dependency is a snapshot of a resolved dependency.
type Dependency struct {
	ID      string        `json:"id"`
	Titulo  string        `json:"titulo"`
	Status  models.Status `json:"status"`
	DueDate string        `json:"dueDate"`
	AtRisk  bool          `json:"atRisk"`
}

// History summarizes postponements.
type History struct {
	RenegotiationCount int      `json:"renegotiationCount"`
	LastRenegotiations []string `json:"lastRenegotiations"`
}

// Context is everything the advisor sees about a commitment.
type Context struct {
	Commitment               CommitmentSnapshot `json:"commitment"`
	ProjectSummary           ProjectSummary     `json:"projectSummary"`
	ProjectWIP               int                `json:"projectWip"`
	ProjectAtRiskCommitments []AtRisk           `json:"projectAtRiskCommitments"`
	Dependencies             []Dependency       `json:"dependencies"`
	PostponementHistory      History            `json:"postponementHistory"`
}

// Signals returns the risk signals of c as of now.
func Signals(c *models.Commitment, now time.Time) []string {
	signals := []string{}
	if c.IsOverdue(now) {
		signals = append(signals, SignalOverdue)
	}
	if c.HasImpedimento {
		signals = append(signals, SignalBlocked)
	}
	if c.IsRecurrent() {
		signals = append(signals, SignalRecurrent)
	}
	if c.HasOpenHighRisk() {
		signals = append(signals, SignalHighRisk)
	}
	return signals
}

// BuildContext collects the context for c from the whole collection. extra
// events are merged with c's own history when counting renegotiations.
func BuildContext(c models.Commitment, collection []models.Commitment, now time.Time, extra ...models.AuditEvent) Context {
	ctx := Context{
		Commitment: CommitmentSnapshot{
			ID:             c.ID,
			Titulo:         c.Titulo,
			Descricao:      c.Descricao,
			Projeto:        c.Projeto,
			Owner:          c.Owner,
			Stakeholder:    c.Stakeholder,
			Tipo:           c.Tipo,
			Impacto:        c.Impacto,
			Status:         c.Status,
			DueDate:        c.DataEsperada.Format(dateKey),
			HasImpedimento: c.HasImpedimento,
		},
		ProjectSummary:           ProjectSummary{Projeto: c.Projeto},
		ProjectAtRiskCommitments: []AtRisk{},
		Dependencies:             []Dependency{},
	}

	byID := make(map[string]*models.Commitment, len(collection))
	for i := range collection {
		item := &collection[i]
		byID[item.ID] = item
		if item.Projeto != c.Projeto {
			continue
		}
		ctx.ProjectSummary.Total++
		switch item.Status {
		case models.StatusActive:
			ctx.ProjectSummary.Active++
		case models.StatusDone:
			ctx.ProjectSummary.Done++
		case models.StatusCancelled:
			ctx.ProjectSummary.Cancelled++
		}
		if !item.IsLive() {
			continue
		}
		ctx.ProjectWIP++
		if item.ID == c.ID || len(ctx.ProjectAtRiskCommitments) == MaxAtRisk {
			continue
		}
		if signals := Signals(item, now); len(signals) > 0 {
			ctx.ProjectAtRiskCommitments = append(ctx.ProjectAtRiskCommitments, AtRisk{
				ID:      item.ID,
				Titulo:  item.Titulo,
				Owner:   item.Owner,
				DueDate: item.DataEsperada.Format(dateKey),
				Signals: signals,
			})
		}
	}

	for _, depID := range c.Dependencias {
		dep, ok := byID[depID]
		if !ok {
			continue
		}
		ctx.Dependencies = append(ctx.Dependencies, Dependency{
			ID:      dep.ID,
			Titulo:  dep.Titulo,
			Status:  dep.Status,
			DueDate: dep.DataEsperada.Format(dateKey),
			AtRisk:  len(Signals(dep, now)) > 0,
		})
	}

	ctx.PostponementHistory = history(c, extra)
	return ctx
}

func history(c models.Commitment, extra []models.AuditEvent) History {
	var renegotiations []models.AuditEvent
	for _, ev := range append(append([]models.AuditEvent(nil), c.Historico...), extra...) {
		if ev.Tipo == models.EventRenegotiation {
			renegotiations = append(renegotiations, ev)
		}
	}
	sort.SliceStable(renegotiations, func(i, j int) bool {
		return renegotiations[i].Timestamp.After(renegotiations[j].Timestamp)
	})

	h := History{RenegotiationCount: c.RenegociadoCount, LastRenegotiations: []string{}}
	if h.RenegotiationCount == 0 {
		h.RenegotiationCount = len(renegotiations)
	}
	for i, ev := range renegotiations {
		if i == MaxLastRenegotiations {
			break
		}
		h.LastRenegotiations = append(h.LastRenegotiations,
			fmt.Sprintf("%s: %s", ev.Timestamp.Format(dateKey), ev.Descricao))
	}
	return h
}

// BuildPrompt renders the instruction prompt with ctx embedded as JSON.
func BuildPrompt(ctx Context) (string, error) {
	payload, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("premortem: encode context: %w", err)
	}
	return strings.Join([]string{
		"Você é um analista de Pre-Mortem para execução de compromissos.",
		"Assuma que o compromisso falhou e explique os fatores estruturais mais prováveis.",
		"Responda SOMENTE em JSON no formato:",
		`{"riskLevel":"low|medium|high","causes":[...],"criticalQuestions":[...],"mitigations":[...]}`,
		"Regras: até 3 causes, até 2 criticalQuestions, até 2 mitigations, resposta total entre 250 e 300 palavras.",
		"Use linguagem objetiva e orientada a ação, sem markdown.",
		"Contexto: " + string(payload),
	}, "\n"), nil
}
