package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zulandar/flowguard/internal/models"
)

// DependencyContext describes a dependency the draft points at.
type DependencyContext struct {
	ID      string `json:"id"`
	Titulo  string `json:"titulo"`
	Projeto string `json:"projeto,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Input is a draft commitment submitted for review.
type Input struct {
	Titulo            string              `json:"titulo"`
	Descricao         string              `json:"descricao"`
	Projeto           string              `json:"projeto"`
	Owner             string              `json:"owner"`
	Stakeholder       string              `json:"stakeholder"`
	DataEsperada      string              `json:"dataEsperada"`
	Tipo              string              `json:"tipo"`
	Impacto           string              `json:"impacto"`
	Riscos            []string            `json:"riscos"`
	Dependencias      []string            `json:"dependencias"`
	DependencyContext []DependencyContext `json:"dependencyContext,omitempty"`
}

// Normalize checks the required fields and drops dependency context rows
// without id or title. It returns false when the input is not analyzable.
func (in Input) Normalize() (Input, bool) {
	for _, v := range []string{in.Titulo, in.Owner, in.Stakeholder, in.DataEsperada, in.Tipo, in.Impacto} {
		if strings.TrimSpace(v) == "" {
			return in, false
		}
	}
	if in.Riscos == nil {
		in.Riscos = []string{}
	}
	if in.Dependencias == nil {
		in.Dependencias = []string{}
	}
	deps := make([]DependencyContext, 0, len(in.DependencyContext))
	for _, d := range in.DependencyContext {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Titulo) == "" {
			continue
		}
		deps = append(deps, d)
	}
	in.DependencyContext = deps
	return in, true
}

// FromCommitment builds the review input for a stored commitment. Open
// risks become risk lines and dependencies resolve against collection.
func FromCommitment(c models.Commitment, collection []models.Commitment) Input {
	in := Input{
		Titulo:       c.Titulo,
		Descricao:    c.Descricao,
		Projeto:      c.Projeto,
		Owner:        c.Owner,
		Stakeholder:  c.Stakeholder,
		Tipo:         string(c.Tipo),
		Impacto:      string(c.Impacto),
		Riscos:       []string{},
		Dependencias: append([]string{}, c.Dependencias...),
	}
	if !c.DataEsperada.IsZero() {
		in.DataEsperada = c.DataEsperada.Format("2006-01-02")
	}
	for _, r := range c.OpenRisks() {
		in.Riscos = append(in.Riscos, r.Descricao)
	}
	byID := make(map[string]models.Commitment, len(collection))
	for _, other := range collection {
		byID[other.ID] = other
	}
	for _, id := range c.Dependencias {
		dep, ok := byID[id]
		if !ok {
			continue
		}
		in.DependencyContext = append(in.DependencyContext, DependencyContext{
			ID:      dep.ID,
			Titulo:  dep.Titulo,
			Projeto: dep.Projeto,
			Status:  string(dep.Status),
		})
	}
	return in
}

// Output is the quality review returned by the model.
type Output struct {
	QualityScore       float64  `json:"qualityScore"`
	Ambiguities        []string `json:"ambiguities"`
	RiskHints          []string `json:"riskHints"`
	RewriteSuggestions []string `json:"rewriteSuggestions"`
	RecommendedActions []string `json:"recommendedActions"`
	Why                string   `json:"why"`
}

// RiskLevel is the pre-mortem verdict.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PreMortemOutput is the structured pre-mortem.
type PreMortemOutput struct {
	RiskLevel         RiskLevel `json:"riskLevel"`
	Causes            []string  `json:"causes"`
	CriticalQuestions []string  `json:"criticalQuestions"`
	Mitigations       []string  `json:"mitigations"`
}

// ErrInvalidOutput marks model output that does not match the contract.
var ErrInvalidOutput = errors.New("advisor: invalid output")

// Pre-mortem list limits.
const (
	MaxCauses            = 3
	MaxCriticalQuestions = 2
	MaxMitigations       = 2
)

// ParseOutput validates a quality review. qualityScore must be a number in
// 0..100 and why must be non-empty.
func ParseOutput(data []byte) (Output, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return Output{}, fmt.Errorf("%w: not a JSON object", ErrInvalidOutput)
	}
	score, ok := toNumber(raw["qualityScore"])
	if !ok {
		return Output{}, fmt.Errorf("%w: qualityScore is not numeric", ErrInvalidOutput)
	}
	if score < 0 || score > 100 {
		return Output{}, fmt.Errorf("%w: qualityScore %v out of range", ErrInvalidOutput, score)
	}
	why := strings.TrimSpace(toString(raw["why"]))
	if why == "" {
		return Output{}, fmt.Errorf("%w: why is required", ErrInvalidOutput)
	}
	return Output{
		QualityScore:       score,
		Ambiguities:        toStrings(raw["ambiguities"], 0),
		RiskHints:          toStrings(raw["riskHints"], 0),
		RewriteSuggestions: toStrings(raw["rewriteSuggestions"], 0),
		RecommendedActions: toStrings(raw["recommendedActions"], 0),
		Why:                why,
	}, nil
}

// ParsePreMortem validates a pre-mortem and truncates its lists.
func ParsePreMortem(data []byte) (PreMortemOutput, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return PreMortemOutput{}, fmt.Errorf("%w: not a JSON object", ErrInvalidOutput)
	}
	level := RiskLevel(strings.ToLower(strings.TrimSpace(toString(raw["riskLevel"]))))
	switch level {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return PreMortemOutput{}, fmt.Errorf("%w: riskLevel %q", ErrInvalidOutput, level)
	}
	return PreMortemOutput{
		RiskLevel:         level,
		Causes:            toStrings(raw["causes"], MaxCauses),
		CriticalQuestions: toStrings(raw["criticalQuestions"], MaxCriticalQuestions),
		Mitigations:       toStrings(raw["mitigations"], MaxMitigations),
	}, nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// toStrings keeps the non-blank entries of a JSON array, up to limit when
// limit > 0. Anything that is not an array yields an empty list.
func toStrings(v any, limit int) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		s := strings.TrimSpace(toString(item))
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
