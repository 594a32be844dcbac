package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/zulandar/flowguard/internal/idgen"
)

// RiskCategory groups risks by their source.
type RiskCategory string

const (
	RiskPrazo       RiskCategory = "PRAZO"
	RiskEscopo      RiskCategory = "ESCOPO"
	RiskDependencia RiskCategory = "DEPENDENCIA"
	RiskRecursos    RiskCategory = "RECURSOS"
	RiskQualidade   RiskCategory = "QUALIDADE"
	RiskNegocio     RiskCategory = "NEGOCIO"
	RiskOutro       RiskCategory = "OUTRO"
)

// Valid reports whether c is a known category.
func (c RiskCategory) Valid() bool {
	switch c {
	case RiskPrazo, RiskEscopo, RiskDependencia, RiskRecursos, RiskQualidade, RiskNegocio, RiskOutro:
		return true
	}
	return false
}

// NormalizeCategory maps unknown values to OUTRO.
func NormalizeCategory(v string) RiskCategory {
	c := RiskCategory(v)
	if c.Valid() {
		return c
	}
	return RiskOutro
}

// MitigationStatus tracks how a risk is being handled.
type MitigationStatus string

const (
	MitigationAberto      MitigationStatus = "ABERTO"
	MitigationEmMitigacao MitigationStatus = "EM_MITIGACAO"
	MitigationMitigado    MitigationStatus = "MITIGADO"
	MitigationAceito      MitigationStatus = "ACEITO"
)

// Valid reports whether s is a known mitigation status.
func (s MitigationStatus) Valid() bool {
	switch s {
	case MitigationAberto, MitigationEmMitigacao, MitigationMitigado, MitigationAceito:
		return true
	}
	return false
}

// NormalizeMitigation maps unknown values to ABERTO.
func NormalizeMitigation(v string) MitigationStatus {
	s := MitigationStatus(v)
	if s.Valid() {
		return s
	}
	return MitigationAberto
}

// MatrixLevel is one axis of the 3x3 risk matrix.
type MatrixLevel string

const (
	LevelLow    MatrixLevel = "LOW"
	LevelMedium MatrixLevel = "MEDIUM"
	LevelHigh   MatrixLevel = "HIGH"
)

// Weight returns 1, 2 or 3 for LOW, MEDIUM and HIGH.
func (l MatrixLevel) Weight() int {
	switch l {
	case LevelLow:
		return 1
	case LevelHigh:
		return 3
	default:
		return 2
	}
}

// NormalizeLevel maps unknown values to MEDIUM.
func NormalizeLevel(v string) MatrixLevel {
	switch l := MatrixLevel(v); l {
	case LevelLow, LevelMedium, LevelHigh:
		return l
	}
	return LevelMedium
}

// HighRiskMin is the matrix score from which an open risk counts as high.
const HighRiskMin = 6

// Risk is a structured risk entry attached to a commitment.
type Risk struct {
	ID              string           `json:"id"`
	Descricao       string           `json:"descricao"`
	Categoria       RiskCategory     `json:"categoria"`
	StatusMitigacao MitigationStatus `json:"statusMitigacao"`
	Probabilidade   MatrixLevel      `json:"probabilidade"`
	Impacto         MatrixLevel      `json:"impacto"`
}

// MatrixScore is probability times impact, 1 through 9.
func (r Risk) MatrixScore() int {
	return r.Probabilidade.Weight() * r.Impacto.Weight()
}

// IsOpen reports whether the risk is ABERTO or EM_MITIGACAO.
func (r Risk) IsOpen() bool {
	return r.StatusMitigacao == MitigationAberto || r.StatusMitigacao == MitigationEmMitigacao
}

// LegacyRisk builds the synthetic risk used when risks were stored as free text.
// Empty text yields no risk.
func LegacyRisk(text string, newID func() string) []Risk {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Risk{}
	}
	return []Risk{{
		ID:              newID(),
		Descricao:       text,
		Categoria:       RiskOutro,
		StatusMitigacao: MitigationAberto,
		Probabilidade:   LevelMedium,
		Impacto:         LevelMedium,
	}}
}

// SanitizeRisks drops risks without a description, trims text, normalizes
// enum values and assigns ids where missing.
func SanitizeRisks(in []Risk, newID func() string) []Risk {
	out := make([]Risk, 0, len(in))
	for _, r := range in {
		desc := strings.TrimSpace(r.Descricao)
		if desc == "" {
			continue
		}
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = newID()
		}
		out = append(out, Risk{
			ID:              id,
			Descricao:       desc,
			Categoria:       NormalizeCategory(string(r.Categoria)),
			StatusMitigacao: NormalizeMitigation(string(r.StatusMitigacao)),
			Probabilidade:   NormalizeLevel(string(r.Probabilidade)),
			Impacto:         NormalizeLevel(string(r.Impacto)),
		})
	}
	return out
}

// RisksEqual compares two risk lists on description, category, mitigation
// status and matrix levels, ignoring ids.
func RisksEqual(a, b []Risk) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Descricao != b[i].Descricao ||
			a[i].Categoria != b[i].Categoria ||
			a[i].StatusMitigacao != b[i].StatusMitigacao ||
			a[i].Probabilidade != b[i].Probabilidade ||
			a[i].Impacto != b[i].Impacto {
			return false
		}
	}
	return true
}

// RiskList decodes either a JSON array of risks or a legacy free-text string.
type RiskList []Risk

// UnmarshalJSON accepts `"texto"`, `[{...}]` or null.
func (l *RiskList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = RiskList{}
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*l = RiskList(LegacyRisk(text, NewRiskID))
		return nil
	}
	var raw []Risk
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	*l = RiskList(SanitizeRisks(raw, NewRiskID))
	return nil
}

// NewRiskID is the id source used when decoding risks. Tests may replace it.
var NewRiskID = func() string { return idgen.Risk() }
