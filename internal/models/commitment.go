package models

import (
	"math"
	"strings"
	"time"
)

// Status is the lifecycle state of a commitment.
type Status string

const (
	StatusBacklog   Status = "BACKLOG"
	StatusActive    Status = "ACTIVE"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusActive, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is DONE or CANCELLED.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Type classifies what kind of promise a commitment is.
type Type string

const (
	TypeDelivery  Type = "DELIVERY"
	TypeAlignment Type = "ALIGNMENT"
	TypeDecision  Type = "DECISION"
	TypeOp        Type = "OP"
)

// Valid reports whether t is a known commitment type.
func (t Type) Valid() bool {
	switch t {
	case TypeDelivery, TypeAlignment, TypeDecision, TypeOp:
		return true
	}
	return false
}

// Impact is the business impact of a commitment.
type Impact string

const (
	ImpactLow      Impact = "LOW"
	ImpactMedium   Impact = "MEDIUM"
	ImpactHigh     Impact = "HIGH"
	ImpactCritical Impact = "CRITICAL"
)

// Valid reports whether i is a known impact.
func (i Impact) Valid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical:
		return true
	}
	return false
}

// IsHigh reports whether i is HIGH or CRITICAL.
func (i Impact) IsHigh() bool {
	return i == ImpactHigh || i == ImpactCritical
}

// RecurrentMin is the renegotiation count from which a commitment is recurrent.
const RecurrentMin = 2

// Commitment is an accountable promise between an owner and a stakeholder.
type Commitment struct {
	ID               string          `json:"id"`
	Titulo           string          `json:"titulo"`
	Descricao        string          `json:"descricao,omitempty"`
	Projeto          string          `json:"projeto"`
	Area             string          `json:"area"`
	Owner            string          `json:"owner"`
	Stakeholder      string          `json:"stakeholder"`
	Dependencias     []string        `json:"dependencias"`
	DataEsperada     time.Time       `json:"dataEsperada"`
	Tipo             Type            `json:"tipo"`
	Impacto          Impact          `json:"impacto"`
	Status           Status          `json:"status"`
	HasImpedimento   bool            `json:"hasImpedimento"`
	Riscos           RiskList        `json:"riscos"`
	Checklist        []ChecklistItem `json:"checklist"`
	RenegociadoCount int             `json:"renegociadoCount"`
	CriadoEm         time.Time       `json:"criadoEm"`
	Historico        []AuditEvent    `json:"historico"`
}

// IsLive reports whether the commitment is still in flight (BACKLOG or ACTIVE).
func (c *Commitment) IsLive() bool {
	return c.Status == StatusBacklog || c.Status == StatusActive
}

// IsOverdue reports whether the due date falls on a day before now.
func (c *Commitment) IsOverdue(now time.Time) bool {
	return DayOf(c.DataEsperada, now).Before(StartOfDay(now))
}

// IsRecurrent reports whether the commitment has been renegotiated at least RecurrentMin times.
func (c *Commitment) IsRecurrent() bool {
	return c.RenegociadoCount >= RecurrentMin
}

// OpenRisks returns the risks still ABERTO or EM_MITIGACAO.
func (c *Commitment) OpenRisks() []Risk {
	var open []Risk
	for _, r := range c.Riscos {
		if r.IsOpen() {
			open = append(open, r)
		}
	}
	return open
}

// HasOpenRisk reports whether any risk is still open.
func (c *Commitment) HasOpenRisk() bool {
	for _, r := range c.Riscos {
		if r.IsOpen() {
			return true
		}
	}
	return false
}

// HasOpenHighRisk reports whether any open risk has a matrix score of at least HighRiskMin.
func (c *Commitment) HasOpenHighRisk() bool {
	for _, r := range c.Riscos {
		if r.IsOpen() && r.MatrixScore() >= HighRiskMin {
			return true
		}
	}
	return false
}

// IsUnstable reports whether the commitment carries any instability signal:
// overdue, blocked, open high risk or recurrent.
func (c *Commitment) IsUnstable(now time.Time) bool {
	return c.UnstableSignals(now) > 0
}

// UnstableSignals counts overdue, blocked, recurrent and open-high-risk signals.
func (c *Commitment) UnstableSignals(now time.Time) int {
	n := 0
	if c.IsOverdue(now) {
		n++
	}
	if c.HasImpedimento {
		n++
	}
	if c.IsRecurrent() {
		n++
	}
	if c.HasOpenHighRisk() {
		n++
	}
	return n
}

// DoneAt returns the timestamp of the most recent STATUS_CHANGE event into DONE.
func (c *Commitment) DoneAt() (time.Time, bool) {
	var latest time.Time
	found := false
	for _, ev := range c.Historico {
		if ev.Tipo != EventStatusChange || ev.ValorNovo != string(StatusDone) {
			continue
		}
		if !found || ev.Timestamp.After(latest) {
			latest = ev.Timestamp
			found = true
		}
	}
	return latest, found
}

// Progress summarises checklist completion.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Percent   int `json:"percent"`
}

// ChecklistProgress returns completion counts; Percent is rounded and 0 for an empty checklist.
func (c *Commitment) ChecklistProgress() Progress {
	p := Progress{Total: len(c.Checklist)}
	for _, item := range c.Checklist {
		if item.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}

// Clone returns a deep copy so callers can derive a new value without
// touching the slices of the original.
func (c Commitment) Clone() Commitment {
	out := c
	out.Dependencias = append([]string(nil), c.Dependencias...)
	out.Riscos = append([]Risk(nil), c.Riscos...)
	out.Checklist = append([]ChecklistItem(nil), c.Checklist...)
	out.Historico = append([]AuditEvent(nil), c.Historico...)
	return out
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayOf returns the calendar day of t as seen from ref's location.
func DayOf(t, ref time.Time) time.Time {
	return StartOfDay(t.In(ref.Location()))
}

// AddDays shifts a day boundary by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	da, db := StartOfDay(a), StartOfDay(b.In(a.Location()))
	return int(math.Round(db.Sub(da).Hours() / 24))
}

// dateLayouts are the accepted inputs for due dates and timestamps.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 timestamp or a plain yyyy-mm-dd date.
// Plain dates are interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
