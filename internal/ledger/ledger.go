// Package ledger owns the commitment lifecycle: creation, editing, status
// transitions, checklist mutation and the append-only audit trail.
//
// Every operation returns a new Commitment value and never mutates the one it
// was given. hasImpedimento is not touched here; callers run
// RecomputeImpediments over the whole collection after each mutation, or use
// Service which does it for them.
package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/flowguard/internal/idgen"
	"github.com/zulandar/flowguard/internal/models"
)

// ValidationError is a domain rule violation that aborts the operation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrNotFound is returned by Service when a commitment id does not resolve.
var ErrNotFound = errors.New("ledger: commitment not found")

// Validation messages surfaced to the initiating caller.
const (
	MsgTitleRequired    = "Título é obrigatório"
	MsgDateInPast       = "A data esperada não pode estar no passado"
	MsgDateRequired     = "Data de entrega é obrigatória"
	MsgDateMovedToPast  = "Ao alterar a data, ela não pode ser transferida para o passado"
	MsgChecklistText    = "Texto do item é obrigatório"
	MsgInvalidStatus    = "Status inválido"
	MsgInvalidType      = "Tipo inválido"
	MsgInvalidImpact    = "Impacto inválido"
	MsgOwnerRequired    = "Owner é obrigatório"
	MsgStakeholder      = "Stakeholder é obrigatório"
	MsgDateInvalid      = "Data esperada inválida"
	MsgChecklistClosed  = "Checklist não pode ser alterado em compromisso concluído ou cancelado"
	dateDisplayLayout   = "02/01/2006"
	createEventDesc     = "Compromisso criado com status BACKLOG"
	editedNoDiffDesc    = "Compromisso editado"
	editedFieldsHeading = "Campos editados:"
)

// CreateOpts is the caller-facing input for Create and Edit: every
// commitment field except id, status and audit fields.
type CreateOpts struct {
	Titulo       string          `json:"titulo"`
	Descricao    string          `json:"descricao"`
	Projeto      string          `json:"projeto"`
	Area         string          `json:"area"`
	Owner        string          `json:"owner"`
	Stakeholder  string          `json:"stakeholder"`
	Dependencias []string        `json:"dependencias"`
	DataEsperada time.Time       `json:"dataEsperada"`
	Tipo         models.Type     `json:"tipo"`
	Impacto      models.Impact   `json:"impacto"`
	Riscos       models.RiskList `json:"riscos"`
}

// RequireParties checks the owner and stakeholder that the form and the
// API demand. Create and Edit themselves accept them empty.
func RequireParties(opts CreateOpts) error {
	if strings.TrimSpace(opts.Owner) == "" {
		return invalid(MsgOwnerRequired)
	}
	if strings.TrimSpace(opts.Stakeholder) == "" {
		return invalid(MsgStakeholder)
	}
	return nil
}

// ParseDueDate reads a yyyy-mm-dd date or ISO-8601 timestamp in loc. Empty
// input yields the zero time so Create reports the missing date.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := models.ParseDate(s, loc)
	if err != nil {
		return time.Time{}, invalid(MsgDateInvalid)
	}
	return t, nil
}

// Ledger applies lifecycle operations. Now and the id sources are injectable
// so tests get deterministic output.
type Ledger struct {
	Now     func() time.Time
	EventID func() string
	RiskID  func() string
	ItemID  func() string
}

// New returns a Ledger using the wall clock and random ids.
func New() *Ledger {
	return &Ledger{
		Now:     time.Now,
		EventID: idgen.Event,
		RiskID:  idgen.Risk,
		ItemID:  idgen.Checklist,
	}
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *Ledger) eventID() string {
	if l.EventID == nil {
		return idgen.Event()
	}
	return l.EventID()
}

func (l *Ledger) riskID() string {
	if l.RiskID == nil {
		return idgen.Risk()
	}
	return l.RiskID()
}

func (l *Ledger) itemID() string {
	if l.ItemID == nil {
		return idgen.Checklist()
	}
	return l.ItemID()
}

// NextID returns max(numeric existing ids)+1, or "1" when none parse.
func NextID(existingIDs []string) string {
	highest := 0
	found := false
	for _, id := range existingIDs {
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			continue
		}
		if !found || n > highest {
			highest = n
			found = true
		}
	}
	if !found {
		return "1"
	}
	return strconv.Itoa(highest + 1)
}

// Create validates opts and returns a new BACKLOG commitment with a single CREATE event.
func (l *Ledger) Create(opts CreateOpts, existingIDs []string) (models.Commitment, error) {
	title := strings.TrimSpace(opts.Titulo)
	if title == "" {
		return models.Commitment{}, invalid(MsgTitleRequired)
	}
	now := l.now()
	if opts.DataEsperada.IsZero() || models.DayOf(opts.DataEsperada, now).Before(models.StartOfDay(now)) {
		return models.Commitment{}, invalid(MsgDateInPast)
	}
	tipo, impacto, err := normalizeKinds(opts.Tipo, opts.Impacto)
	if err != nil {
		return models.Commitment{}, err
	}

	id := NextID(existingIDs)
	return models.Commitment{
		ID:               id,
		Titulo:           title,
		Descricao:        strings.TrimSpace(opts.Descricao),
		Projeto:          strings.TrimSpace(opts.Projeto),
		Area:             strings.TrimSpace(opts.Area),
		Owner:            strings.TrimSpace(opts.Owner),
		Stakeholder:      strings.TrimSpace(opts.Stakeholder),
		Dependencias:     withoutSelf(SanitizeDependencies(opts.Dependencias), id),
		DataEsperada:     opts.DataEsperada,
		Tipo:             tipo,
		Impacto:          impacto,
		Status:           models.StatusBacklog,
		HasImpedimento:   false,
		Riscos:           models.SanitizeRisks(opts.Riscos, l.riskID),
		Checklist:        []models.ChecklistItem{},
		RenegociadoCount: 0,
		CriadoEm:         now,
		Historico: []models.AuditEvent{{
			ID:        l.eventID(),
			Tipo:      models.EventCreate,
			Timestamp: now,
			Descricao: createEventDesc,
		}},
	}, nil
}

// Edit applies opts to c. A changed due date is a renegotiation: it emits a
// RENEGOTIATION event and bumps RenegociadoCount. Other tracked changes emit
// EDIT. When nothing changed, c is returned as is with no new event.
func (l *Ledger) Edit(c models.Commitment, opts CreateOpts) (models.Commitment, error) {
	title := strings.TrimSpace(opts.Titulo)
	if title == "" {
		return c, invalid(MsgTitleRequired)
	}
	if opts.DataEsperada.IsZero() {
		return c, invalid(MsgDateRequired)
	}
	tipo, impacto, err := normalizeKinds(opts.Tipo, opts.Impacto)
	if err != nil {
		return c, err
	}

	now := l.now()
	today := models.StartOfDay(now)
	newDay := models.DayOf(opts.DataEsperada, now)
	oldDay := models.DayOf(c.DataEsperada, now)
	renegotiated := !newDay.Equal(oldDay)
	if renegotiated && newDay.Before(today) {
		return c, invalid(MsgDateMovedToPast)
	}

	newRisks := models.SanitizeRisks(opts.Riscos, l.riskID)
	oldRisks := models.SanitizeRisks(c.Riscos, l.riskID)
	newDeps := withoutSelf(SanitizeDependencies(opts.Dependencias), c.ID)
	oldDeps := SanitizeDependencies(c.Dependencias)

	next := models.Commitment{
		Titulo:      title,
		Descricao:   strings.TrimSpace(opts.Descricao),
		Projeto:     strings.TrimSpace(opts.Projeto),
		Area:        strings.TrimSpace(opts.Area),
		Owner:       strings.TrimSpace(opts.Owner),
		Stakeholder: strings.TrimSpace(opts.Stakeholder),
		Tipo:        tipo,
		Impacto:     impacto,
	}

	var changes []string
	diff := func(label, before, after string) {
		if before != after {
			changes = append(changes, fmt.Sprintf("%s: %s -> %s", label, before, after))
		}
	}
	diff("Título", c.Titulo, next.Titulo)
	diff("Projeto", c.Projeto, next.Projeto)
	diff("Owner", c.Owner, next.Owner)
	diff("Stakeholder", c.Stakeholder, next.Stakeholder)
	diff("Tipo", string(c.Tipo), string(next.Tipo))
	diff("Impacto", string(c.Impacto), string(next.Impacto))
	if renegotiated {
		changes = append(changes, fmt.Sprintf("Data: %s -> %s",
			oldDay.Format(dateDisplayLayout), newDay.Format(dateDisplayLayout)))
	}
	if !models.RisksEqual(oldRisks, newRisks) {
		changes = append(changes, fmt.Sprintf("Riscos: %d -> %d", len(oldRisks), len(newRisks)))
	}
	if !equalStrings(oldDeps, newDeps) {
		changes = append(changes, fmt.Sprintf("Dependências: %d -> %d", len(oldDeps), len(newDeps)))
	}

	if len(changes) == 0 && c.Area == next.Area && c.Descricao == next.Descricao {
		return c, nil
	}

	desc := editedNoDiffDesc
	if len(changes) > 0 {
		desc = editedFieldsHeading + "\n" + strings.Join(changes, "\n")
	}
	kind := models.EventEdit
	if renegotiated {
		kind = models.EventRenegotiation
	}

	out := c.Clone()
	out.Titulo = next.Titulo
	out.Descricao = next.Descricao
	out.Projeto = next.Projeto
	out.Area = next.Area
	out.Owner = next.Owner
	out.Stakeholder = next.Stakeholder
	out.Tipo = next.Tipo
	out.Impacto = next.Impacto
	out.DataEsperada = opts.DataEsperada
	out.Riscos = newRisks
	out.Dependencias = newDeps
	if renegotiated {
		out.RenegociadoCount++
	}
	out.Historico = append(out.Historico, models.AuditEvent{
		ID:        l.eventID(),
		Tipo:      kind,
		Timestamp: now,
		Descricao: desc,
	})
	return out, nil
}

// ChangeStatus moves c to status, recording a STATUS_CHANGE event. The same
// value is returned when the status is unchanged.
func (l *Ledger) ChangeStatus(c models.Commitment, status models.Status) (models.Commitment, error) {
	if !status.Valid() {
		return c, invalid(MsgInvalidStatus)
	}
	if c.Status == status {
		return c, nil
	}
	out := c.Clone()
	out.Status = status
	out.Historico = append(out.Historico, models.AuditEvent{
		ID:            l.eventID(),
		Tipo:          models.EventStatusChange,
		Timestamp:     l.now(),
		Descricao:     fmt.Sprintf("Status alterado de %s para %s", c.Status, status),
		ValorAnterior: string(c.Status),
		ValorNovo:     string(status),
	})
	return out, nil
}

// SanitizeDependencies trims ids, drops empties and removes duplicates while
// keeping first-seen order.
func SanitizeDependencies(deps []string) []string {
	out := make([]string, 0, len(deps))
	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// RecomputeImpediments is the dependency-integrity pass. It returns a copy of
// the collection where HasImpedimento is true iff at least one dependency
// resolves to a commitment that is neither DONE nor CANCELLED. Unknown
// dependency ids never block.
func RecomputeImpediments(collection []models.Commitment) []models.Commitment {
	status := make(map[string]models.Status, len(collection))
	for _, c := range collection {
		status[c.ID] = c.Status
	}
	out := make([]models.Commitment, len(collection))
	for i, c := range collection {
		blocked := false
		for _, dep := range c.Dependencias {
			if s, ok := status[dep]; ok && !s.IsTerminal() {
				blocked = true
				break
			}
		}
		c.HasImpedimento = blocked
		out[i] = c
	}
	return out
}

// ChecklistProgress reports total, completed and the rounded completion percent.
func ChecklistProgress(c models.Commitment) models.Progress {
	return c.ChecklistProgress()
}

func normalizeKinds(t models.Type, i models.Impact) (models.Type, models.Impact, error) {
	if t == "" {
		t = models.TypeDelivery
	}
	if i == "" {
		i = models.ImpactMedium
	}
	if !t.Valid() {
		return t, i, invalid(MsgInvalidType)
	}
	if !i.Valid() {
		return t, i, invalid(MsgInvalidImpact)
	}
	return t, i, nil
}

func withoutSelf(deps []string, id string) []string {
	out := deps[:0:0]
	for _, d := range deps {
		if d != id {
			out = append(out, d)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
