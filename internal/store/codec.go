package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/zulandar/flowguard/internal/ledger"
	"github.com/zulandar/flowguard/internal/models"
)

// flexString accepts a JSON string, number or boolean.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null":
		*f = ""
		return nil
	case "true", "false":
		*f = flexString(data)
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("store: expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexTime accepts any layout models.ParseDate understands, or epoch
// milliseconds. Plain dates are read in the local zone.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			return nil
		}
		ms, nerr := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
		if nerr != nil {
			return fmt.Errorf("store: invalid date %s", data)
		}
		f.Time = time.UnixMilli(ms)
		return nil
	}
	if s == "" {
		return nil
	}
	t, err := models.ParseDate(s, time.Local)
	if err != nil {
		return fmt.Errorf("store: invalid date %q: %w", s, err)
	}
	f.Time = t
	return nil
}

type wireChecklistItem struct {
	ID          flexString `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CreatedAt   flexTime   `json:"createdAt"`
	CompletedAt *flexTime  `json:"completedAt"`
}

type wireAuditEvent struct {
	ID            flexString       `json:"id"`
	Tipo          models.EventType `json:"tipo"`
	Timestamp     flexTime         `json:"timestamp"`
	Descricao     string           `json:"descricao"`
	ValorAnterior flexString       `json:"valorAnterior"`
	ValorNovo     flexString       `json:"valorNovo"`
}

type wireCommitment struct {
	ID               flexString          `json:"id"`
	Titulo           string              `json:"titulo"`
	Descricao        string              `json:"descricao"`
	Projeto          string              `json:"projeto"`
	Area             string              `json:"area"`
	Owner            string              `json:"owner"`
	Stakeholder      string              `json:"stakeholder"`
	Dependencias     []flexString        `json:"dependencias"`
	DataEsperada     flexTime            `json:"dataEsperada"`
	Tipo             models.Type         `json:"tipo"`
	Impacto          models.Impact       `json:"impacto"`
	Status           models.Status       `json:"status"`
	HasImpedimento   bool                `json:"hasImpedimento"`
	Riscos           models.RiskList     `json:"riscos"`
	Checklist        []wireChecklistItem `json:"checklist"`
	RenegociadoCount int                 `json:"renegociadoCount"`
	CriadoEm         flexTime            `json:"criadoEm"`
	Historico        []wireAuditEvent    `json:"historico"`
}

// Decode parses a serialized collection, tolerating the legacy shapes:
// numeric ids, string risks, plain yyyy-mm-dd dates and missing slices.
func Decode(payload []byte) ([]models.Commitment, error) {
	var wire []wireCommitment
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, err
	}
	out := make([]models.Commitment, 0, len(wire))
	for _, w := range wire {
		c := models.Commitment{
			ID:               string(w.ID),
			Titulo:           w.Titulo,
			Descricao:        w.Descricao,
			Projeto:          w.Projeto,
			Area:             w.Area,
			Owner:            w.Owner,
			Stakeholder:      w.Stakeholder,
			Dependencias:     make([]string, 0, len(w.Dependencias)),
			DataEsperada:     w.DataEsperada.Time,
			Tipo:             w.Tipo,
			Impacto:          w.Impacto,
			Status:           w.Status,
			HasImpedimento:   w.HasImpedimento,
			Riscos:           w.Riscos,
			Checklist:        make([]models.ChecklistItem, 0, len(w.Checklist)),
			RenegociadoCount: w.RenegociadoCount,
			CriadoEm:         w.CriadoEm.Time,
			Historico:        make([]models.AuditEvent, 0, len(w.Historico)),
		}
		for _, d := range w.Dependencias {
			c.Dependencias = append(c.Dependencias, string(d))
		}
		c.Dependencias = ledger.SanitizeDependencies(c.Dependencias)
		if c.Riscos == nil {
			c.Riscos = models.RiskList{}
		}
		for _, item := range w.Checklist {
			ci := models.ChecklistItem{
				ID:        string(item.ID),
				Text:      item.Text,
				Completed: item.Completed,
				CreatedAt: item.CreatedAt.Time,
			}
			if item.CompletedAt != nil && !item.CompletedAt.IsZero() {
				at := item.CompletedAt.Time
				ci.CompletedAt = &at
			}
			c.Checklist = append(c.Checklist, ci)
		}
		for _, ev := range w.Historico {
			c.Historico = append(c.Historico, models.AuditEvent{
				ID:            string(ev.ID),
				Tipo:          ev.Tipo,
				Timestamp:     ev.Timestamp.Time,
				Descricao:     ev.Descricao,
				ValorAnterior: string(ev.ValorAnterior),
				ValorNovo:     string(ev.ValorNovo),
			})
		}
		out = append(out, c)
	}
	return out, nil
}

// Encode serializes a collection with ISO-8601 timestamps.
func Encode(collection []models.Commitment) ([]byte, error) {
	if collection == nil {
		collection = []models.Commitment{}
	}
	return json.Marshal(collection)
}
