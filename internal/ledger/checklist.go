package ledger

import (
	"fmt"
	"strings"

	"github.com/zulandar/flowguard/internal/models"
)

// AddChecklistItem appends a new open item and a checklist_item_added event.
// Terminal commitments are not rejected here; callers disable the action.
func (l *Ledger) AddChecklistItem(c models.Commitment, text string) (models.Commitment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return c, invalid(MsgChecklistText)
	}
	now := l.now()
	item := models.ChecklistItem{
		ID:        l.itemID(),
		Text:      text,
		Completed: false,
		CreatedAt: now,
	}
	out := c.Clone()
	out.Checklist = append(out.Checklist, item)
	out.Historico = append(out.Historico, models.AuditEvent{
		ID:        l.eventID(),
		Tipo:      models.EventChecklistAdded,
		Timestamp: now,
		Descricao: fmt.Sprintf("Item adicionado ao checklist: %s", text),
		ValorNovo: item.ID,
	})
	return out, nil
}

// ToggleChecklistItem flips completion of itemID. Completing emits
// checklist_item_completed; reopening emits an EDIT event. Unknown ids
// return c unchanged.
func (l *Ledger) ToggleChecklistItem(c models.Commitment, itemID string) models.Commitment {
	idx := findItem(c.Checklist, itemID)
	if idx < 0 {
		return c
	}
	now := l.now()
	out := c.Clone()
	item := out.Checklist[idx]
	item.Completed = !item.Completed

	ev := models.AuditEvent{
		ID:            l.eventID(),
		Timestamp:     now,
		ValorAnterior: fmt.Sprintf("%t", !item.Completed),
		ValorNovo:     fmt.Sprintf("%t", item.Completed),
	}
	if item.Completed {
		at := now
		item.CompletedAt = &at
		ev.Tipo = models.EventChecklistComplete
		ev.Descricao = fmt.Sprintf("Item do checklist concluído: %s", item.Text)
	} else {
		item.CompletedAt = nil
		ev.Tipo = models.EventEdit
		ev.Descricao = fmt.Sprintf("Item do checklist reaberto: %s", item.Text)
	}
	out.Checklist[idx] = item
	out.Historico = append(out.Historico, ev)
	return out
}

// RemoveChecklistItem deletes itemID and appends checklist_item_removed.
// Unknown ids return c unchanged.
func (l *Ledger) RemoveChecklistItem(c models.Commitment, itemID string) models.Commitment {
	idx := findItem(c.Checklist, itemID)
	if idx < 0 {
		return c
	}
	removed := c.Checklist[idx]
	out := c.Clone()
	out.Checklist = append(out.Checklist[:idx:idx], out.Checklist[idx+1:]...)
	out.Historico = append(out.Historico, models.AuditEvent{
		ID:            l.eventID(),
		Tipo:          models.EventChecklistRemoved,
		Timestamp:     l.now(),
		Descricao:     fmt.Sprintf("Item removido do checklist: %s", removed.Text),
		ValorAnterior: removed.ID,
	})
	return out
}

func findItem(items []models.ChecklistItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
