package models

import "time"

// EventType identifies an audit trail entry.
type EventType string

const (
	EventCreate            EventType = "CREATE"
	EventStatusChange      EventType = "STATUS_CHANGE"
	EventEdit              EventType = "EDIT"
	EventRenegotiation     EventType = "RENEGOTIATION"
	EventChecklistAdded    EventType = "checklist_item_added"
	EventChecklistComplete EventType = "checklist_item_completed"
	EventChecklistRemoved  EventType = "checklist_item_removed"
)

// AuditEvent is one append-only entry in a commitment's history.
type AuditEvent struct {
	ID            string    `json:"id"`
	Tipo          EventType `json:"tipo"`
	Timestamp     time.Time `json:"timestamp"`
	Descricao     string    `json:"descricao"`
	ValorAnterior string    `json:"valorAnterior,omitempty"`
	ValorNovo     string    `json:"valorNovo,omitempty"`
}

// ChecklistItem is a single step inside a commitment.
type ChecklistItem struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
