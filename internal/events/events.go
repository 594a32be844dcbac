// Package events publishes ledger and feed activity to a message bus.
package events

import (
	"context"

	"github.com/zulandar/flowguard/internal/models"
)

// Topic constants.
const (
	TopicAuditAppended   = "flowguard.audit.appended"
	TopicReflectionShown = "flowguard.reflection.shown"
	TopicBriefCompiled   = "flowguard.brief.compiled"
)

// Publisher delivers JSON-encodable events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// AuditAppended is emitted once per audit event written by a ledger mutation.
type AuditAppended struct {
	Environment  string            `json:"environment"`
	CommitmentID string            `json:"commitment_id"`
	Event        models.AuditEvent `json:"event"`
}

// ReflectionShown is emitted when feed items are delivered to a person.
type ReflectionShown struct {
	Environment string   `json:"environment"`
	DedupKeys   []string `json:"dedup_keys"`
}

// BriefCompiled is emitted after a scheduled weekly brief is sent.
type BriefCompiled struct {
	Environment string         `json:"environment"`
	Totals      map[string]int `json:"totals"`
}
