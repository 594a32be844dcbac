package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/zulandar/flowguard/internal/models"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	var p Publisher = r
	ev := AuditAppended{Environment: "dev", CommitmentID: "7", Event: models.AuditEvent{Tipo: models.EventCreate}}
	if err := p.Publish(context.Background(), TopicAuditAppended, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(r.Topics) != 1 || r.Topics[0] != TopicAuditAppended {
		t.Errorf("Topics = %v", r.Topics)
	}
	got, ok := r.Events[0].(AuditAppended)
	if !ok || got.CommitmentID != "7" {
		t.Errorf("Events[0] = %#v", r.Events[0])
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = &NoopPublisher{}
	if err := p.Publish(context.Background(), TopicBriefCompiled, BriefCompiled{}); err != nil {
		t.Errorf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", nats.Timeout(200*time.Millisecond))
	if err == nil {
		t.Fatal("expected connect error")
	}
	if !strings.Contains(err.Error(), "events: connect to NATS") {
		t.Errorf("error = %v, want events: prefix", err)
	}
}

func TestTopicsAreNamespaced(t *testing.T) {
	for _, topic := range []string{TopicAuditAppended, TopicReflectionShown, TopicBriefCompiled} {
		if !strings.HasPrefix(topic, "flowguard.") {
			t.Errorf("topic %q not under flowguard.", topic)
		}
	}
}
