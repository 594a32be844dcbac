package telegraph

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/flowguard/internal/config"
	"github.com/zulandar/flowguard/internal/events"
	"github.com/zulandar/flowguard/internal/metrics"
	"github.com/zulandar/flowguard/internal/models"
	"github.com/zulandar/flowguard/internal/reflection"
)

type staticSource struct {
	collection []models.Commitment
	err        error
}

func (s *staticSource) Load(context.Context) ([]models.Commitment, error) {
	return s.collection, s.err
}

type memCooldowns struct {
	shown map[string]time.Time
}

func (m *memCooldowns) Cooldowns(context.Context) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(m.shown))
	for k, v := range m.shown {
		out[k] = v
	}
	return out, nil
}

func (m *memCooldowns) MarkShown(_ context.Context, keys []string, at time.Time) error {
	if m.shown == nil {
		m.shown = make(map[string]time.Time)
	}
	for _, k := range keys {
		m.shown[k] = at
	}
	return nil
}

func testDaemon(t *testing.T, src Source, surfacer *reflection.Surfacer) (*Daemon, *MockAdapter, *events.Recorder) {
	t.Helper()
	adapter := NewMockAdapter()
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec := &events.Recorder{}
	d, err := NewDaemon(DaemonOpts{
		Source:      src,
		Surfacer:    surfacer,
		Adapter:     adapter,
		Config:      config.TelegraphConfig{WeeklyBriefCron: "0 9 * * 1", FeedCron: "0 9 * * *"},
		Events:      rec,
		Metrics:     metrics.New(),
		Environment: "dev",
		Now:         func() time.Time { return refNow },
		Out:         &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	return d, adapter, rec
}

func TestNewDaemon_Validation(t *testing.T) {
	if _, err := NewDaemon(DaemonOpts{Adapter: NewMockAdapter()}); err == nil {
		t.Error("NewDaemon without source should fail")
	}
	if _, err := NewDaemon(DaemonOpts{Source: &staticSource{}}); err == nil {
		t.Error("NewDaemon without adapter should fail")
	}
}

func TestDaemon_SendBrief(t *testing.T) {
	src := &staticSource{collection: []models.Commitment{
		activeCommitment("1", "Migrar billing", refNow.AddDate(0, 0, -2)),
	}}
	d, adapter, rec := testDaemon(t, src, nil)

	if err := d.SendBrief(context.Background()); err != nil {
		t.Fatalf("SendBrief: %v", err)
	}
	msg, ok := adapter.LastSent()
	if !ok {
		t.Fatal("nothing sent")
	}
	if !strings.HasPrefix(msg.Title, "Brief semanal") {
		t.Errorf("Title = %q", msg.Title)
	}
	if len(rec.Topics) != 1 || rec.Topics[0] != events.TopicBriefCompiled {
		t.Fatalf("topics = %v, want [%s]", rec.Topics, events.TopicBriefCompiled)
	}
	ev, ok := rec.Events[0].(events.BriefCompiled)
	if !ok {
		t.Fatalf("event type = %T", rec.Events[0])
	}
	if ev.Environment != "dev" || ev.Totals["AT_RISK"] != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestDaemon_SendBrief_Errors(t *testing.T) {
	boom := errors.New("boom")

	d, _, _ := testDaemon(t, &staticSource{err: boom}, nil)
	if err := d.SendBrief(context.Background()); !errors.Is(err, boom) {
		t.Errorf("load error = %v, want wrapped %v", err, boom)
	}

	d, adapter, rec := testDaemon(t, &staticSource{}, nil)
	adapter.FailSends(boom)
	if err := d.SendBrief(context.Background()); !errors.Is(err, boom) {
		t.Errorf("send error = %v, want wrapped %v", err, boom)
	}
	if len(rec.Topics) != 0 {
		t.Errorf("topics = %v, want none after failed send", rec.Topics)
	}
}

func TestDaemon_SendFeed(t *testing.T) {
	c := activeCommitment("1", "Migrar billing", refNow.AddDate(0, 0, 5))
	c.RenegociadoCount = 2
	store := &memCooldowns{}
	surfacer := &reflection.Surfacer{Store: store, Environment: "dev"}
	d, adapter, _ := testDaemon(t, &staticSource{collection: []models.Commitment{c}}, surfacer)

	n, err := d.SendFeed(context.Background())
	if err != nil {
		t.Fatalf("SendFeed: %v", err)
	}
	if n != 1 || adapter.SentCount() != 1 {
		t.Fatalf("sent items = %d messages = %d, want 1 and 1", n, adapter.SentCount())
	}

	// Cooldown suppresses the repeat; nothing is sent.
	n, err = d.SendFeed(context.Background())
	if err != nil {
		t.Fatalf("SendFeed again: %v", err)
	}
	if n != 0 || adapter.SentCount() != 1 {
		t.Errorf("repeat sent items = %d messages = %d, want 0 and 1", n, adapter.SentCount())
	}
}

func TestDaemon_SendFeed_FailedSendKeepsItems(t *testing.T) {
	c := activeCommitment("1", "Migrar billing", refNow.AddDate(0, 0, 5))
	c.RenegociadoCount = 2
	store := &memCooldowns{}
	surfacer := &reflection.Surfacer{Store: store, Environment: "dev"}
	d, adapter, _ := testDaemon(t, &staticSource{collection: []models.Commitment{c}}, surfacer)

	boom := errors.New("slack down")
	adapter.FailSends(boom)
	if _, err := d.SendFeed(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("SendFeed error = %v, want wrapped %v", err, boom)
	}
	if len(store.shown) != 0 {
		t.Fatalf("cooldowns after failed send = %v, want none", store.shown)
	}

	adapter.FailSends(nil)
	n, err := d.SendFeed(context.Background())
	if err != nil {
		t.Fatalf("SendFeed after recovery: %v", err)
	}
	if n != 1 || adapter.SentCount() != 1 {
		t.Errorf("sent items = %d messages = %d, want 1 and 1", n, adapter.SentCount())
	}
	if len(store.shown) != 1 {
		t.Errorf("cooldowns = %v, want the delivered item", store.shown)
	}
}

func TestDaemon_SendFeed_NoSurfacer(t *testing.T) {
	d, adapter, _ := testDaemon(t, &staticSource{}, nil)
	n, err := d.SendFeed(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("SendFeed = %d, %v; want 0, nil", n, err)
	}
	if adapter.SentCount() != 0 {
		t.Errorf("SentCount = %d, want 0", adapter.SentCount())
	}
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	adapter := NewMockAdapter()
	out := &bytes.Buffer{}
	d, err := NewDaemon(DaemonOpts{
		Source:  &staticSource{},
		Adapter: adapter,
		Config:  config.TelegraphConfig{WeeklyBriefCron: "0 9 * * 1"},
		Out:     out,
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !adapter.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("adapter never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if adapter.Connected() {
		t.Error("adapter still connected after Run returned")
	}
}

func TestTimerChan_Nil(t *testing.T) {
	if timerChan(nil) != nil {
		t.Error("timerChan(nil) should be nil")
	}
}
