package slack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/zulandar/flowguard/internal/telegraph"
)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu       sync.Mutex
	authResp *slackapi.AuthTestResponse
	authErr  error
	posted   []postedMessage
	postErr  error
	postFn   func() error
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func newMockSlackClient() *mockSlackClient {
	return &mockSlackClient{
		authResp: &slackapi.AuthTestResponse{UserID: "U_BOT_123", Team: "flow"},
	}
}

func (m *mockSlackClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return m.authResp, m.authErr
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postFn != nil {
		if err := m.postFn(); err != nil {
			return "", "", err
		}
	}
	if m.postErr != nil {
		return "", "", m.postErr
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockSlackClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func (m *mockSlackClient) lastPosted() postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[len(m.posted)-1]
}

// --- Helper to create a connected adapter ---

func newTestAdapter(t *testing.T) (*Adapter, *mockSlackClient) {
	t.Helper()
	client := newMockSlackClient()
	a, err := New(AdapterOpts{Client: client, ChannelID: "C_DEFAULT"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, client
}

// Compile-time interface compliance checks.
var _ telegraph.Adapter = (*Adapter)(nil)
var _ telegraph.Namer = (*Adapter)(nil)

// --- Constructor tests ---

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(AdapterOpts{ChannelID: "C1"})
	if err == nil || !strings.Contains(err.Error(), "bot token") {
		t.Fatalf("expected bot token error, got: %v", err)
	}
}

func TestNew_WithToken(t *testing.T) {
	a, err := New(AdapterOpts{BotToken: "xoxb-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Name() != "slack" {
		t.Errorf("Name = %q, want slack", a.Name())
	}
}

// --- Connect tests ---

func TestConnect_Success(t *testing.T) {
	a, _ := newTestAdapter(t)
	if !a.connected {
		t.Error("connected = false after Connect")
	}
}

func TestConnect_AuthError(t *testing.T) {
	client := newMockSlackClient()
	client.authErr = errors.New("invalid_auth")
	a, _ := New(AdapterOpts{Client: client})

	err := a.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "auth test") {
		t.Fatalf("expected auth test error, got: %v", err)
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("Connect after Close should fail")
	}
}

func TestConnect_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
}

// --- Send tests ---

func TestSend_ExplicitChannel(t *testing.T) {
	a, client := newTestAdapter(t)
	if err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "C_OTHER", Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := client.lastPosted().channelID; got != "C_OTHER" {
		t.Errorf("channel = %q, want C_OTHER", got)
	}
}

func TestSend_DefaultChannel(t *testing.T) {
	a, client := newTestAdapter(t)
	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := client.lastPosted().channelID; got != "C_DEFAULT" {
		t.Errorf("channel = %q, want C_DEFAULT", got)
	}
}

func TestSend_NoChannel(t *testing.T) {
	client := newMockSlackClient()
	a, _ := New(AdapterOpts{Client: client})
	a.Connect(context.Background())

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "no channel") {
		t.Fatalf("expected no channel error, got: %v", err)
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient(), ChannelID: "C1"})
	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "x"}); err == nil {
		t.Fatal("Send before Connect should fail")
	}
}

func TestSend_PostError(t *testing.T) {
	a, client := newTestAdapter(t)
	client.postErr = errors.New("channel_not_found")

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "post message") {
		t.Fatalf("expected post message error, got: %v", err)
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	a, client := newTestAdapter(t)
	calls := 0
	client.postFn = func() error {
		calls++
		if calls < 3 {
			return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
		}
		return nil
	}

	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if client.postedCount() != 1 {
		t.Errorf("posted = %d, want 1", client.postedCount())
	}
}

// --- Close tests ---

func TestClose_Idempotent(t *testing.T) {
	a, _ := newTestAdapter(t)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("double Close: %v", err)
	}
}

// --- Message building tests ---

func TestMessageText(t *testing.T) {
	tests := []struct {
		name string
		msg  telegraph.OutboundMessage
		want string
	}{
		{"text only", telegraph.OutboundMessage{Text: "hello"}, "hello"},
		{"title only", telegraph.OutboundMessage{Title: "Brief"}, "*Brief*"},
		{"both", telegraph.OutboundMessage{Title: "Brief", Text: "Em risco: 1"}, "*Brief*\nEm risco: 1"},
		{"empty", telegraph.OutboundMessage{}, ""},
	}
	for _, tt := range tests {
		if got := messageText(tt.msg); got != tt.want {
			t.Errorf("%s: messageText = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestBuildMessageOptions(t *testing.T) {
	event := telegraph.FormattedEvent{Title: "Em risco", Body: "#1", Color: "#fff"}
	tests := []struct {
		name string
		msg  telegraph.OutboundMessage
		want int
	}{
		{"text only", telegraph.OutboundMessage{Text: "hello"}, 1},
		{"events with text", telegraph.OutboundMessage{Text: "x", Events: []telegraph.FormattedEvent{event}}, 2},
		{"events only", telegraph.OutboundMessage{Events: []telegraph.FormattedEvent{event}}, 1},
	}
	for _, tt := range tests {
		if got := len(buildMessageOptions(tt.msg)); got != tt.want {
			t.Errorf("%s: options = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestEventToAttachment(t *testing.T) {
	evt := telegraph.FormattedEvent{
		Title:    "Em risco (2)",
		Body:     "• #1 Migrar billing",
		Color:    "#e53935",
		Severity: "error",
		Fields: []telegraph.Field{
			{Name: "Projeto", Value: "Core", Short: true},
			{Name: "Score", Value: "92", Short: true},
		},
	}

	att := eventToAttachment(evt)
	if att.Title != evt.Title || att.Fallback != evt.Title {
		t.Errorf("title = %q fallback = %q", att.Title, att.Fallback)
	}
	if att.Text != evt.Body {
		t.Errorf("text = %q", att.Text)
	}
	if att.Color != "#e53935" {
		t.Errorf("color = %q", att.Color)
	}
	if len(att.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(att.Fields))
	}
	if att.Fields[0].Title != "Projeto" || !att.Fields[0].Short {
		t.Errorf("field[0] = %+v", att.Fields[0])
	}
}

// --- retryOnRateLimit tests ---

func TestRetryOnRateLimit_Success(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("err = %v calls = %d, want nil and 1", err, calls)
	}
}

func TestRetryOnRateLimit_NonRateLimitError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err = %v calls = %d, want boom and 1", err, calls)
	}
}

func TestRetryOnRateLimit_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	})
	var rle *slackapi.RateLimitedError
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxRetries+1)
	}
}

func TestRetryOnRateLimit_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retryOnRateLimit(ctx, func() error {
		return &slackapi.RateLimitedError{RetryAfter: time.Second}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
