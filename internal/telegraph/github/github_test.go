package github

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/zulandar/flowguard/internal/telegraph"
)

type mockIssues struct {
	created []*gh.IssueRequest
	owner   string
	repo    string
	err     error
	fn      func() error
}

func (m *mockIssues) Create(ctx context.Context, owner, repo string, issue *gh.IssueRequest) (*gh.Issue, *gh.Response, error) {
	if m.fn != nil {
		if err := m.fn(); err != nil {
			return nil, nil, err
		}
	}
	if m.err != nil {
		return nil, nil, m.err
	}
	m.owner, m.repo = owner, repo
	m.created = append(m.created, issue)
	n := len(m.created)
	return &gh.Issue{Number: gh.Ptr(n), HTMLURL: gh.Ptr("https://github.com/acme/ops/issues/1")}, nil, nil
}

type mockRepos struct {
	err error
}

func (m *mockRepos) Get(ctx context.Context, owner, repo string) (*gh.Repository, *gh.Response, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return &gh.Repository{Name: gh.Ptr(repo)}, nil, nil
}

func newTestAdapter(t *testing.T, labels ...string) (*Adapter, *mockIssues) {
	t.Helper()
	issues := &mockIssues{}
	a, err := New(AdapterOpts{Owner: "acme", Repo: "ops", Labels: labels, Issues: issues, Repos: &mockRepos{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.baseWait = time.Millisecond
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a, issues
}

// Compile-time interface compliance checks.
var _ telegraph.Adapter = (*Adapter)(nil)
var _ telegraph.Namer = (*Adapter)(nil)

func TestNew_Validation(t *testing.T) {
	if _, err := New(AdapterOpts{Owner: "acme", Repo: "ops"}); err == nil || !strings.Contains(err.Error(), "token") {
		t.Errorf("missing token: err = %v", err)
	}
	if _, err := New(AdapterOpts{Token: "ghp_x", Owner: "acme"}); err == nil || !strings.Contains(err.Error(), "owner and repo") {
		t.Errorf("missing repo: err = %v", err)
	}
	a, err := New(AdapterOpts{Token: "ghp_x", Owner: "acme", Repo: "ops"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Name() != "github" {
		t.Errorf("Name = %q, want github", a.Name())
	}
}

func TestConnect_RepoError(t *testing.T) {
	a, _ := New(AdapterOpts{Owner: "acme", Repo: "ops", Issues: &mockIssues{}, Repos: &mockRepos{err: errors.New("404")}})
	err := a.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "acme/ops") {
		t.Fatalf("err = %v, want repository error", err)
	}
}

func TestConnect_AfterClose(t *testing.T) {
	a, _ := newTestAdapter(t)
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("Connect after Close should fail")
	}
}

func TestSend_CreatesIssue(t *testing.T) {
	a, issues := newTestAdapter(t, "flowguard", "brief")
	msg := telegraph.OutboundMessage{
		Title: "Brief semanal 09/03/2026",
		Text:  "Em risco: 1",
		Events: []telegraph.FormattedEvent{{
			Title:  "Em risco (1)",
			Body:   "• #1 Migrar billing",
			Fields: []telegraph.Field{{Name: "Critério", Value: "vencidos | bloqueados"}},
		}},
	}
	if err := a.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(issues.created) != 1 {
		t.Fatalf("created = %d, want 1", len(issues.created))
	}
	if issues.owner != "acme" || issues.repo != "ops" {
		t.Errorf("target = %s/%s, want acme/ops", issues.owner, issues.repo)
	}
	req := issues.created[0]
	if req.GetTitle() != "Brief semanal 09/03/2026" {
		t.Errorf("title = %q", req.GetTitle())
	}
	body := req.GetBody()
	for _, want := range []string{"Em risco: 1", "### Em risco (1)", "• #1 Migrar billing", "| Critério | vencidos \\| bloqueados |"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if req.Labels == nil || len(*req.Labels) != 2 {
		t.Errorf("labels = %v, want 2", req.Labels)
	}
	if a.LastIssueURL() == "" {
		t.Error("LastIssueURL should be set after Send")
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Owner: "acme", Repo: "ops", Issues: &mockIssues{}})
	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "x"}); err == nil {
		t.Fatal("Send before Connect should fail")
	}
}

func TestSend_Error(t *testing.T) {
	a, issues := newTestAdapter(t)
	issues.err = errors.New("422 validation failed")
	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "create issue") {
		t.Fatalf("err = %v, want create issue error", err)
	}
}

func TestSend_RetriesOnSecondaryRateLimit(t *testing.T) {
	a, issues := newTestAdapter(t)
	calls := 0
	issues.fn = func() error {
		calls++
		if calls == 1 {
			return &gh.AbuseRateLimitError{RetryAfter: gh.Ptr(time.Millisecond)}
		}
		return nil
	}
	if err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 2 || len(issues.created) != 1 {
		t.Errorf("calls = %d created = %d, want 2 and 1", calls, len(issues.created))
	}
}

func TestBuildIssueRequest_TitleFallback(t *testing.T) {
	tests := []struct {
		msg  telegraph.OutboundMessage
		want string
	}{
		{telegraph.OutboundMessage{Title: "T", Text: "a\nb"}, "T"},
		{telegraph.OutboundMessage{Text: "first\nsecond"}, "first"},
		{telegraph.OutboundMessage{}, "flowguard"},
	}
	for _, tt := range tests {
		if got := buildIssueRequest(tt.msg, nil).GetTitle(); got != tt.want {
			t.Errorf("title(%+v) = %q, want %q", tt.msg, got, tt.want)
		}
	}
	if req := buildIssueRequest(telegraph.OutboundMessage{Text: "x"}, nil); req.Labels != nil {
		t.Errorf("labels = %v, want nil", req.Labels)
	}
}

func TestRateLimitWait(t *testing.T) {
	a := &Adapter{baseWait: time.Second}

	if _, ok := a.rateLimitWait(errors.New("boom"), 0); ok {
		t.Error("plain error should not be a rate limit")
	}
	if d, ok := a.rateLimitWait(&gh.AbuseRateLimitError{RetryAfter: gh.Ptr(5 * time.Second)}, 0); !ok || d != 5*time.Second {
		t.Errorf("abuse wait = %v, %v; want 5s, true", d, ok)
	}
	if d, ok := a.rateLimitWait(&gh.AbuseRateLimitError{RetryAfter: gh.Ptr(time.Hour)}, 0); !ok || d != maxWait {
		t.Errorf("capped wait = %v, %v; want %v, true", d, ok, maxWait)
	}
	past := &gh.RateLimitError{Rate: gh.Rate{Reset: gh.Timestamp{Time: time.Now().Add(-time.Minute)}}}
	if d, ok := a.rateLimitWait(past, 2); !ok || d != 4*time.Second {
		t.Errorf("primary wait = %v, %v; want 4s, true", d, ok)
	}
}
