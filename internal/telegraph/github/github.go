// Package github implements the telegraph Adapter for GitHub by filing each
// outbound message as an issue.
package github

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/zulandar/flowguard/internal/telegraph"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// maxWait caps how long a single rate limit retry sleeps.
	maxWait = time.Minute
)

// issuesService abstracts the go-github calls we use, enabling test mocks.
type issuesService interface {
	Create(ctx context.Context, owner, repo string, issue *gh.IssueRequest) (*gh.Issue, *gh.Response, error)
}

// repositoriesService checks that the target repository is reachable.
type repositoriesService interface {
	Get(ctx context.Context, owner, repo string) (*gh.Repository, *gh.Response, error)
}

// Adapter implements telegraph.Adapter for GitHub issues.
type Adapter struct {
	issues    issuesService
	repos     repositoriesService
	token     string
	owner     string
	repo      string
	labels    []string
	mu        sync.Mutex
	connected bool
	closed    bool
	lastURL   string
	baseWait  time.Duration
}

// AdapterOpts holds parameters for creating a GitHub Adapter.
type AdapterOpts struct {
	Token  string
	Owner  string
	Repo   string
	Labels []string
	// For testing: inject mock services instead of the real API.
	Issues issuesService
	Repos  repositoriesService
}

// New creates a GitHub Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Issues == nil && opts.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}
	return &Adapter{
		issues:   opts.Issues,
		repos:    opts.Repos,
		token:    opts.Token,
		owner:    opts.Owner,
		repo:     opts.Repo,
		labels:   append([]string(nil), opts.Labels...),
		baseWait: time.Second,
	}, nil
}

// Name implements telegraph.Namer.
func (a *Adapter) Name() string { return "github" }

// Connect builds the authenticated client and checks the repository exists.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("github: adapter already closed")
	}
	if a.connected {
		return nil
	}
	if a.issues == nil {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.token})
		client := gh.NewClient(oauth2.NewClient(ctx, ts))
		a.issues = client.Issues
		a.repos = client.Repositories
	}
	if a.repos != nil {
		if _, _, err := a.repos.Get(ctx, a.owner, a.repo); err != nil {
			return fmt.Errorf("github: get repository %s/%s: %w", a.owner, a.repo, err)
		}
	}
	a.connected = true
	return nil
}

// Send files msg as a new issue.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("github: not connected")
	}
	a.mu.Unlock()

	req := buildIssueRequest(msg, a.labels)
	var issue *gh.Issue
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		issue, _, apiErr = a.issues.Create(ctx, a.owner, a.repo, req)
		return apiErr
	})
	if err != nil {
		return fmt.Errorf("github: create issue: %w", err)
	}

	a.mu.Lock()
	a.lastURL = issue.GetHTMLURL()
	a.mu.Unlock()
	return nil
}

// Close marks the adapter closed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.connected = false
	return nil
}

// LastIssueURL returns the URL of the most recently created issue.
func (a *Adapter) LastIssueURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastURL
}

// buildIssueRequest renders msg as a markdown issue.
func buildIssueRequest(msg telegraph.OutboundMessage, labels []string) *gh.IssueRequest {
	title := msg.Title
	if title == "" {
		title, _, _ = strings.Cut(msg.Text, "\n")
	}
	if title == "" {
		title = "flowguard"
	}

	var b strings.Builder
	if msg.Text != "" {
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	for _, evt := range msg.Events {
		b.WriteString("\n")
		b.WriteString(eventMarkdown(evt))
	}

	req := &gh.IssueRequest{
		Title: gh.Ptr(title),
		Body:  gh.Ptr(strings.TrimRight(b.String(), "\n")),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	return req
}

// eventMarkdown renders one event as a section with a field table.
func eventMarkdown(evt telegraph.FormattedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", evt.Title)
	if evt.Body != "" {
		b.WriteString(evt.Body)
		b.WriteString("\n")
	}
	if len(evt.Fields) > 0 {
		b.WriteString("\n| | |\n|---|---|\n")
		for _, f := range evt.Fields {
			fmt.Fprintf(&b, "| %s | %s |\n", f.Name, strings.ReplaceAll(f.Value, "|", "\\|"))
		}
	}
	return b.String()
}

// retryOnRateLimit calls fn and retries on primary and secondary GitHub
// rate limits. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		wait, ok := a.rateLimitWait(err, attempt)
		if !ok || attempt == maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// rateLimitWait reports how long to wait before retrying err, and whether
// err is a rate limit at all.
func (a *Adapter) rateLimitWait(err error, attempt int) (time.Duration, bool) {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * a.baseWait

	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if d := abuse.GetRetryAfter(); d > 0 {
			return min(d, maxWait), true
		}
		return min(backoff, maxWait), true
	}
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		if d := time.Until(rle.Rate.Reset.Time); d > 0 {
			return min(d, maxWait), true
		}
		return min(backoff, maxWait), true
	}
	return 0, false
}
