package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/tmc/langchaingo/llms"

	"github.com/zulandar/flowguard/internal/config"
	"github.com/zulandar/flowguard/internal/metrics"
)

type fakeLLM struct {
	content  string
	err      error
	messages []llms.MessageContent
	deadline bool
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func validInput() Input {
	return Input{
		Titulo: "Publicar relatório", Owner: "ana", Stakeholder: "bia",
		DataEsperada: "2026-03-01", Tipo: "DELIVERY", Impacto: "HIGH",
	}
}

func TestNew_Disabled(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.GuardianConfig
		reason string
	}{
		{"flag off", config.GuardianConfig{APIKey: "sk-test"}, ReasonFlagOff},
		{"no key", config.GuardianConfig{Enabled: true}, ReasonNoAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg, Options{})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if a.Enabled() {
				t.Error("Enabled() = true, want false")
			}
			res := a.Analyze(context.Background(), validInput())
			if res.Status != StatusDisabled || res.Reason != tt.reason {
				t.Errorf("Analyze = %+v, want disabled %q", res, tt.reason)
			}
			pm := a.PreMortem(context.Background(), "prompt")
			if pm.Status != StatusDisabled || pm.Reason != tt.reason {
				t.Errorf("PreMortem = %+v", pm)
			}
		})
	}
}

func TestAnalyze_OK(t *testing.T) {
	llm := &fakeLLM{content: `{"qualityScore": 72, "ambiguities": ["prazo vago", " "], "why": "Falta critério de aceite."}`}
	m := metrics.New()
	a := newAdvisor(llm, 0, Options{Metrics: m})

	res := a.Analyze(context.Background(), validInput())
	if res.Status != StatusOK || res.Result == nil {
		t.Fatalf("Analyze = %+v, want ok", res)
	}
	if res.Result.QualityScore != 72 || len(res.Result.Ambiguities) != 1 {
		t.Errorf("Result = %+v", res.Result)
	}
	if len(llm.messages) != 2 || llm.messages[0].Role != llms.ChatMessageTypeSystem {
		t.Fatalf("messages = %+v", llm.messages)
	}
	user := llm.messages[1].Parts[0].(llms.TextContent).Text
	if !strings.Contains(user, `"titulo":"Publicar relatório"`) {
		t.Errorf("user message = %s", user)
	}
	if !llm.deadline {
		t.Error("provider call had no deadline")
	}
	if got := testutil.ToFloat64(m.AdvisorRequests.WithLabelValues("advisor", "ok")); got != 1 {
		t.Errorf("advisor ok counter = %v, want 1", got)
	}
}

func TestAnalyze_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		llm    *fakeLLM
		reason string
	}{
		{"transport", &fakeLLM{err: errors.New("dial tcp: refused")}, ReasonProviderFail},
		{"empty", &fakeLLM{content: "  "}, ReasonNoContent},
		{"schema", &fakeLLM{content: `{"qualityScore": 140, "why": "x"}`}, ReasonProviderFail},
		{"not json", &fakeLLM{content: "Claro! Aqui está"}, ReasonProviderFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newAdvisor(tt.llm, 0, Options{}).Analyze(context.Background(), validInput())
			if res.Status != StatusUnavailable || res.Reason != tt.reason || res.Result != nil {
				t.Errorf("Analyze = %+v, want unavailable %q", res, tt.reason)
			}
		})
	}
}

func TestPreMortem_OK(t *testing.T) {
	llm := &fakeLLM{content: `{"riskLevel":"MEDIUM","causes":["C1","C2","C3","C4"],"criticalQuestions":["Q1","Q2","Q3"],"mitigations":["M1","M2","M3"]}`}
	res := newAdvisor(llm, 0, Options{}).PreMortem(context.Background(), "Contexto: {}")
	if res.Status != StatusOK {
		t.Fatalf("PreMortem = %+v", res)
	}
	out := res.Result
	if out.RiskLevel != RiskMedium || len(out.Causes) != 3 || len(out.CriticalQuestions) != 2 || len(out.Mitigations) != 2 {
		t.Errorf("Result = %+v", out)
	}
	if got := llm.messages[1].Parts[0].(llms.TextContent).Text; got != "Contexto: {}" {
		t.Errorf("user message = %q", got)
	}
}

func TestNewAdvisor_Timeout(t *testing.T) {
	if got := newAdvisor(nil, 0, Options{}).timeout; got != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := newAdvisor(nil, 2500, Options{}).timeout; got != 2500*time.Millisecond {
		t.Errorf("timeout = %v, want 2.5s", got)
	}
}
