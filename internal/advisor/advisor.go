// Package advisor asks an LLM to review commitment quality and to run
// pre-mortems. The model is optional: with the feature flag off or no API
// key every call reports StatusDisabled and nothing leaves the process.
package advisor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/zulandar/flowguard/internal/config"
	"github.com/zulandar/flowguard/internal/metrics"
)

// Status is the outcome of an advisory call.
type Status string

const (
	StatusOK           Status = "ok"
	StatusDisabled     Status = "disabled"
	StatusUnavailable  Status = "unavailable"
	StatusInvalidInput Status = "invalid_input"
)

// Reasons returned alongside non-ok statuses.
const (
	ReasonFlagOff      = "Flow Guardian desabilitado por feature flag."
	ReasonNoAPIKey     = "OPENAI_API_KEY não configurada."
	ReasonProviderFail = "Falha na chamada do provedor de IA."
	ReasonNoContent    = "Resposta sem conteúdo estruturado."
	ReasonInvalidInput = "Payload inválido para análise."
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 15 * time.Second
	temperature    = 0.2
)

const systemPrompt = `Você é o Flow Advisor, um analista de qualidade de compromissos.
Retorne SOMENTE JSON válido no formato:
{
  "qualityScore": number(0..100),
  "ambiguities": string[],
  "riskHints": string[],
  "rewriteSuggestions": string[],
  "recommendedActions": string[],
  "why": string
}
Sem markdown.`

const preMortemSystemPrompt = `Você é um analista de Pre-Mortem para execução de compromissos.
Assuma que o compromisso falhou e retorne SOMENTE JSON válido no formato:
{
  "riskLevel": "low" | "medium" | "high",
  "causes": string[],
  "criticalQuestions": string[],
  "mitigations": string[]
}
Restrições:
- Máximo de 3 causas.
- Máximo de 2 perguntas críticas.
- Máximo de 2 mitigações.
- Texto total entre 250 e 300 palavras.
Sem markdown.`

// Result wraps an advisory outcome. Result is set only when Status is ok.
type Result[T any] struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Result *T     `json:"result,omitempty"`
}

// completer is the part of a langchaingo model the advisor needs.
type completer interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Options carries optional collaborators.
type Options struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Advisor runs quality reviews and pre-mortems against an OpenAI-compatible
// chat model.
type Advisor struct {
	llm      completer
	disabled string
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New builds an Advisor from the guardian config. The model client is only
// created when the feature is enabled and an API key is present.
func New(cfg config.GuardianConfig, opts Options) (*Advisor, error) {
	a := newAdvisor(nil, cfg.TimeoutMS, opts)
	switch {
	case !cfg.Enabled:
		a.disabled = ReasonFlagOff
		return a, nil
	case strings.TrimSpace(cfg.APIKey) == "":
		a.disabled = ReasonNoAPIKey
		return a, nil
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	clientOpts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(model)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, err
	}
	a.llm = llm
	return a, nil
}

func newAdvisor(llm completer, timeoutMS int, opts Options) *Advisor {
	timeout := DefaultTimeout
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Advisor{llm: llm, timeout: timeout, log: log, metrics: opts.Metrics}
}

// Enabled reports whether calls reach the model.
func (a *Advisor) Enabled() bool { return a.disabled == "" && a.llm != nil }

// Analyze reviews a draft commitment.
func (a *Advisor) Analyze(ctx context.Context, in Input) Result[Output] {
	user, err := json.Marshal(in)
	if err != nil {
		return Result[Output]{Status: StatusInvalidInput, Reason: ReasonInvalidInput}
	}
	return run(ctx, a, "advisor", systemPrompt, string(user), ParseOutput)
}

// PreMortem asks the model why the commitment described by prompt would fail.
func (a *Advisor) PreMortem(ctx context.Context, prompt string) Result[PreMortemOutput] {
	return run(ctx, a, "premortem", preMortemSystemPrompt, prompt, ParsePreMortem)
}

func run[T any](ctx context.Context, a *Advisor, kind, system, user string, parse func([]byte) (T, error)) Result[T] {
	res := call(ctx, a, kind, system, user, parse)
	a.metrics.ObserveAdvisor(kind, string(res.Status))
	return res
}

func call[T any](ctx context.Context, a *Advisor, kind, system, user string, parse func([]byte) (T, error)) Result[T] {
	if a.disabled != "" {
		return Result[T]{Status: StatusDisabled, Reason: a.disabled}
	}
	if a.llm == nil {
		return Result[T]{Status: StatusDisabled, Reason: ReasonNoAPIKey}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, llms.WithTemperature(temperature), llms.WithJSONMode())
	if err != nil {
		a.log.Warn("advisor: provider call failed", zap.String("kind", kind), zap.Error(err))
		return Result[T]{Status: StatusUnavailable, Reason: ReasonProviderFail}
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return Result[T]{Status: StatusUnavailable, Reason: ReasonNoContent}
	}

	out, err := parse([]byte(resp.Choices[0].Content))
	if err != nil {
		a.log.Warn("advisor: unusable model output", zap.String("kind", kind), zap.Error(err))
		return Result[T]{Status: StatusUnavailable, Reason: ReasonProviderFail}
	}
	return Result[T]{Status: StatusOK, Result: &out}
}
