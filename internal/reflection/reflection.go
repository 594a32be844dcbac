// Package reflection detects discrete triggering conditions in the
// commitment collection and turns them into a deduplicated, rate-limited
// notification feed.
//
// The engine is pure: the caller owns the cooldown map, persists it, and
// passes it back in on the next call.
package reflection

import (
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

// ContractVersion identifies the feed item shape.
const ContractVersion = "v1"

// Trigger names the condition that produced an item.
type Trigger string

const (
	TriggerDependencyCompleted  Trigger = "DEPENDENCY_COMPLETED"
	TriggerPostponementPattern  Trigger = "POSTPONEMENT_PATTERN"
	TriggerNewOnUnstableProject Trigger = "NEW_COMMITMENT_ON_UNSTABLE_PROJECT"
	TriggerProjectRiskCluster   Trigger = "PROJECT_RISK_CLUSTER"
)

// Severity is derived from the item score.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// SeverityFor maps a score: >=90 HIGH, >=70 MEDIUM, else LOW.
func SeverityFor(score int) Severity {
	switch {
	case score >= 90:
		return SeverityHigh
	case score >= 70:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Scores per trigger.
const (
	ScoreDependencyCompleted = 78
	ScorePostponement        = 82
	ScorePostponementHigh    = 92
	ScoreNewOnUnstable       = 96
	ScoreRiskCluster         = 76
	ScoreRiskClusterHigh     = 91

	postponementHighMin = 4
)

// Thresholds are the tunable detection limits.
type Thresholds struct {
	DependencyDoneWindowDays      int           `yaml:"dependency_done_window_days" json:"dependencyDoneWindowDays"`
	ProjectOpenRiskMin            int           `yaml:"project_open_risk_min" json:"projectOpenRiskMin"`
	PostponementMinRenegotiations int           `yaml:"postponement_min_renegotiations" json:"postponementMinRenegotiations"`
	UnstableProjectSignalMin      int           `yaml:"unstable_project_signal_min" json:"unstableProjectSignalMin"`
	NewCommitmentWindowDays       int           `yaml:"new_commitment_window_days" json:"newCommitmentWindowDays"`
	Cooldown                      time.Duration `yaml:"cooldown" json:"cooldown"`
	MaxFeedItems                  int           `yaml:"max_feed_items" json:"maxFeedItems"`
}

// DefaultThresholds returns the standard limits: 7-day dependency window,
// 3 open risks per project, 2 renegotiations, 2 project signals, 3-day
// new-commitment window, 24h cooldown and 6 items.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DependencyDoneWindowDays:      7,
		ProjectOpenRiskMin:            3,
		PostponementMinRenegotiations: 2,
		UnstableProjectSignalMin:      2,
		NewCommitmentWindowDays:       3,
		Cooldown:                      24 * time.Hour,
		MaxFeedItems:                  6,
	}
}

// withDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.DependencyDoneWindowDays <= 0 {
		t.DependencyDoneWindowDays = d.DependencyDoneWindowDays
	}
	if t.ProjectOpenRiskMin <= 0 {
		t.ProjectOpenRiskMin = d.ProjectOpenRiskMin
	}
	if t.PostponementMinRenegotiations <= 0 {
		t.PostponementMinRenegotiations = d.PostponementMinRenegotiations
	}
	if t.UnstableProjectSignalMin <= 0 {
		t.UnstableProjectSignalMin = d.UnstableProjectSignalMin
	}
	if t.NewCommitmentWindowDays <= 0 {
		t.NewCommitmentWindowDays = d.NewCommitmentWindowDays
	}
	if t.Cooldown <= 0 {
		t.Cooldown = d.Cooldown
	}
	if t.MaxFeedItems <= 0 {
		t.MaxFeedItems = d.MaxFeedItems
	}
	return t
}

// ActionType is what a feed action opens in the client.
type ActionType string

const (
	ActionOpenCommitment ActionType = "OPEN_COMMITMENT"
	ActionFilterProject  ActionType = "FILTER_PROJECT"
)

// Action is a follow-up link attached to an item.
type Action struct {
	Type         ActionType `json:"type"`
	Label        string     `json:"label"`
	CommitmentID string     `json:"commitmentId,omitempty"`
	Projeto      string     `json:"projeto,omitempty"`
}

// Item is one feed entry. ID equals DedupKey.
type Item struct {
	ID                   string    `json:"id"`
	DedupKey             string    `json:"dedupKey"`
	TriggerType          Trigger   `json:"triggerType"`
	Severity             Severity  `json:"severity"`
	Score                int       `json:"score"`
	Message              string    `json:"message"`
	Context              string    `json:"context"`
	Why                  string    `json:"why"`
	RelatedCommitmentIDs []string  `json:"relatedCommitmentIds"`
	RelatedProject       string    `json:"relatedProject,omitempty"`
	Actions              []Action  `json:"actions"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Feed is the output of BuildFeed.
type Feed struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generatedAt"`
	Items       []Item    `json:"items"`
	// Suppressed counts candidates hidden by the cooldown.
	Suppressed int `json:"suppressed"`
}

// Options carries the caller-owned state for one BuildFeed call.
type Options struct {
	// Cooldown maps dedup keys to the time they were last shown. A zero
	// time is treated as never shown.
	Cooldown map[string]time.Time
	// MaxItems overrides Thresholds.MaxFeedItems when positive. Zero or a
	// negative value keeps the threshold (default 6); it never means "no items".
	MaxItems   int
	Thresholds Thresholds
}

// DedupKey is the stable identity of a trigger within its scope.
func DedupKey(trigger Trigger, scope string) string {
	return string(trigger) + ":" + scope
}

// BuildFeed detects triggers, deduplicates them, drops items still inside the
// cooldown window and returns at most MaxItems ranked by score.
func BuildFeed(collection []models.Commitment, now time.Time, opts Options) Feed {
	th := opts.Thresholds.withDefaults()
	maxItems := th.MaxFeedItems
	if opts.MaxItems > 0 {
		maxItems = opts.MaxItems
	}

	var candidates []Item
	candidates = append(candidates, dependencyCompleted(collection, now, th)...)
	candidates = append(candidates, postponement(collection, th, now)...)
	candidates = append(candidates, newOnUnstableProject(collection, now, th)...)
	candidates = append(candidates, projectRiskCluster(collection, th, now)...)

	deduped := dedup(candidates)

	items := make([]Item, 0, len(deduped))
	suppressed := 0
	for _, it := range deduped {
		if inCooldown(opts.Cooldown, it.DedupKey, now, th.Cooldown) {
			suppressed++
			continue
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return byPriority(items[i], items[j]) })
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return Feed{Version: ContractVersion, GeneratedAt: now, Items: items, Suppressed: suppressed}
}

func byPriority(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func dedup(candidates []Item) []Item {
	var order []string
	best := make(map[string]Item, len(candidates))
	for _, it := range candidates {
		cur, ok := best[it.DedupKey]
		if !ok {
			order = append(order, it.DedupKey)
			best[it.DedupKey] = it
			continue
		}
		if byPriority(it, cur) {
			best[it.DedupKey] = it
		}
	}
	out := make([]Item, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

func inCooldown(cooldown map[string]time.Time, key string, now time.Time, window time.Duration) bool {
	shown, ok := cooldown[key]
	if !ok || shown.IsZero() {
		return false
	}
	return now.Sub(shown) < window
}

func newItem(trigger Trigger, scope string, score int, now time.Time) Item {
	key := DedupKey(trigger, scope)
	return Item{
		ID:          key,
		DedupKey:    key,
		TriggerType: trigger,
		Severity:    SeverityFor(score),
		Score:       score,
		CreatedAt:   now,
	}
}

func dependencyCompleted(collection []models.Commitment, now time.Time, th Thresholds) []Item {
	byID := make(map[string]models.Commitment, len(collection))
	for _, c := range collection {
		byID[c.ID] = c
	}
	today := models.StartOfDay(now)
	from := models.AddDays(today, -th.DependencyDoneWindowDays)

	var out []Item
	for _, c := range collection {
		if !c.IsLive() {
			continue
		}
		var done []string
		for _, depID := range c.Dependencias {
			dep, ok := byID[depID]
			if !ok || dep.Status != models.StatusDone {
				continue
			}
			at, ok := dep.DoneAt()
			if !ok {
				continue
			}
			day := models.DayOf(at, now)
			if day.Before(from) || day.After(today) {
				continue
			}
			done = append(done, dep.ID)
		}
		if len(done) == 0 {
			continue
		}
		it := newItem(TriggerDependencyCompleted, c.ID, ScoreDependencyCompleted, now)
		it.Message = fmt.Sprintf("Dependência concluída: revisar próximo passo de \"%s\".", c.Titulo)
		it.Context = fmt.Sprintf("%d dependência(s) concluída(s) nos últimos %d dias.", len(done), th.DependencyDoneWindowDays)
		it.Why = "Compromisso ativo depende de item que mudou para DONE recentemente."
		it.RelatedCommitmentIDs = append([]string{c.ID}, done...)
		it.RelatedProject = c.Projeto
		it.Actions = commitmentActions(c, "Revisar compromisso")
		out = append(out, it)
	}
	return out
}

func postponement(collection []models.Commitment, th Thresholds, now time.Time) []Item {
	var out []Item
	for _, c := range collection {
		if !c.IsLive() || c.RenegociadoCount < th.PostponementMinRenegotiations {
			continue
		}
		score := ScorePostponement
		if c.RenegociadoCount >= postponementHighMin {
			score = ScorePostponementHigh
		}
		it := newItem(TriggerPostponementPattern, c.ID, score, now)
		it.Message = fmt.Sprintf("Padrão de adiamento em \"%s\".", c.Titulo)
		it.Context = fmt.Sprintf("%d renegociação(ões) registrada(s).", c.RenegociadoCount)
		it.Why = "Quantidade de renegociações acima do limite definido para reincidência."
		it.RelatedCommitmentIDs = []string{c.ID}
		it.RelatedProject = c.Projeto
		it.Actions = commitmentActions(c, "Reavaliar compromisso")
		out = append(out, it)
	}
	return out
}

func newOnUnstableProject(collection []models.Commitment, now time.Time, th Thresholds) []Item {
	today := models.StartOfDay(now)
	from := models.AddDays(today, -th.NewCommitmentWindowDays)

	signals := make(map[string]int)
	var order []string
	recent := make(map[string][]models.Commitment)
	for _, c := range collection {
		if !c.IsLive() {
			continue
		}
		if c.IsUnstable(now) {
			signals[c.Projeto]++
		}
		day := models.DayOf(c.CriadoEm, now)
		if c.CriadoEm.IsZero() || day.Before(from) || day.After(today) {
			continue
		}
		if _, seen := recent[c.Projeto]; !seen {
			order = append(order, c.Projeto)
		}
		recent[c.Projeto] = append(recent[c.Projeto], c)
	}

	var out []Item
	for _, p := range order {
		if signals[p] < th.UnstableProjectSignalMin {
			continue
		}
		news := recent[p]
		latest := news[0]
		ids := make([]string, 0, len(news))
		for _, c := range news {
			ids = append(ids, c.ID)
			if c.CriadoEm.After(latest.CriadoEm) {
				latest = c
			}
		}
		it := newItem(TriggerNewOnUnstableProject, p, ScoreNewOnUnstable, now)
		it.Message = "Novo compromisso em projeto instável: validar capacidade real."
		it.Context = fmt.Sprintf("Projeto \"%s\" possui %d sinais ativos de instabilidade e %d novo(s) compromisso(s) recente(s).",
			p, signals[p], len(news))
		it.Why = "Compromissos recentes foram criados em projeto com múltiplos sinais de risco operacional."
		it.RelatedCommitmentIDs = ids
		it.RelatedProject = p
		it.Actions = []Action{
			{Type: ActionOpenCommitment, Label: "Revisar compromisso", CommitmentID: latest.ID},
			{Type: ActionFilterProject, Label: "Ver projeto", Projeto: p},
		}
		out = append(out, it)
	}
	return out
}

func projectRiskCluster(collection []models.Commitment, th Thresholds, now time.Time) []Item {
	type agg struct {
		ids  []string
		open int
		high bool
	}
	var order []string
	byProject := make(map[string]*agg)
	for _, c := range collection {
		if !c.IsLive() {
			continue
		}
		a, ok := byProject[c.Projeto]
		if !ok {
			a = &agg{}
			byProject[c.Projeto] = a
			order = append(order, c.Projeto)
		}
		a.ids = append(a.ids, c.ID)
		a.open += len(c.OpenRisks())
		if c.HasOpenHighRisk() {
			a.high = true
		}
	}

	var out []Item
	for _, p := range order {
		a := byProject[p]
		if a.open < th.ProjectOpenRiskMin {
			continue
		}
		score := ScoreRiskCluster
		if a.high {
			score = ScoreRiskClusterHigh
		}
		it := newItem(TriggerProjectRiskCluster, p, score, now)
		it.Message = fmt.Sprintf("Projeto \"%s\" concentra riscos abertos.", p)
		it.Context = fmt.Sprintf("%d risco(s) aberto(s) distribuído(s) em %d compromisso(s) ativo(s).", a.open, len(a.ids))
		it.Why = "Volume de risco aberto por projeto acima do threshold definido."
		it.RelatedCommitmentIDs = a.ids
		it.RelatedProject = p
		it.Actions = []Action{{Type: ActionFilterProject, Label: "Focar no projeto", Projeto: p}}
		out = append(out, it)
	}
	return out
}

func commitmentActions(c models.Commitment, label string) []Action {
	return []Action{
		{Type: ActionOpenCommitment, Label: label, CommitmentID: c.ID},
		{Type: ActionFilterProject, Label: "Ver projeto", Projeto: c.Projeto},
	}
}
