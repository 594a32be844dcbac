// Package health reduces the live commitment set to a single 0-100 score.
package health

import (
	"math"
	"time"

	"github.com/zulandar/flowguard/internal/models"
)

// Level is the severity band of a score.
type Level string

const (
	LevelHealthy   Level = "HEALTHY"
	LevelAttention Level = "ATTENTION"
	LevelCritical  Level = "CRITICAL"
)

// Penalties applied per live commitment.
const (
	PenaltyOverdue   = 35
	PenaltyBlocked   = 25
	PenaltyOpenRisk  = 10
	PenaltyHighRisk  = 20
	PenaltyRecurrent = 10
)

// Breakdown counts live commitments carrying each signal.
type Breakdown struct {
	Overdue             int `json:"overdue"`
	BlockedByDependency int `json:"blockedByDependency"`
	OpenRisk            int `json:"openRisk"`
	HighRisk            int `json:"highRisk"`
	Recurrent           int `json:"recurrent"`
}

// Summary is the collection-level health result.
type Summary struct {
	Score       int       `json:"score"`
	Level       Level     `json:"level"`
	TotalActive int       `json:"totalActive"`
	Breakdown   Breakdown `json:"breakdown"`
}

// LevelFor maps a score to its band: >=80 HEALTHY, >=60 ATTENTION, else CRITICAL.
func LevelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelHealthy
	case score >= 60:
		return LevelAttention
	default:
		return LevelCritical
	}
}

// CommitmentScore is the per-commitment score, clamped at 0.
func CommitmentScore(c models.Commitment, now time.Time) int {
	score := 100
	if c.IsOverdue(now) {
		score -= PenaltyOverdue
	}
	if c.HasImpedimento {
		score -= PenaltyBlocked
	}
	if c.HasOpenRisk() {
		score -= PenaltyOpenRisk
	}
	if c.HasOpenHighRisk() {
		score -= PenaltyHighRisk
	}
	if c.IsRecurrent() {
		score -= PenaltyRecurrent
	}
	if score < 0 {
		return 0
	}
	return score
}

// Score computes the rounded mean of per-commitment scores over the live set.
// An empty live set is a perfect 100.
func Score(collection []models.Commitment, now time.Time) Summary {
	var (
		total int
		live  int
		b     Breakdown
	)
	for _, c := range collection {
		if !c.IsLive() {
			continue
		}
		live++
		total += CommitmentScore(c, now)
		if c.IsOverdue(now) {
			b.Overdue++
		}
		if c.HasImpedimento {
			b.BlockedByDependency++
		}
		if c.HasOpenRisk() {
			b.OpenRisk++
		}
		if c.HasOpenHighRisk() {
			b.HighRisk++
		}
		if c.IsRecurrent() {
			b.Recurrent++
		}
	}
	if live == 0 {
		return Summary{Score: 100, Level: LevelHealthy}
	}
	score := int(math.Round(float64(total) / float64(live)))
	return Summary{Score: score, Level: LevelFor(score), TotalActive: live, Breakdown: b}
}
