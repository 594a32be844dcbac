package reflection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/flowguard/internal/config"
	"github.com/zulandar/flowguard/internal/events"
	"github.com/zulandar/flowguard/internal/metrics"
	"github.com/zulandar/flowguard/internal/models"
)

// CooldownStore persists when each dedup key was last shown.
type CooldownStore interface {
	Cooldowns(ctx context.Context) (map[string]time.Time, error)
	MarkShown(ctx context.Context, keys []string, at time.Time) error
}

// ThresholdsFrom maps the reflection config onto Thresholds. Zero values
// fall back to the defaults when the feed is built.
func ThresholdsFrom(cfg config.ReflectionConfig) Thresholds {
	return Thresholds{
		DependencyDoneWindowDays:      cfg.DependencyDoneWindowDays,
		ProjectOpenRiskMin:            cfg.ProjectOpenRiskMin,
		PostponementMinRenegotiations: cfg.PostponementMinRenegotiations,
		UnstableProjectSignalMin:      cfg.UnstableProjectSignalMin,
		NewCommitmentWindowDays:       cfg.NewCommitmentWindowDays,
		Cooldown:                      time.Duration(cfg.CooldownHours) * time.Hour,
		MaxFeedItems:                  cfg.MaxFeedItems,
	}
}

// Surfacer builds the feed against persisted cooldowns and records what it
// showed.
type Surfacer struct {
	Store       CooldownStore
	Events      events.Publisher
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Environment string
	Thresholds  Thresholds
}

// Surface builds the feed for collection and marks every returned item as
// shown at now. Delivery notification failures are logged, not returned.
func (s *Surfacer) Surface(ctx context.Context, collection []models.Commitment, now time.Time) (Feed, error) {
	feed, err := s.Build(ctx, collection, now)
	if err != nil {
		return Feed{}, err
	}
	if err := s.Mark(ctx, feed, now); err != nil {
		return Feed{}, err
	}
	return feed, nil
}

// Build returns the feed against the persisted cooldowns without recording
// anything. Callers that deliver the feed call Mark once delivery succeeded.
func (s *Surfacer) Build(ctx context.Context, collection []models.Commitment, now time.Time) (Feed, error) {
	cooldown, err := s.Store.Cooldowns(ctx)
	if err != nil {
		return Feed{}, fmt.Errorf("reflection: %w", err)
	}
	return BuildFeed(collection, now, Options{Cooldown: cooldown, Thresholds: s.Thresholds}), nil
}

// Mark records every item of feed as shown at now and publishes the shown
// event. An empty feed is a no-op.
func (s *Surfacer) Mark(ctx context.Context, feed Feed, now time.Time) error {
	if len(feed.Items) == 0 {
		return nil
	}
	keys := make([]string, len(feed.Items))
	for i, it := range feed.Items {
		keys[i] = it.DedupKey
		s.Metrics.ObserveFeedItem(string(it.TriggerType))
	}
	if err := s.Store.MarkShown(ctx, keys, now); err != nil {
		return fmt.Errorf("reflection: %w", err)
	}
	if s.Events != nil {
		msg := events.ReflectionShown{Environment: s.Environment, DedupKeys: keys}
		if err := s.Events.Publish(ctx, events.TopicReflectionShown, msg); err != nil && s.Log != nil {
			s.Log.Warn("reflection: publish shown event failed", zap.Error(err))
		}
	}
	return nil
}
