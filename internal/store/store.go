// Package store persists the commitment collection and the reflection feed
// cooldowns through GORM.
//
// The collection is kept as one serialized snapshot per environment under
// the key flow_integrity_commitments_<env>. Collections written before
// environments existed live under LegacyKey and are copied forward on first
// read.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/flowguard/internal/models"
)

const (
	// KeyPrefix is joined with the environment to form the snapshot key.
	KeyPrefix = "flow_integrity_commitments"
	// LegacyKey is the unnamespaced key from before environments existed.
	LegacyKey = KeyPrefix
	// DefaultEnvironment is used when none is configured.
	DefaultEnvironment = "dev"
)

// Store reads and writes snapshots and cooldowns for one environment.
type Store struct {
	db  *gorm.DB
	env string
	log *zap.Logger
	now func() time.Time
}

// New returns a Store for env. A nil logger discards output.
func New(db *gorm.DB, env string, log *zap.Logger) *Store {
	if env == "" {
		env = DefaultEnvironment
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, env: env, log: log, now: time.Now}
}

// Environment returns the namespace this store writes to.
func (s *Store) Environment() string { return s.env }

// Key returns the namespaced snapshot key.
func (s *Store) Key() string { return KeyPrefix + "_" + s.env }

// Load returns the collection for this environment. When only the legacy key
// exists, its payload is returned and copied forward unchanged. A payload
// that fails to parse yields an empty collection and a warning.
func (s *Store) Load(ctx context.Context) ([]models.Commitment, error) {
	snap, err := s.find(ctx, s.Key())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		snap, err = s.find(ctx, LegacyKey)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []models.Commitment{}, nil
		}
		if err != nil {
			return nil, err
		}
		if err := s.write(ctx, snap.Payload); err != nil {
			return nil, err
		}
		s.log.Info("store: migrated legacy collection",
			zap.String("from", LegacyKey), zap.String("to", s.Key()))
	} else if err != nil {
		return nil, err
	}

	collection, err := Decode([]byte(snap.Payload))
	if err != nil {
		s.log.Warn("store: discarding unreadable collection",
			zap.String("key", s.Key()), zap.Error(err))
		return []models.Commitment{}, nil
	}
	return collection, nil
}

// Save replaces the collection for this environment.
func (s *Store) Save(ctx context.Context, collection []models.Commitment) error {
	payload, err := Encode(collection)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	return s.write(ctx, string(payload))
}

// Clear removes the namespaced collection. The legacy key is left alone.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where(&models.CollectionSnapshot{Key: s.Key()}).Delete(&models.CollectionSnapshot{}).Error; err != nil {
		return fmt.Errorf("store: clear %s: %w", s.Key(), err)
	}
	return nil
}

// Payload returns the raw serialized collection, or nil when none is stored.
func (s *Store) Payload(ctx context.Context) ([]byte, error) {
	snap, err := s.find(ctx, s.Key())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(snap.Payload), nil
}

// Cooldowns returns the last-shown time of every feed dedup key.
func (s *Store) Cooldowns(ctx context.Context) (map[string]time.Time, error) {
	var rows []models.FeedCooldown
	if err := s.db.WithContext(ctx).Where(&models.FeedCooldown{Namespace: s.env}).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load cooldowns: %w", err)
	}
	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		out[r.DedupKey] = r.ShownAt
	}
	return out, nil
}

// MarkShown records keys as shown at at.
func (s *Store) MarkShown(ctx context.Context, keys []string, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	rows := make([]models.FeedCooldown, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, models.FeedCooldown{Namespace: s.env, DedupKey: k, ShownAt: at})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "dedup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"shown_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("store: mark shown: %w", err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, key string) (models.CollectionSnapshot, error) {
	var snap models.CollectionSnapshot
	err := s.db.WithContext(ctx).Where(&models.CollectionSnapshot{Key: key}).First(&snap).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return snap, fmt.Errorf("store: load %s: %w", key, err)
	}
	return snap, err
}

func (s *Store) write(ctx context.Context, payload string) error {
	snap := models.CollectionSnapshot{Key: s.Key(), Payload: payload, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&snap).Error
	if err != nil {
		return fmt.Errorf("store: save %s: %w", s.Key(), err)
	}
	return nil
}
