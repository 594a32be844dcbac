package ledger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zulandar/flowguard/internal/events"
	"github.com/zulandar/flowguard/internal/metrics"
	"github.com/zulandar/flowguard/internal/models"
)

// Store loads and saves the whole commitment collection.
type Store interface {
	Load(ctx context.Context) ([]models.Commitment, error)
	Save(ctx context.Context, collection []models.Commitment) error
}

// ServiceOpts configures a Service. Zero values fall back to a wall-clock
// Ledger, a no-op publisher and a no-op logger.
type ServiceOpts struct {
	Ledger      *Ledger
	Events      events.Publisher
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Environment string
}

// Service runs every mutation as one read, mutate, recompute impediments,
// save sequence. Calls are serialised so at most one sequence is in flight.
type Service struct {
	store   Store
	ledger  *Ledger
	events  events.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
	env     string

	mu sync.Mutex
}

// NewService wires a Service over store.
func NewService(store Store, opts ServiceOpts) *Service {
	s := &Service{
		store:   store,
		ledger:  opts.Ledger,
		events:  opts.Events,
		metrics: opts.Metrics,
		log:     opts.Log,
		env:     opts.Environment,
	}
	if s.ledger == nil {
		s.ledger = New()
	}
	if s.events == nil {
		s.events = &events.NoopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// List returns the current collection.
func (s *Service) List(ctx context.Context) ([]models.Commitment, error) {
	return s.store.Load(ctx)
}

// Get returns the commitment with id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.Commitment, error) {
	all, err := s.store.Load(ctx)
	if err != nil {
		return models.Commitment{}, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return models.Commitment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return all[idx], nil
}

// Create adds a new commitment to the collection.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (models.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.Load(ctx)
	if err != nil {
		s.metrics.ObserveLedger("create", err)
		return models.Commitment{}, err
	}
	ids := make([]string, len(all))
	for i, c := range all {
		ids[i] = c.ID
	}
	c, err := s.ledger.Create(opts, ids)
	if err != nil {
		s.metrics.ObserveLedger("create", err)
		return models.Commitment{}, err
	}
	all = RecomputeImpediments(append(all, c))
	if err := s.store.Save(ctx, all); err != nil {
		s.metrics.ObserveLedger("create", err)
		return models.Commitment{}, err
	}
	s.metrics.ObserveLedger("create", nil)
	created := all[len(all)-1]
	s.publish(ctx, created, 0)
	s.log.Info("ledger: commitment created", zap.String("id", created.ID), zap.String("projeto", created.Projeto))
	return created, nil
}

// Edit applies opts to the commitment with id.
func (s *Service) Edit(ctx context.Context, id string, opts CreateOpts) (models.Commitment, error) {
	return s.mutate(ctx, "edit", id, func(c models.Commitment) (models.Commitment, error) {
		return s.ledger.Edit(c, opts)
	})
}

// ChangeStatus moves the commitment with id to status.
func (s *Service) ChangeStatus(ctx context.Context, id string, status models.Status) (models.Commitment, error) {
	return s.mutate(ctx, "status", id, func(c models.Commitment) (models.Commitment, error) {
		return s.ledger.ChangeStatus(c, status)
	})
}

// AddChecklistItem appends a checklist item to the commitment with id.
// Checklist operations on DONE or CANCELLED commitments are validation errors.
func (s *Service) AddChecklistItem(ctx context.Context, id, text string) (models.Commitment, error) {
	return s.mutate(ctx, "checklist_add", id, func(c models.Commitment) (models.Commitment, error) {
		if c.Status.IsTerminal() {
			return c, invalid(MsgChecklistClosed)
		}
		return s.ledger.AddChecklistItem(c, text)
	})
}

// ToggleChecklistItem flips completion of itemID on the commitment with id.
func (s *Service) ToggleChecklistItem(ctx context.Context, id, itemID string) (models.Commitment, error) {
	return s.mutate(ctx, "checklist_toggle", id, func(c models.Commitment) (models.Commitment, error) {
		if c.Status.IsTerminal() {
			return c, invalid(MsgChecklistClosed)
		}
		return s.ledger.ToggleChecklistItem(c, itemID), nil
	})
}

// RemoveChecklistItem deletes itemID from the commitment with id.
func (s *Service) RemoveChecklistItem(ctx context.Context, id, itemID string) (models.Commitment, error) {
	return s.mutate(ctx, "checklist_remove", id, func(c models.Commitment) (models.Commitment, error) {
		if c.Status.IsTerminal() {
			return c, invalid(MsgChecklistClosed)
		}
		return s.ledger.RemoveChecklistItem(c, itemID), nil
	})
}

func (s *Service) mutate(ctx context.Context, op, id string, fn func(models.Commitment) (models.Commitment, error)) (out models.Commitment, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveLedger(op, err) }()

	all, err := s.store.Load(ctx)
	if err != nil {
		return models.Commitment{}, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return models.Commitment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	before := all[idx]
	next, err := fn(before)
	if err != nil {
		return before, err
	}
	if len(next.Historico) == len(before.Historico) {
		return before, nil
	}

	updated := make([]models.Commitment, len(all))
	copy(updated, all)
	updated[idx] = next
	updated = RecomputeImpediments(updated)
	if err := s.store.Save(ctx, updated); err != nil {
		return before, err
	}
	s.publish(ctx, updated[idx], len(before.Historico))
	s.log.Debug("ledger: commitment updated", zap.String("op", op), zap.String("id", id))
	return updated[idx], nil
}

// publish emits every audit event from index from onward.
func (s *Service) publish(ctx context.Context, c models.Commitment, from int) {
	for _, ev := range c.Historico[from:] {
		msg := events.AuditAppended{Environment: s.env, CommitmentID: c.ID, Event: ev}
		if err := s.events.Publish(ctx, events.TopicAuditAppended, msg); err != nil {
			s.log.Warn("ledger: publish audit event failed",
				zap.String("id", c.ID), zap.String("event", ev.ID), zap.Error(err))
		}
	}
}

func indexOf(all []models.Commitment, id string) int {
	for i, c := range all {
		if c.ID == id {
			return i
		}
	}
	return -1
}
