package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// Recorder is what entity services log through.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

type Service struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		repo:    repo,
		logger:  logger.With().Str("component", "activity").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

const recordTimeout = 5 * time.Second

// Record appends e, filling the actor from ctx when unset. It never fails
// the caller: the entity mutation has already happened, so a lost log entry
// is only logged and counted.
func (s *Service) Record(ctx context.Context, e Entry) {
	actor := auth.ActorFromContext(ctx)
	if e.ActorName == "" {
		e.ActorName = actor.Name
	}
	if e.ActorRole == "" {
		e.ActorRole = actor.Role
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.repo.Append(ctx, &e); err != nil {
		s.metrics.ActivityFailure()
		s.logger.Warn().Err(err).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Str("action", e.Action).
			Msg("activity entry lost")
	}
}

// Recent returns the newest entries first.
func (s *Service) Recent(ctx context.Context, f Filter) ([]*Entry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return s.repo.Recent(ctx, f)
}

// Nop discards entries. Used by tools that write outside a user session.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
