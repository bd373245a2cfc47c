package changefeed

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// ObservedStore wraps a docstore.Store and publishes a Change after every
// successful mutation. Publish failures are logged and counted; the write
// has already committed so they are never returned.
type ObservedStore struct {
	docstore.Store
	feed    Publisher
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

func Observe(store docstore.Store, feed Publisher, logger zerolog.Logger, metrics *telemetry.Metrics) *ObservedStore {
	return &ObservedStore{
		Store:   store,
		feed:    feed,
		logger:  logger.With().Str("component", "changefeed").Logger(),
		metrics: metrics,
	}
}

func (s *ObservedStore) Insert(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	id, err := s.Store.Insert(ctx, collection, doc)
	if err != nil {
		return "", err
	}
	s.emit(ctx, collection, id, OpCreate, nil)
	return id, nil
}

func (s *ObservedStore) Update(ctx context.Context, collection, id string, fields docstore.Document) error {
	if err := s.Store.Update(ctx, collection, id, fields); err != nil {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.emit(ctx, collection, id, OpUpdate, keys)
	return nil
}

func (s *ObservedStore) Put(ctx context.Context, collection, id string, doc docstore.Document) error {
	if err := s.Store.Put(ctx, collection, id, doc); err != nil {
		return err
	}
	s.emit(ctx, collection, id, OpUpdate, nil)
	return nil
}

func (s *ObservedStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.Store.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.emit(ctx, collection, id, OpDelete, nil)
	return nil
}

// Unwrap returns the underlying store, used for driver-specific features
// such as migrations.
func (s *ObservedStore) Unwrap() docstore.Store { return s.Store }

func (s *ObservedStore) emit(ctx context.Context, collection, id string, op Op, fields []string) {
	s.metrics.Mutation(collection, string(op))

	c := Change{Collection: collection, ID: id, Op: op, Fields: fields, At: time.Now().UTC()}
	if op != OpDelete {
		doc, err := s.Store.Get(ctx, collection, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("collection", collection).Str("id", id).Msg("re-reading changed document")
		} else {
			c.Doc = doc
		}
	}
	if err := s.feed.Publish(context.WithoutCancel(ctx), c); err != nil {
		s.metrics.FeedFailure(collection)
		s.logger.Warn().Err(err).Str("collection", collection).Str("id", id).Str("op", string(op)).Msg("publishing change")
	}
}
