package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/changefeed"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/memory"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/mongo"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/postgres"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore/sqlite"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/internal/platform/redisclient"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

// infra holds the connections every command shares. Domain code only sees
// store, which publishes each committed write on feed.
type infra struct {
	cfg     *config.Config
	logger  zerolog.Logger
	raw     docstore.Store
	store   *changefeed.ObservedStore
	feed    changefeed.Feed
	redis   *redis.Client
	locker  lock.Locker
	blobs   blobstore.Store
	metrics *telemetry.Metrics
}

func openInfra(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*infra, error) {
	in := &infra{cfg: cfg, logger: logger, metrics: telemetry.New()}

	raw, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	in.raw = raw
	logger.Info().Str("driver", cfg.DocstoreDriver).Msg("document store ready")

	if cfg.RedisURL != "" {
		rdb, err := redisclient.New(ctx, cfg.RedisURL)
		if err != nil {
			in.Close(ctx)
			return nil, err
		}
		in.redis = rdb
		feed, err := changefeed.NewRedisFeed(ctx, rdb, changefeed.DefaultChannel, logger)
		if err != nil {
			in.Close(ctx)
			return nil, err
		}
		in.feed = feed
		in.locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		logger.Info().Msg("redis locks and change feed enabled")
	} else {
		in.feed = changefeed.NewBroker()
		in.locker = lock.NewMemoryLocker(cfg.LockTTL)
		logger.Warn().Msg("REDIS_URL not set; locks and change feed are local to this process")
	}
	in.store = changefeed.Observe(raw, in.feed, logger, in.metrics)

	blobs, err := blobstore.Open(ctx, blobstore.Options{
		Driver: cfg.BlobDriver,
		FSRoot: cfg.BlobFSRoot,
		S3: blobstore.S3Config{
			Region:    cfg.BlobS3Region,
			Bucket:    cfg.BlobS3Bucket,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		},
	})
	if err != nil {
		in.Close(ctx)
		return nil, err
	}
	in.blobs = blobs
	return in, nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.DocstoreDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverMongo:
		return mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown docstore driver %q", cfg.DocstoreDriver)
}

func (in *infra) Close(ctx context.Context) {
	if in.feed != nil {
		if err := in.feed.Close(); err != nil {
			in.logger.Warn().Err(err).Msg("closing change feed")
		}
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.raw != nil {
		if err := in.raw.Close(ctx); err != nil {
			in.logger.Warn().Err(err).Msg("closing document store")
		}
	}
}
