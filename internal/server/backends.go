package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/adboard/apiserver/config"
	"github.com/adboard/apiserver/internal/mq"
	"github.com/adboard/apiserver/internal/services"
	"github.com/adboard/apiserver/internal/storage"
	"github.com/adboard/apiserver/internal/store"
	"github.com/redis/go-redis/v9"
)

// OpenObjectStorage connects the blob backend selected by MEDIA_BACKEND and
// makes sure its bucket or root directory exists.
func OpenObjectStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var (
		backend storage.ObjectStorage
		err     error
	)
	switch cfg.Media.Backend {
	case "", "disk":
		backend, err = storage.NewDiskClient(cfg.Media.Dir)
	case "minio":
		backend, err = storage.NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = storage.NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Media.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s media backend: %w", cfg.Media.Backend, err)
	}

	blobs := storage.NewStorage(backend)
	if err := blobs.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure media bucket: %w", err)
	}
	return blobs, nil
}

// OpenEventBus connects the broker selected by MQ_BACKEND. It returns nil
// when events are disabled.
func OpenEventBus(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("open rabbitmq: %w", err)
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("open pubsub: %w", err)
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// OpenRedis connects the catalog cache. It returns nil when REDIS_URL is
// unset.
func OpenRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewMediaCatalog returns the Postgres media catalog, fronted by the Redis
// cache when a client is given.
func NewMediaCatalog(dbConn *sql.DB, cache *redis.Client, cfg config.Config) services.MediaRepository {
	catalog := store.NewMediaRepository(dbConn)
	if cache == nil {
		return catalog
	}
	slog.Info("media catalog cache enabled", "ttl", cfg.Redis.CacheTTL)
	return store.NewCachedMediaRepository(catalog, cache, cfg.Redis.CacheTTL)
}

// eventPublisher avoids handing a typed nil *mq.MQ to services.
func eventPublisher(bus *mq.MQ) services.EventPublisher {
	if bus == nil {
		return nil
	}
	return bus
}
