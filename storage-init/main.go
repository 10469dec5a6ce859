// Command storage-init prepares the task store and the task events queue,
// optionally loads the starter board, then exits.
package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-api/config"
	"kanban-api/domain"
	"kanban-api/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx := context.Background()
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("storage init: %v", err)
	}
	log.Info("storage init complete")
}

func run(ctx context.Context, cfg config.Config) error {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	log.WithField("backend", cfg.StoreBackend).Info("tasks schema ready")

	var (
		store      storage.Backend = backend
		publishers []publisher
	)
	if cfg.RedisConnectionString != "" {
		rc := storage.NewRedisClient(cfg.RedisConnectionString)
		defer rc.Close()
		store = storage.NewCache(backend, rc, cfg.TasksCacheTTL)
		if cfg.SharedEvents() {
			publishers = append(publishers, storage.NewRedisPublisher(rc, cfg.TaskEventsChannel))
		}
	}

	if cfg.TaskEventsQueue != "" {
		qp, err := storage.NewQueuePublisher(cfg.StorageConnectionString, cfg.TaskEventsQueue)
		if err != nil {
			return err
		}
		if err := qp.EnsureQueue(ctx); err != nil {
			return err
		}
		log.WithField("queue", cfg.TaskEventsQueue).Info("task events queue ready")
		publishers = append(publishers, qp)
	}

	if cfg.SeedOnInit {
		if _, err := seedBoard(ctx, store, publishers); err != nil {
			return err
		}
	}
	return nil
}

type publisher interface {
	Publish(ctx context.Context, ev domain.TaskEvent) error
}

// seedBoard inserts the starter tasks and, when anything was inserted,
// announces it so running instances refresh their streams. Cache eviction
// happens in store when it is a storage.Cache.
func seedBoard(ctx context.Context, store storage.Backend, publishers []publisher) (int, error) {
	seeds := domain.SeedTasks()
	n, err := store.SeedTasks(ctx, seeds)
	if err != nil {
		return n, err
	}
	log.WithFields(log.Fields{"attempted": len(seeds), "inserted": n}).Info("tasks seeded")
	if n == 0 {
		return 0, nil
	}

	ev := domain.TaskEvent{
		ID:        uuid.NewString(),
		Type:      domain.EventTasksSeeded,
		Count:     n,
		Timestamp: time.Now().UnixNano(),
	}
	for _, p := range publishers {
		if err := p.Publish(ctx, ev); err != nil {
			log.WithError(err).Warn("publish tasks-seeded event failed")
		}
	}
	return n, nil
}
