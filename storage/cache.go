package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanban-api/domain"
)

// Backend is implemented by Store and TableStore.
type Backend interface {
	EnsureSchema(ctx context.Context) error
	ListTasks(ctx context.Context) ([]domain.Task, error)
	UpsertTask(ctx context.Context, id *string, f domain.TaskFields) error
	UpdateTask(ctx context.Context, id string, f domain.TaskFields) error
	DeleteTask(ctx context.Context, id string) error
	SeedTasks(ctx context.Context, seeds []domain.SeedTask) (int, error)
	Ping(ctx context.Context) error
	Close()
}

const (
	tasksCacheKey        = "tasks:all"
	tasksCacheVersionKey = "tasks:version"
)

var errStaleSnapshot = errors.New("task list changed while loading")

// Cache wraps a Backend with a Redis read-through cache for the task list.
// Every write evicts the cached list and bumps tasksCacheVersionKey; a list
// loaded from the backend is only stored if the version did not move while
// it was being read.
type Cache struct {
	base  Backend
	redis *redis.Client
	ttl   time.Duration
}

var _ Backend = (*Cache)(nil)

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) EnsureSchema(ctx context.Context) error {
	return c.base.EnsureSchema(ctx)
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasksFromCache(ctx); ok {
		return tasks, nil
	}

	version, versionOK := c.cacheVersion(ctx)
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	if versionOK {
		c.storeTasks(ctx, version, tasks)
	}
	return tasks, nil
}

func (c *Cache) UpsertTask(ctx context.Context, id *string, f domain.TaskFields) error {
	err := c.base.UpsertTask(ctx, id, f)
	if err == nil {
		c.evict(ctx)
	}
	return err
}

func (c *Cache) UpdateTask(ctx context.Context, id string, f domain.TaskFields) error {
	err := c.base.UpdateTask(ctx, id, f)
	if err == nil {
		c.evict(ctx)
	}
	return err
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	err := c.base.DeleteTask(ctx, id)
	if err == nil {
		c.evict(ctx)
	}
	return err
}

// SeedTasks evicts whenever a row was inserted, including partial seeds
// that stopped on an error.
func (c *Cache) SeedTasks(ctx context.Context, seeds []domain.SeedTask) (int, error) {
	n, err := c.base.SeedTasks(ctx, seeds)
	if n > 0 {
		c.evict(ctx)
	}
	return n, err
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) Close() {
	c.base.Close()
}

func (c *Cache) loadTasksFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey).Err()
		return nil, false
	}
	return tasks, true
}

// cacheVersion returns the current write version. An unset key reads as "".
func (c *Cache) cacheVersion(ctx context.Context) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	v, err := c.redis.Get(ctx, tasksCacheVersionKey).Result()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return v, true
}

// storeTasks caches tasks unless a write bumped the version since version
// was read.
func (c *Cache) storeTasks(ctx context.Context, version string, tasks []domain.Task) {
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, tasksCacheVersionKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errStaleSnapshot
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, tasksCacheKey, data, c.ttl)
			return nil
		})
		return err
	}, tasksCacheVersionKey)
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, tasksCacheVersionKey)
		pipe.Del(ctx, tasksCacheKey)
		return nil
	})
}
