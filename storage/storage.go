package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kanban-api/domain"
)

// DB is the part of *pgxpool.Pool the store relies on.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PoolOptions tunes the connection pool created by Connect.
type PoolOptions struct {
	MaxConns       int32
	ConnectTimeout time.Duration
}

// Store persists tasks in the Postgres tasks table.
type Store struct {
	db DB
}

// New wraps an existing pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pool for databaseURL and verifies it is reachable.
func Connect(ctx context.Context, databaseURL string, opts PoolOptions) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

// EnsureSchema creates the tasks table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTasksTableSQL); err != nil {
		return fmt.Errorf("ensure tasks schema: %w", err)
	}
	return nil
}

// ListTasks returns every task, most recently created first.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx, listTasksSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Description,
			&t.Assignee,
			&t.Priority,
			&t.Labels,
			&t.Column,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if t.Labels == nil {
			t.Labels = []string{}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpsertTask inserts the task or replaces its mutable fields when the id
// already exists. A nil id is sent as NULL and rejected by the primary key.
func (s *Store) UpsertTask(ctx context.Context, id *string, f domain.TaskFields) error {
	_, err := s.db.Exec(ctx, upsertTaskSQL, id, f.Title, f.Description, f.Assignee, f.Priority, f.Labels, f.Column)
	return err
}

// UpdateTask replaces the mutable fields of the task with the given id. It
// does not report whether a row matched.
func (s *Store) UpdateTask(ctx context.Context, id string, f domain.TaskFields) error {
	_, err := s.db.Exec(ctx, updateTaskSQL, f.Title, f.Description, f.Assignee, f.Priority, f.Labels, f.Column, id)
	return err
}

// DeleteTask removes the task if present.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, deleteTaskSQL, id)
	return err
}

// SeedTasks inserts each seed that is not present yet, one statement per
// task and without a transaction. It returns the number of rows inserted
// before any failure.
func (s *Store) SeedTasks(ctx context.Context, seeds []domain.SeedTask) (int, error) {
	inserted := 0
	for _, t := range seeds {
		f := t.Fields
		tag, err := s.db.Exec(ctx, seedTaskSQL, t.ID, f.Title, f.Description, f.Assignee, f.Priority, f.Labels, f.Column)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.db.Close()
}
