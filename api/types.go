package api

import (
	"context"

	"kanban-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	UpsertTask(ctx context.Context, id *string, f domain.TaskFields) error
	UpdateTask(ctx context.Context, id string, f domain.TaskFields) error
	DeleteTask(ctx context.Context, id string) error
	SeedTasks(ctx context.Context, seeds []domain.SeedTask) (int, error)
	Ping(ctx context.Context) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Publisher delivers task events to a queue, a channel or local streams.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TaskEvent) error
}
