package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"kanban-api/domain"
)

func strPtr(s string) *string { return &s }

var taskColumns = []string{"id", "title", "description", "assignee", "priority", "labels", "column_name", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new pgxmock pool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return New(mock), mock
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tasks")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
}

func TestEnsureSchemaWrapsError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tasks")).
		WillReturnError(errors.New("permission denied"))

	err := store.EnsureSchema(context.Background())
	if err == nil || err.Error() != "ensure tasks schema: permission denied" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListTasksOrdersNewestFirstAndMapsRows(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(time.Minute)

	rows := pgxmock.NewRows(taskColumns).
		AddRow("t2", "Second", strPtr("desc"), strPtr("chuck"), "low", []string{"x"}, "done", created.Add(time.Hour), updated).
		AddRow("t1", "First", strPtr(""), strPtr("hanna"), "medium", []string{}, "backlog", created, updated)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks ORDER BY created_at DESC")).WillReturnRows(rows)

	tasks, err := store.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "t2" || tasks[1].ID != "t1" {
		t.Fatalf("unexpected order: %s, %s", tasks[0].ID, tasks[1].ID)
	}
	first := tasks[0]
	if first.Title != "Second" || *first.Description != "desc" || *first.Assignee != "chuck" {
		t.Fatalf("unexpected task fields: %#v", first)
	}
	if first.Priority != "low" || first.Column != "done" || len(first.Labels) != 1 || first.Labels[0] != "x" {
		t.Fatalf("unexpected task fields: %#v", first)
	}
	if !first.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected updatedAt: %v", first.UpdatedAt)
	}
	if tasks[1].Labels == nil {
		t.Fatal("expected labels to be non-nil")
	}
}

func TestListTasksEmptyReturnsEmptySlice(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title")).WillReturnRows(pgxmock.NewRows(taskColumns))

	tasks, err := store.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", tasks)
	}
}

func TestListTasksQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title")).WillReturnError(errors.New("connection refused"))

	if _, err := store.ListTasks(context.Background()); err == nil || err.Error() != "connection refused" {
		t.Fatalf("expected store error to surface unchanged, got %v", err)
	}
}

func TestUpsertTaskSendsNormalizedFields(t *testing.T) {
	store, mock := newMockStore(t)
	f := domain.TaskInput{Title: strPtr("Draft release notes"), Priority: strPtr("high")}.Normalize()
	id := strPtr("t1")

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE SET")).
		WithArgs(id, f.Title, f.Description, f.Assignee, "high", []string{}, "backlog").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.UpsertTask(context.Background(), id, f); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestUpsertTaskSurfacesConstraintViolation(t *testing.T) {
	store, mock := newMockStore(t)
	f := domain.TaskInput{}.Normalize()
	violation := &pgconn.PgError{Code: "23502", Message: `null value in column "title" of relation "tasks" violates not-null constraint`}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "medium", []string{}, "backlog").
		WillReturnError(violation)

	err := store.UpsertTask(context.Background(), strPtr("t1"), f)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23502" {
		t.Fatalf("expected not-null violation, got %v", err)
	}
}

func TestUpdateTaskNoMatchingRowSucceeds(t *testing.T) {
	store, mock := newMockStore(t)
	labels := []string{"x"}
	f := domain.TaskInput{Title: strPtr("Draft release notes v2"), Priority: strPtr("low"), Column: strPtr("done"), Labels: &labels}.Normalize()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET title = $1")).
		WithArgs(f.Title, f.Description, f.Assignee, "low", []string{"x"}, "done", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.UpdateTask(context.Background(), "missing", f); err != nil {
		t.Fatalf("update of unknown id should succeed, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
		WithArgs("t1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := store.DeleteTask(context.Background(), "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestSeedTasksCountsInsertedRows(t *testing.T) {
	store, mock := newMockStore(t)
	seeds := domain.SeedTasks()
	for i, s := range seeds {
		affected := int64(0)
		if i%2 == 0 {
			affected = 1
		}
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
			WithArgs(s.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), s.Fields.Priority, s.Fields.Labels, s.Fields.Column).
			WillReturnResult(pgxmock.NewResult("INSERT", affected))
	}

	inserted, err := store.SeedTasks(context.Background(), seeds)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if inserted != 4 {
		t.Fatalf("expected 4 inserted rows, got %d", inserted)
	}
}

func TestSeedTasksStopsOnFirstError(t *testing.T) {
	store, mock := newMockStore(t)
	seeds := domain.SeedTasks()[:3]

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WithArgs(seeds[0].ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WithArgs(seeds[1].ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	inserted, err := store.SeedTasks(context.Background(), seeds)
	if err == nil {
		t.Fatal("expected error")
	}
	if inserted != 1 {
		t.Fatalf("expected partial insert count 1, got %d", inserted)
	}
}
