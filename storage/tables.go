package storage

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

const (
	tasksPartition = "tasks"
	edmDateTime    = "Edm.DateTime"
)

var (
	errNullID    = errors.New(`null value in column "id" violates not-null constraint`)
	errNullTitle = errors.New(`null value in column "title" violates not-null constraint`)
)

// TableStore keeps tasks in a single Azure table partition. It mirrors the
// Postgres semantics: upsert keeps CreatedAt, seed only adds missing rows and
// updates or deletes of unknown ids succeed without effect.
type TableStore struct {
	table *aztables.Client
	now   func() time.Time
}

var _ Backend = (*TableStore)(nil)

// NewTableStore creates a TableStore from the given connection string.
func NewTableStore(connStr, tableName string) (*TableStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableStore{table: svc.NewClient(tableName), now: time.Now}, nil
}

type taskEntity struct {
	PartitionKey  string    `json:"PartitionKey"`
	RowKey        string    `json:"RowKey"`
	Title         string    `json:"Title"`
	Description   *string   `json:"Description,omitempty"`
	Assignee      *string   `json:"Assignee,omitempty"`
	Priority      string    `json:"Priority"`
	Labels        string    `json:"Labels"`
	Column        string    `json:"Column"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type"`
}

// newTaskEntity encodes labels as a JSON array because tables have no list
// property type.
func newTaskEntity(id string, f domain.TaskFields, createdAt, updatedAt time.Time) (taskEntity, error) {
	if f.Title == nil {
		return taskEntity{}, errNullTitle
	}
	labels := f.Labels
	if labels == nil {
		labels = []string{}
	}
	encoded, err := sonic.MarshalString(labels)
	if err != nil {
		return taskEntity{}, err
	}
	return taskEntity{
		PartitionKey:  tasksPartition,
		RowKey:        id,
		Title:         *f.Title,
		Description:   f.Description,
		Assignee:      f.Assignee,
		Priority:      f.Priority,
		Labels:        encoded,
		Column:        f.Column,
		CreatedAt:     createdAt.UTC(),
		CreatedAtType: edmDateTime,
		UpdatedAt:     updatedAt.UTC(),
		UpdatedAtType: edmDateTime,
	}, nil
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	labels := []string{}
	if strings.TrimSpace(ent.Labels) != "" {
		if err := sonic.UnmarshalString(ent.Labels, &labels); err != nil {
			return domain.Task{}, err
		}
	}
	t := domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Assignee:    ent.Assignee,
		Priority:    ent.Priority,
		Labels:      labels,
		Column:      ent.Column,
		CreatedAt:   ent.CreatedAt,
		UpdatedAt:   ent.UpdatedAt,
	}
	if t.Priority == "" {
		t.Priority = domain.DefaultPriority
	}
	if t.Column == "" {
		t.Column = domain.DefaultColumn
	}
	return t, nil
}

func sortNewestFirst(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

// EnsureSchema creates the table if it does not exist yet.
func (s *TableStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.table.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

// ListTasks returns every task, most recently created first.
func (s *TableStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + tasksPartition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	sortNewestFirst(tasks)
	return tasks, nil
}

func (s *TableStore) getTask(ctx context.Context, id string) (*domain.Task, error) {
	resp, err := s.table.GetEntity(ctx, tasksPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	t, err := decodeTaskEntity(resp.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTask inserts or replaces the task, keeping CreatedAt of an existing row.
func (s *TableStore) UpsertTask(ctx context.Context, id *string, f domain.TaskFields) error {
	if id == nil {
		return errNullID
	}
	now := s.now()
	createdAt := now
	existing, err := s.getTask(ctx, *id)
	if err != nil {
		return err
	}
	if existing != nil {
		createdAt = existing.CreatedAt
	}
	ent, err := newTaskEntity(*id, f, createdAt, now)
	if err != nil {
		return err
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// UpdateTask replaces the task when it exists and is a no-op otherwise.
func (s *TableStore) UpdateTask(ctx context.Context, id string, f domain.TaskFields) error {
	existing, err := s.getTask(ctx, id)
	if err != nil || existing == nil {
		return err
	}
	ent, err := newTaskEntity(id, f, existing.CreatedAt, s.now())
	if err != nil {
		return err
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// DeleteTask removes the task if present.
func (s *TableStore) DeleteTask(ctx context.Context, id string) error {
	et := azcore.ETagAny
	_, err := s.table.DeleteEntity(ctx, tasksPartition, id, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// SeedTasks adds each seed that does not exist yet.
func (s *TableStore) SeedTasks(ctx context.Context, seeds []domain.SeedTask) (int, error) {
	inserted := 0
	for _, t := range seeds {
		now := s.now()
		ent, err := newTaskEntity(t.ID, t.Fields, now, now)
		if err != nil {
			return inserted, err
		}
		payload, err := sonic.Marshal(ent)
		if err != nil {
			return inserted, err
		}
		if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
			if isAlreadyExists(err) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// Ping reads at most one entity to verify the table is reachable.
func (s *TableStore) Ping(ctx context.Context) error {
	top := int32(1)
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Top: &top})
	_, err := pager.NextPage(ctx)
	return err
}

func (s *TableStore) Close() {}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return respErr.StatusCode == http.StatusConflict || respErr.ErrorCode == string(aztables.EntityAlreadyExists)
}
