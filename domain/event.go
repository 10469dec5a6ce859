package domain

// Event types emitted after successful writes.
const (
	EventTaskUpserted = "task-upserted"
	EventTaskUpdated  = "task-updated"
	EventTaskDeleted  = "task-deleted"
	EventTasksSeeded  = "tasks-seeded"
)

// TaskEvent notifies subscribers that the board changed.
type TaskEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	TaskID    string `json:"taskId,omitempty"`
	Count     int    `json:"count,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
