package domain

import "time"

const (
	DefaultPriority = "medium"
	DefaultColumn   = "backlog"
)

// Task represents a single card on the board.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Assignee    *string   `json:"assignee"`
	Priority    string    `json:"priority"`
	Labels      []string  `json:"labels"`
	Column      string    `json:"column"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskInput is the request body accepted by the create and update routes.
// Absent fields stay nil until Normalize applies the board defaults.
type TaskInput struct {
	ID          *string   `json:"id,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Assignee    *string   `json:"assignee,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Labels      *[]string `json:"labels,omitempty"`
	Column      *string   `json:"column,omitempty"`
}

// TaskFields holds the mutable columns of a task after defaults were applied.
// Title stays a pointer so a missing title reaches the store as NULL.
type TaskFields struct {
	Title       *string
	Description *string
	Assignee    *string
	Priority    string
	Labels      []string
	Column      string
}

// Normalize applies the documented defaults: medium priority, no labels and
// the backlog column.
func (in TaskInput) Normalize() TaskFields {
	f := TaskFields{
		Title:       in.Title,
		Description: in.Description,
		Assignee:    in.Assignee,
		Priority:    DefaultPriority,
		Labels:      []string{},
		Column:      DefaultColumn,
	}
	if in.Priority != nil && *in.Priority != "" {
		f.Priority = *in.Priority
	}
	if in.Labels != nil && *in.Labels != nil {
		f.Labels = *in.Labels
	}
	if in.Column != nil && *in.Column != "" {
		f.Column = *in.Column
	}
	return f
}

// TaskID returns the caller supplied id or an empty string.
func (in TaskInput) TaskID() string {
	if in.ID == nil {
		return ""
	}
	return *in.ID
}
