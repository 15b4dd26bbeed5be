package models

import (
	"time"
)

// Task is a unit of work with optional due date, status, priority and assignees.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	// AssignedTo holds the assignee column exactly as stored. Older rows keep a
	// bare user id, newer ones a JSON array of ids or of user objects.
	AssignedTo *string   `json:"assigned_to,omitempty"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Task status constants
const (
	TaskStatusNotStarted = "not_started"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Task priority constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// HasDueDate reports whether the task is scheduled on the calendar.
func (t *Task) HasDueDate() bool {
	return t.DueDate != nil && !t.DueDate.IsZero()
}

// IsOpen returns true if the task has not been completed.
func (t *Task) IsOpen() bool {
	return t.Status != TaskStatusCompleted
}

// Comment is a message attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskWithContext is a task joined with the names of its project and workspace.
type TaskWithContext struct {
	Task
	ProjectName   string `json:"project_name"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
}
