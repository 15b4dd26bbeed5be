// Package timeline merges personal calendar events, task due dates from every
// workspace the user belongs to, and teammates' events into one list of
// calendar items.
package timeline

import (
	"time"

	"github.com/taskboard/backend/internal/storage/models"
)

// DateLayout is the format of range bounds passed to a Source.
const DateLayout = "2006-01-02"

// TaskIDPrefix prefixes the ids of task-derived items so they never collide
// with native event ids.
const TaskIDPrefix = "task-"

// Kind identifies where a calendar item came from.
type Kind string

const (
	KindPersonalEvent Kind = "personal_event"
	KindTaskDueDate   Kind = "task_due_date"
	KindTeammateEvent Kind = "teammate_event"
)

// CalendarItem is the normalized unit rendered on the calendar regardless of
// origin. Items are derived on every aggregation and never stored.
type CalendarItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Kind        Kind      `json:"kind"`
	// SourceRef is the id of the originating event or task.
	SourceRef string `json:"source_ref"`

	// Event items
	Type    string `json:"type,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`

	// Task items
	Status        string                 `json:"status,omitempty"`
	Priority      string                 `json:"priority,omitempty"`
	ProjectID     string                 `json:"project_id,omitempty"`
	ProjectName   string                 `json:"project_name,omitempty"`
	WorkspaceID   string                 `json:"workspace_id,omitempty"`
	WorkspaceName string                 `json:"workspace_name,omitempty"`
	Assignees     []models.UserReference `json:"assignees,omitempty"`
}

// FromEvent converts a personal or teammate event into an item.
func FromEvent(ev models.CalendarEvent, kind Kind) CalendarItem {
	item := CalendarItem{
		ID:        ev.ID,
		Title:     ev.Title,
		Start:     ev.StartTime,
		End:       ev.EndTime,
		AllDay:    ev.AllDay,
		Kind:      kind,
		SourceRef: ev.Ref(),
		Type:      ev.Type,
		OwnerID:   ev.UserID,
	}
	if ev.Description != nil {
		item.Description = *ev.Description
	}
	return item
}

// FromTask converts a task with a due date into an all-day item on that date.
func FromTask(t models.Task, project models.Project, ws models.Workspace) CalendarItem {
	item := CalendarItem{
		ID:            TaskIDPrefix + t.ID,
		Title:         t.Title,
		AllDay:        true,
		Kind:          KindTaskDueDate,
		SourceRef:     t.ID,
		Status:        t.Status,
		Priority:      t.Priority,
		ProjectID:     project.ID,
		ProjectName:   project.Name,
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
	}
	if t.Description != nil {
		item.Description = *t.Description
	}
	if t.DueDate != nil {
		item.Start = *t.DueDate
		item.End = *t.DueDate
	}
	return item
}
