package websocket

import (
	"log"

	"github.com/taskboard/backend/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events. A nil broadcaster
// drops every message, so callers need not check whether live updates are
// enabled.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	if hub == nil {
		return nil
	}
	return &EventBroadcaster{hub: hub}
}

// BroadcastEventCreated announces a new calendar event to audience.
func (b *EventBroadcaster) BroadcastEventCreated(ev models.CalendarEvent, audience []string) {
	b.send(NewMessage(TypeEventCreated, EventPayload{Event: ev}), audience)
}

// BroadcastEventUpdated announces a changed calendar event to audience.
func (b *EventBroadcaster) BroadcastEventUpdated(ev models.CalendarEvent, audience []string) {
	b.send(NewMessage(TypeEventUpdated, EventPayload{Event: ev}), audience)
}

// BroadcastEventDeleted announces a removed calendar event to audience.
func (b *EventBroadcaster) BroadcastEventDeleted(eventID, ownerID string, audience []string) {
	payload := EventDeletedPayload{EventID: eventID, UserID: ownerID}
	b.send(NewMessage(TypeEventDeleted, payload), audience)
}

// BroadcastTaskUpdated announces a changed task to the members of its workspace.
func (b *EventBroadcaster) BroadcastTaskUpdated(task models.Task, workspaceID string, audience []string) {
	payload := TaskPayload{Task: task, WorkspaceID: workspaceID}
	b.send(NewMessage(TypeTaskUpdated, payload), audience)
}

// BroadcastTaskDeleted announces a removed task to the members of its workspace.
func (b *EventBroadcaster) BroadcastTaskDeleted(taskID, workspaceID string, audience []string) {
	payload := TaskDeletedPayload{TaskID: taskID, WorkspaceID: workspaceID}
	b.send(NewMessage(TypeTaskDeleted, payload), audience)
}

// BroadcastTaskDueSoon reminds audience of an open task nearing its due date.
func (b *EventBroadcaster) BroadcastTaskDueSoon(tc models.TaskWithContext, assignees []models.UserReference, audience []string) {
	payload := TaskDueSoonPayload{
		TaskID:        tc.ID,
		Title:         tc.Title,
		Status:        tc.Status,
		Priority:      tc.Priority,
		ProjectID:     tc.ProjectID,
		ProjectName:   tc.ProjectName,
		WorkspaceID:   tc.WorkspaceID,
		WorkspaceName: tc.WorkspaceName,
		Assignees:     assignees,
	}
	if tc.DueDate != nil {
		payload.DueDate = tc.DueDate.Format("2006-01-02")
	}
	b.send(NewMessage(TypeTaskDueSoon, payload), audience)
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}
	b.send(NewMessage(TypeNotification, payload), nil)
}

// send delivers msg to audience, or to everyone if audience is nil.
func (b *EventBroadcaster) send(msg Message, audience []string) {
	if b == nil {
		return
	}

	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	if audience == nil {
		b.hub.Broadcast(data)
		return
	}
	b.hub.SendTo(audience, data)
}
