package websocket

import (
	"encoding/json"
	"time"

	"github.com/taskboard/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeEventCreated MessageType = "event.created"
	TypeEventUpdated MessageType = "event.updated"
	TypeEventDeleted MessageType = "event.deleted"
	TypeTaskUpdated  MessageType = "task.updated"
	TypeTaskDeleted  MessageType = "task.deleted"
	TypeTaskDueSoon  MessageType = "task.due_soon"
	TypeNotification MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventPayload is the payload for event.created and event.updated.
type EventPayload struct {
	Event models.CalendarEvent `json:"event"`
}

// EventDeletedPayload is the payload for event.deleted.
type EventDeletedPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// TaskPayload is the payload for task.updated.
type TaskPayload struct {
	Task        models.Task `json:"task"`
	WorkspaceID string      `json:"workspace_id"`
}

// TaskDeletedPayload is the payload for task.deleted.
type TaskDeletedPayload struct {
	TaskID      string `json:"task_id"`
	WorkspaceID string `json:"workspace_id"`
}

// TaskDueSoonPayload is the payload for task.due_soon.
type TaskDueSoonPayload struct {
	TaskID        string                 `json:"task_id"`
	Title         string                 `json:"title"`
	DueDate       string                 `json:"due_date"`
	Status        string                 `json:"status"`
	Priority      string                 `json:"priority"`
	ProjectID     string                 `json:"project_id"`
	ProjectName   string                 `json:"project_name"`
	WorkspaceID   string                 `json:"workspace_id"`
	WorkspaceName string                 `json:"workspace_name"`
	Assignees     []models.UserReference `json:"assignees"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
