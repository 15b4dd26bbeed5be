package models

import (
	"time"
)

// CalendarEvent is a user-owned calendar entry.
type CalendarEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	Type        string    `json:"type"`
	// RRule is an optional RFC 5545 recurrence rule, e.g. "FREQ=WEEKLY;COUNT=4".
	RRule     *string   `json:"rrule,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// SourceID is set on expanded occurrences of a recurring event and points
	// back to the stored row. Empty for non-recurring events.
	SourceID string `json:"source_id,omitempty"`
}

// Event type constants
const (
	EventTypeBusy     = "busy"
	EventTypeMeeting  = "meeting"
	EventTypeFocus    = "focus"
	EventTypeOutOfOff = "out-of-office"
)

// Ref returns the id of the stored event this event was derived from.
func (e *CalendarEvent) Ref() string {
	if e.SourceID != "" {
		return e.SourceID
	}
	return e.ID
}

// IsRecurring returns true if the event carries a recurrence rule.
func (e *CalendarEvent) IsRecurring() bool {
	return e.RRule != nil && *e.RRule != ""
}

// Overlaps returns true if the event intersects the closed range [from, to].
func (e *CalendarEvent) Overlaps(from, to time.Time) bool {
	return !e.EndTime.Before(from) && !e.StartTime.After(to)
}

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t string) bool {
	switch t {
	case EventTypeBusy, EventTypeMeeting, EventTypeFocus, EventTypeOutOfOff:
		return true
	}
	return false
}
