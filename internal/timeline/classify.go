package timeline

// DefaultColorKey is used for events that carry no type.
const DefaultColorKey = "busy"

var statusColorKeys = map[string]string{
	"not_started": "todo",
	"in_progress": "in-progress",
	"completed":   "done",
}

// IsEditable reports whether the item may be changed through the event CRUD
// endpoints. Only the user's own events are editable.
func IsEditable(item CalendarItem) bool {
	return item.Kind == KindPersonalEvent
}

// ColorKey returns the display color key of an item: the normalized status
// for task items, the event type for everything else.
func ColorKey(item CalendarItem) string {
	if item.Kind == KindTaskDueDate {
		return NormalizeStatus(item.Status)
	}
	if item.Type == "" {
		return DefaultColorKey
	}
	return item.Type
}

// NormalizeStatus maps stored task statuses to their display keys. Unknown
// statuses pass through unchanged.
func NormalizeStatus(status string) string {
	if key, ok := statusColorKeys[status]; ok {
		return key
	}
	return status
}
