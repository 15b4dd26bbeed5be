package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/calendar"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/storage/models"
	"github.com/taskboard/backend/internal/timeline"
	"github.com/taskboard/backend/internal/websocket"
)

// maxImportBytes limits uploaded iCalendar files.
const maxImportBytes = 5 << 20

// EventRequest is the body of event create and update requests.
type EventRequest struct {
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	Type        string    `json:"type"`
	RRule       *string   `json:"rrule,omitempty"`
}

// ImportRequest is the JSON body of POST /api/events/import.
type ImportRequest struct {
	URL string `json:"url"`
}

// validate checks the request and writes a 400 if it is unusable.
func (req *EventRequest) validate(w http.ResponseWriter) bool {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Title is required")
		return false
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start_time and end_time are required")
		return false
	}
	if req.EndTime.Before(req.StartTime) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end_time must not be before start_time")
		return false
	}
	if req.Type == "" {
		req.Type = models.EventTypeBusy
	}
	if !models.ValidEventType(req.Type) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown event type")
		return false
	}
	if req.RRule != nil && *req.RRule != "" {
		if err := calendar.ValidateRule(*req.RRule); err != nil {
			middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid recurrence rule", err.Error())
			return false
		}
	}
	return true
}

func (req *EventRequest) apply(ev *models.CalendarEvent) {
	ev.Title = req.Title
	ev.Description = req.Description
	ev.StartTime = req.StartTime
	ev.EndTime = req.EndTime
	ev.AllDay = req.AllDay
	ev.Type = req.Type
	ev.RRule = req.RRule
}

// loadOwnEvent resolves the path id to a stored event owned by userID. An
// occurrence id refers to its whole series. Task-derived ids are rejected
// since due dates are changed through the task.
func loadOwnEvent(w http.ResponseWriter, r *http.Request, store *storage.Store, userID string) (*models.CalendarEvent, bool) {
	id := mux.Vars(r)["id"]
	if strings.HasPrefix(id, timeline.TaskIDPrefix) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Task due dates cannot be edited as events")
		return nil, false
	}
	id, _ = calendar.SplitOccurrenceID(id)

	ev, err := store.Events.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "load event")
		return nil, false
	}
	if ev == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
		return nil, false
	}
	if ev.UserID != userID {
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only the owner can change this event")
		return nil, false
	}
	return ev, true
}

// CreateEvent adds a personal event for the caller.
func CreateEvent(store *storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		var req EventRequest
		if !decodeJSON(w, r, &req) || !req.validate(w) {
			return
		}

		ev := &models.CalendarEvent{UserID: userID}
		req.apply(ev)
		if err := store.Events.Create(r.Context(), ev); err != nil {
			writeStoreError(w, err, "create event")
			return
		}

		broadcaster.BroadcastEventCreated(*ev, eventAudience(r, store, userID))
		writeJSON(w, http.StatusCreated, ev)
	}
}

// UpdateEvent replaces a personal event of the caller.
func UpdateEvent(store *storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		ev, ok := loadOwnEvent(w, r, store, userID)
		if !ok {
			return
		}

		var req EventRequest
		if !decodeJSON(w, r, &req) || !req.validate(w) {
			return
		}

		req.apply(ev)
		if err := store.Events.Update(r.Context(), ev); err != nil {
			writeStoreError(w, err, "update event")
			return
		}

		broadcaster.BroadcastEventUpdated(*ev, eventAudience(r, store, userID))
		writeJSON(w, http.StatusOK, ev)
	}
}

// DeleteEvent removes a personal event of the caller, with every occurrence.
func DeleteEvent(store *storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		ev, ok := loadOwnEvent(w, r, store, userID)
		if !ok {
			return
		}

		if err := store.Events.Delete(r.Context(), ev.ID); err != nil {
			writeStoreError(w, err, "delete event")
			return
		}

		broadcaster.BroadcastEventDeleted(ev.ID, userID, eventAudience(r, store, userID))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ImportEvents copies an iCalendar feed into the caller's personal events.
// The body is either the feed itself or a JSON object naming its URL; the
// latter only when allowURL is set.
func ImportEvents(importer *calendar.Importer, store *storage.Store, broadcaster *websocket.EventBroadcaster, allowURL bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		var (
			result *calendar.ImportResult
			err    error
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var req ImportRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if !allowURL {
				middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Importing from a URL is disabled")
				return
			}
			if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "url must be an http(s) address")
				return
			}
			result, err = importer.ImportURL(r.Context(), userID, req.URL)
		} else {
			result, err = importer.ImportReader(r.Context(), userID, io.LimitReader(r.Body, maxImportBytes))
		}
		if err != nil {
			middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrBadRequest, "Failed to import calendar", err.Error())
			return
		}

		audience := eventAudience(r, store, userID)
		for _, ev := range result.Events {
			broadcaster.BroadcastEventCreated(ev, audience)
		}

		writeJSON(w, http.StatusOK, result)
	}
}
