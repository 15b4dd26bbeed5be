package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/calendar"
	"github.com/taskboard/backend/internal/config"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/timeline"
)

// maxRangeDays bounds a single timeline request.
const maxRangeDays = 366

// TimelineItem is a calendar item as rendered by clients.
type TimelineItem struct {
	timeline.CalendarItem
	Editable bool   `json:"editable"`
	ColorKey string `json:"color_key"`
}

// TimelineResponse is the body of GET /api/timeline.
type TimelineResponse struct {
	From                 string                `json:"from"`
	To                   string                `json:"to"`
	Timezone             string                `json:"timezone"`
	Items                []TimelineItem        `json:"items"`
	Days                 []timeline.Day        `json:"days,omitempty"`
	Warnings             []timeline.FetchError `json:"warnings"`
	PersonalEventsFailed bool                  `json:"personal_events_failed"`
}

// GetTimeline returns the caller's merged calendar for a date range.
// Without from/to the current week is returned. Anonymous callers get an
// empty timeline.
func GetTimeline(agg *timeline.Aggregator, store *storage.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		settings := effectiveSettings(r, store, cfg, userID)
		loc := settings.Location()

		from, to, err := requestRange(r, loc, settings.WeekStartDay(), time.Now())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		result := agg.Aggregate(r.Context(), userID, from, to)

		items := make([]TimelineItem, 0, len(result.Items))
		for _, item := range result.Items {
			items = append(items, TimelineItem{
				CalendarItem: item,
				Editable:     timeline.IsEditable(item),
				ColorKey:     timeline.ColorKey(item),
			})
		}

		response := TimelineResponse{
			From:                 from.Format(timeline.DateLayout),
			To:                   to.Format(timeline.DateLayout),
			Timezone:             loc.String(),
			Items:                items,
			Warnings:             result.Failures,
			PersonalEventsFailed: result.PersonalEventsFailed,
		}
		if response.Warnings == nil {
			response.Warnings = []timeline.FetchError{}
		}
		if r.URL.Query().Get("group") == "day" {
			response.Days = timeline.GroupByDay(result.Items, loc)
		}

		writeJSON(w, http.StatusOK, response)
	}
}

// ExportTimeline returns the caller's timeline as an iCalendar file.
func ExportTimeline(agg *timeline.Aggregator, store *storage.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		settings := effectiveSettings(r, store, cfg, userID)

		from, to, err := requestRange(r, settings.Location(), settings.WeekStartDay(), time.Now())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		result := agg.Aggregate(r.Context(), userID, from, to)
		body := calendar.Export("Taskboard timeline", result.Items, time.Now())

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="timeline.ics"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}
}

// requestRange reads the from/to query parameters as dates in loc. Missing
// bounds default to the week containing now.
func requestRange(r *http.Request, loc *time.Location, weekStart time.Weekday, now time.Time) (time.Time, time.Time, error) {
	weekFrom, weekTo := weekRange(now.In(loc), weekStart)
	query := r.URL.Query()

	from, to := weekFrom, weekTo
	if raw := query.Get("from"); raw != "" {
		parsed, err := time.ParseInLocation(timeline.DateLayout, raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("from must be a yyyy-mm-dd date")
		}
		from = parsed
		to = from.AddDate(0, 0, 6)
	}
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.ParseInLocation(timeline.DateLayout, raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("to must be a yyyy-mm-dd date")
		}
		to = parsed
	}

	if to.Before(from) {
		from, to = to, from
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("range may not exceed %d days", maxRangeDays)
	}
	return from, to, nil
}

// weekRange returns the first and last day of the week containing day.
func weekRange(day time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	offset := (int(start.Weekday()) - int(weekStart) + 7) % 7
	start = start.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}
