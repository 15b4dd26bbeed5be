package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/taskboard/backend/internal/storage/models"
)

// Source is the read side of the persistence layer consumed by the
// aggregator.
type Source interface {
	Workspaces(ctx context.Context, userID string) ([]models.Workspace, error)
	Projects(ctx context.Context, workspaceID string) ([]models.Project, error)
	Tasks(ctx context.Context, projectID string) ([]models.Task, error)
	UserEvents(ctx context.Context, userID string, r DateRange) ([]models.CalendarEvent, error)
	Teammates(ctx context.Context, userID string) ([]models.User, error)
	TeammateEvents(ctx context.Context, teammateIDs []string, r DateRange) ([]models.CalendarEvent, error)
}

// DateRange is a closed range of calendar days, From and To in DateLayout,
// read as wall-clock days in Location.
type DateRange struct {
	From     string
	To       string
	Location *time.Location
}

// NewDateRange returns the days of from and to in their own location.
func NewDateRange(from, to time.Time) DateRange {
	if to.Before(from) {
		from, to = to, from
	}
	return DateRange{
		From:     from.Format(DateLayout),
		To:       to.In(from.Location()).Format(DateLayout),
		Location: from.Location(),
	}
}

func (r DateRange) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// Bounds returns the instants from the start of the first day to the end of
// the last day, both in the range's location.
func (r DateRange) Bounds() (time.Time, time.Time, error) {
	loc := r.location()
	start, err := time.ParseInLocation(DateLayout, r.From, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing range start %q: %w", r.From, err)
	}
	end, err := time.ParseInLocation(DateLayout, r.To, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing range end %q: %w", r.To, err)
	}
	return start, end.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// Contains reports whether ev falls inside the range. Timed events are
// compared as instants. All-day events are floating dates and are compared
// by day, with an end at midnight treated as exclusive.
func (r DateRange) Contains(ev models.CalendarEvent) bool {
	if !ev.AllDay {
		start, end, err := r.Bounds()
		if err != nil {
			return false
		}
		return ev.Overlaps(start, end)
	}

	first := ev.StartTime.UTC()
	last := ev.EndTime.UTC()
	if last.After(first) && last.Equal(last.Truncate(24*time.Hour)) {
		last = last.AddDate(0, 0, -1)
	}
	if last.Before(first) {
		last = first
	}
	return first.Format(DateLayout) <= r.To && last.Format(DateLayout) >= r.From
}

// Fetch source names used in FetchError.
const (
	SourcePersonalEvents = "personal_events"
	SourceWorkspaces     = "workspaces"
	SourceProjects       = "projects"
	SourceTasks          = "tasks"
	SourceRoster         = "roster"
	SourceTeammates      = "teammates"
	SourceTeammateEvents = "teammate_events"
)

// FetchError records a collaborator call that failed. The branch it belongs
// to contributes nothing; the rest of the aggregation proceeds.
type FetchError struct {
	Source string `json:"source"`
	// Scope is the workspace or project id the call was made for, if any.
	Scope string `json:"scope,omitempty"`
	Err   error  `json:"-"`
}

func (e FetchError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("fetching %s for %s: %v", e.Source, e.Scope, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// outcome is the value-or-error result of one sub-fetch.
type outcome[T any] struct {
	value T
	err   error
}

func (o outcome[T]) ok() bool {
	return o.err == nil
}

// capture runs fn and converts a returned error or a panic into an outcome.
func capture[T any](fn func() (T, error)) (out outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome[T]{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn()
	return outcome[T]{value: v, err: err}
}
