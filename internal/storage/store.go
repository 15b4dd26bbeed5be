package storage

import (
	"context"
	"time"

	"github.com/taskboard/backend/internal/storage/models"
	"github.com/taskboard/backend/internal/timeline"
)

// Store bundles the repositories sharing one database.
type Store struct {
	DB         *DB
	Users      *UserRepository
	Workspaces *WorkspaceRepository
	Projects   *ProjectRepository
	Tasks      *TaskRepository
	Events     *EventRepository
	Settings   *SettingsRepository
}

// NewStore creates every repository on db.
func NewStore(db *DB) *Store {
	return &Store{
		DB:         db,
		Users:      NewUserRepository(db),
		Workspaces: NewWorkspaceRepository(db),
		Projects:   NewProjectRepository(db),
		Tasks:      NewTaskRepository(db),
		Events:     NewEventRepository(db),
		Settings:   NewSettingsRepository(db),
	}
}

// Roster returns the members of a workspace as user references. It has the
// shape of a timeline.RosterLoader.
func (s *Store) Roster(ctx context.Context, workspaceID string) ([]models.UserReference, error) {
	members, err := s.Workspaces.Members(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return models.References(members), nil
}

// TimelineSource adapts the store to the timeline aggregator.
func (s *Store) TimelineSource() timeline.Source {
	return timelineSource{store: s}
}

type timelineSource struct {
	store *Store
}

var _ timeline.Source = timelineSource{}

func (t timelineSource) Workspaces(ctx context.Context, userID string) ([]models.Workspace, error) {
	return t.store.Workspaces.ListForUser(ctx, userID)
}

func (t timelineSource) Projects(ctx context.Context, workspaceID string) ([]models.Project, error) {
	return t.store.Projects.ListByWorkspace(ctx, workspaceID)
}

func (t timelineSource) Tasks(ctx context.Context, projectID string) ([]models.Task, error) {
	return t.store.Tasks.ListByProject(ctx, projectID)
}

func (t timelineSource) UserEvents(ctx context.Context, userID string, days timeline.DateRange) ([]models.CalendarEvent, error) {
	return t.events(ctx, []string{userID}, days)
}

func (t timelineSource) Teammates(ctx context.Context, userID string) ([]models.User, error) {
	return t.store.Users.Teammates(ctx, userID)
}

func (t timelineSource) TeammateEvents(ctx context.Context, teammateIDs []string, days timeline.DateRange) ([]models.CalendarEvent, error) {
	return t.events(ctx, teammateIDs, days)
}

// events loads the events of userIDs falling on the given days. Timed events
// are bounded by the days in the range's location; all-day events are stored
// at UTC midnight, so the query also covers the same days in UTC.
func (t timelineSource) events(ctx context.Context, userIDs []string, days timeline.DateRange) ([]models.CalendarEvent, error) {
	start, end, err := days.Bounds()
	if err != nil {
		return nil, err
	}
	floating := days
	floating.Location = time.UTC
	dayStart, dayEnd, err := floating.Bounds()
	if err != nil {
		return nil, err
	}
	if dayStart.Before(start) {
		start = dayStart
	}
	if dayEnd.After(end) {
		end = dayEnd
	}

	events, err := t.store.Events.ListForUsers(ctx, userIDs, start, end)
	if err != nil {
		return nil, err
	}

	kept := events[:0]
	for _, ev := range events {
		if days.Contains(ev) {
			kept = append(kept, ev)
		}
	}
	return kept, nil
}
