package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskboard/backend/internal/calendar"
	"github.com/taskboard/backend/internal/storage/models"
)

// EventRepository provides data access for personal calendar events.
type EventRepository struct {
	BaseRepository
}

// NewEventRepository creates a new calendar event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const eventColumns = `id, user_id, title, description, start_time, end_time, all_day, type,
	rrule, created_at, updated_at`

// Create inserts a new calendar event.
func (r *EventRepository) Create(ctx context.Context, ev *models.CalendarEvent) error {
	ev.ID = GenerateID()
	ev.CreatedAt = r.Now()
	ev.UpdatedAt = r.Now()
	normalizeEvent(ev)

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO calendar_events (
			id, user_id, title, description, start_time, end_time, all_day, type,
			rrule, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.UserID, ev.Title, ev.Description, ev.StartTime, ev.EndTime, ev.AllDay, ev.Type,
		ev.RRule, ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting calendar event: %w", err)
	}

	return nil
}

// GetByID retrieves a stored event by ID. It returns nil if none exists.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying calendar event: %w", err)
	}

	return ev, nil
}

// Update replaces the editable fields of an event. The owner never changes.
func (r *EventRepository) Update(ctx context.Context, ev *models.CalendarEvent) error {
	ev.UpdatedAt = r.Now()
	normalizeEvent(ev)

	result, err := r.DB().ExecContext(ctx, `
		UPDATE calendar_events SET
			title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?,
			type = ?, rrule = ?, updated_at = ?
		WHERE id = ?
	`,
		ev.Title, ev.Description, ev.StartTime, ev.EndTime, ev.AllDay,
		ev.Type, ev.RRule, ev.UpdatedAt, ev.ID,
	)
	if err != nil {
		return fmt.Errorf("updating calendar event: %w", err)
	}

	return expectAffected(result, "calendar event", ev.ID)
}

// Delete removes an event, including every occurrence of a recurring one.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM calendar_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting calendar event: %w", err)
	}

	return expectAffected(result, "calendar event", id)
}

// ListForUser retrieves the events of userID intersecting [from, to], with
// recurring events expanded into occurrences.
func (r *EventRepository) ListForUser(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error) {
	return r.ListForUsers(ctx, []string{userID}, from, to)
}

// ListForUsers retrieves the events of any of userIDs intersecting
// [from, to], with recurring events expanded into occurrences.
func (r *EventRepository) ListForUsers(ctx context.Context, userIDs []string, from, to time.Time) ([]models.CalendarEvent, error) {
	if len(userIDs) == 0 {
		return []models.CalendarEvent{}, nil
	}
	from, to = from.UTC(), to.UTC()

	// Recurring rows can produce occurrences long after their first end, so
	// only their start bounds the query.
	query := `SELECT ` + eventColumns + ` FROM calendar_events
		WHERE user_id IN (` + placeholders(len(userIDs)) + `)
		  AND start_time <= ?
		  AND (end_time >= ? OR (rrule IS NOT NULL AND rrule <> ''))
		ORDER BY start_time, id`
	args := append(stringArgs(userIDs), to, from)

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying calendar events: %w", err)
	}
	defer rows.Close()

	var events []models.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning calendar event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return calendar.Expand(events, from, to, 0), nil
}

func scanEvent(row rowScanner) (*models.CalendarEvent, error) {
	ev := &models.CalendarEvent{}
	err := row.Scan(
		&ev.ID, &ev.UserID, &ev.Title, &ev.Description, &ev.StartTime, &ev.EndTime, &ev.AllDay, &ev.Type,
		&ev.RRule, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// normalizeEvent stores times in UTC at second precision so that range
// queries can compare the stored text.
func normalizeEvent(ev *models.CalendarEvent) {
	ev.StartTime = ev.StartTime.UTC().Truncate(time.Second)
	ev.EndTime = ev.EndTime.UTC().Truncate(time.Second)
	if ev.Type == "" {
		ev.Type = models.EventTypeBusy
	}
	if ev.RRule != nil && *ev.RRule == "" {
		ev.RRule = nil
	}
}
