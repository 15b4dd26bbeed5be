package calendar

import (
	"context"
	"io"
	"log"

	"github.com/taskboard/backend/internal/storage/models"
)

// EventCreator stores a new calendar event, assigning its id.
type EventCreator interface {
	Create(ctx context.Context, ev *models.CalendarEvent) error
}

// ImportResult summarizes one import.
type ImportResult struct {
	EventsFound int                    `json:"events_found"`
	Created     int                    `json:"created"`
	Failed      int                    `json:"failed"`
	Events      []models.CalendarEvent `json:"events"`
}

// Importer copies the entries of an iCalendar feed into a user's personal
// events.
type Importer struct {
	parser *Parser
	events EventCreator
}

// NewImporter creates an importer that writes through events.
func NewImporter(parser *Parser, events EventCreator) *Importer {
	if parser == nil {
		parser = NewParser()
	}
	return &Importer{parser: parser, events: events}
}

// ImportReader imports the feed read from r for userID.
func (i *Importer) ImportReader(ctx context.Context, userID string, r io.Reader) (*ImportResult, error) {
	parsed, err := i.parser.Parse(r)
	if err != nil {
		return nil, err
	}
	return i.store(ctx, userID, parsed), nil
}

// ImportURL downloads the feed at url and imports it for userID.
func (i *Importer) ImportURL(ctx context.Context, userID, url string) (*ImportResult, error) {
	parsed, err := i.parser.FetchAndParse(ctx, url)
	if err != nil {
		return nil, err
	}
	return i.store(ctx, userID, parsed), nil
}

func (i *Importer) store(ctx context.Context, userID string, parsed []models.CalendarEvent) *ImportResult {
	result := &ImportResult{
		EventsFound: len(parsed),
		Events:      make([]models.CalendarEvent, 0, len(parsed)),
	}

	for _, ev := range parsed {
		ev.UserID = userID
		if err := i.events.Create(ctx, &ev); err != nil {
			log.Printf("Error importing event %q: %v", ev.Title, err)
			result.Failed++
			continue
		}
		result.Created++
		result.Events = append(result.Events, ev)
	}

	log.Printf("Imported %d of %d calendar events for %s", result.Created, result.EventsFound, userID)
	return result
}

