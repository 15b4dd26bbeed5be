package calendar

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard/backend/internal/storage/models"
	"github.com/taskboard/backend/internal/timeline"
)

const sampleFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//Feed//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@test\r\n" +
	"DTSTAMP:20261001T000000Z\r\n" +
	"DTSTART:20261005T090000Z\r\n" +
	"DTEND:20261005T091500Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"DESCRIPTION:Daily sync\\, quick\r\n" +
	"CATEGORIES:Meeting\r\n" +
	"RRULE:FREQ=DAILY;COUNT=5\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:offsite@test\r\n" +
	"DTSTAMP:20261001T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20261012\r\n" +
	"DTEND;VALUE=DATE:20261014\r\n" +
	"SUMMARY:Offsite\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParser_Parse(t *testing.T) {
	events, err := NewParser().Parse(strings.NewReader(sampleFeed))
	require.NoError(t, err)
	require.Len(t, events, 2)

	standup := events[0]
	assert.Equal(t, "Standup", standup.Title)
	require.NotNil(t, standup.Description)
	assert.Equal(t, "Daily sync, quick", *standup.Description)
	assert.Equal(t, models.EventTypeMeeting, standup.Type)
	assert.False(t, standup.AllDay)
	assert.Equal(t, time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC), standup.StartTime)
	assert.Equal(t, 15*time.Minute, standup.EndTime.Sub(standup.StartTime))
	require.NotNil(t, standup.RRule)
	assert.Equal(t, "FREQ=DAILY;COUNT=5", *standup.RRule)

	offsite := events[1]
	assert.True(t, offsite.AllDay)
	assert.Equal(t, models.EventTypeBusy, offsite.Type)
	assert.Equal(t, "2026-10-12", offsite.StartTime.Format(timeline.DateLayout))
	assert.Equal(t, "2026-10-14", offsite.EndTime.Format(timeline.DateLayout))
	assert.Nil(t, offsite.RRule)
}

func TestParser_FetchAndParse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	events, err := NewParser().FetchAndParse(context.Background(), server.URL+"/feed.ics")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = NewParser().FetchAndParse(context.Background(), server.URL+"/missing.ics")
	assert.ErrorContains(t, err, "status 404")
}

func TestParser_PublicAddressesOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	_, err := NewParser(WithPublicAddressesOnly()).FetchAndParse(context.Background(), server.URL+"/feed.ics")
	assert.ErrorIs(t, err, ErrPrivateAddress)

	for _, ip := range []string{"127.0.0.1", "10.0.0.8", "192.168.1.1", "169.254.169.254", "::1", "0.0.0.0"} {
		assert.False(t, isPublic(net.ParseIP(ip)), ip)
	}
	assert.True(t, isPublic(net.ParseIP("93.184.216.34")))
}

func TestParser_DropsTooFrequentRecurrence(t *testing.T) {
	feed := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:flood@test",
		"DTSTART:20261015T080000Z",
		"DTEND:20261015T080001Z",
		"RRULE:FREQ=SECONDLY",
		"SUMMARY:Flood",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	events, err := NewParser().Parse(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Flood", events[0].Title)
	assert.Nil(t, events[0].RRule)
}

func TestExport(t *testing.T) {
	due := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	items := []timeline.CalendarItem{
		{
			ID:    "ev1",
			Title: "Planning",
			Start: time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC),
			Kind:  timeline.KindPersonalEvent,
			Type:  models.EventTypeFocus,
		},
		{
			ID:     "task-42",
			Title:  "Ship it",
			Start:  due,
			End:    due,
			AllDay: true,
			Kind:   timeline.KindTaskDueDate,
			Status: models.TaskStatusInProgress,
		},
	}

	out := Export("Timeline", items, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, out, "X-WR-CALNAME:Timeline")
	assert.Contains(t, out, "UID:ev1@taskboard")
	assert.Contains(t, out, "DTSTART:20261005T090000Z")
	assert.Contains(t, out, "CATEGORIES:focus")
	assert.Contains(t, out, "UID:task-42@taskboard")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20261012")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20261013")
	assert.Contains(t, out, "CATEGORIES:in-progress")

	reparsed, err := NewParser().Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, reparsed, 2)
	assert.Equal(t, models.EventTypeFocus, reparsed[0].Type)
	assert.True(t, reparsed[1].AllDay)
}

func TestAllDayBounds(t *testing.T) {
	day := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

	start, end := allDayBounds(day, day)
	assert.Equal(t, day, start)
	assert.Equal(t, day.AddDate(0, 0, 1), end)

	start, end = allDayBounds(day, day.AddDate(0, 0, 2))
	assert.Equal(t, day, start)
	assert.Equal(t, day.AddDate(0, 0, 2), end)

	_, end = allDayBounds(day, day.Add(23*time.Hour))
	assert.Equal(t, day.AddDate(0, 0, 1), end)
}

type fakeCreator struct {
	created []models.CalendarEvent
	failOn  string
}

func (f *fakeCreator) Create(ctx context.Context, ev *models.CalendarEvent) error {
	if ev.Title == f.failOn {
		return errors.New("constraint failed")
	}
	ev.ID = "id-" + ev.Title
	f.created = append(f.created, *ev)
	return nil
}

func TestImporter_ImportReader(t *testing.T) {
	creator := &fakeCreator{failOn: "Offsite"}
	importer := NewImporter(nil, creator)

	result, err := importer.ImportReader(context.Background(), "me", strings.NewReader(sampleFeed))
	require.NoError(t, err)

	assert.Equal(t, 2, result.EventsFound)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "id-Standup", result.Events[0].ID)
	assert.Equal(t, "me", creator.created[0].UserID)
}

func TestImporter_RejectsGarbage(t *testing.T) {
	importer := NewImporter(nil, &fakeCreator{})

	_, err := importer.ImportReader(context.Background(), "me", strings.NewReader("not a calendar"))
	assert.Error(t, err)
}
