package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/taskboard/backend/internal/timeline"
)

// ProductID identifies this application in exported feeds.
const ProductID = "-//Taskboard//Timeline//EN"

// Export serializes timeline items as an iCalendar feed named name. The
// color key of each item is written as its category.
func Export(name string, items []timeline.CalendarItem, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(name)

	for _, item := range items {
		ev := cal.AddEvent(item.ID + "@taskboard")
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(item.Title)
		if item.Description != "" {
			ev.SetDescription(item.Description)
		}

		if item.AllDay {
			start, end := allDayBounds(item.Start, item.End)
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(end)
		} else {
			ev.SetStartAt(item.Start.UTC())
			ev.SetEndAt(item.End.UTC())
		}

		ev.SetProperty(ical.ComponentPropertyCategories, timeline.ColorKey(item))
	}

	return cal.Serialize()
}

// allDayBounds returns the first date and the exclusive end date of an
// all-day item. Items ending on their start date cover that one day.
func allDayBounds(start, end time.Time) (time.Time, time.Time) {
	first := dateOf(start)
	last := dateOf(end)
	if !last.Equal(end) || !last.After(first) {
		last = last.AddDate(0, 0, 1)
	}
	return first, last
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
