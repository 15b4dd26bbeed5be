package timeline

import (
	"sort"
	"time"
)

// maxSpanDays caps how many days a single item is spread across.
const maxSpanDays = 366

// Day is one calendar day of a grouped timeline.
type Day struct {
	Date  string         `json:"date"`
	Items []CalendarItem `json:"items"`
}

// GroupByDay buckets items by local date in loc. An item spanning several
// days appears on each of them; an end at exactly midnight is exclusive.
// Days are sorted by date, items within a day keep their input order.
func GroupByDay(items []CalendarItem, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}

	buckets := make(map[string][]CalendarItem)
	for _, item := range items {
		for _, date := range spanDates(item, loc) {
			buckets[date] = append(buckets[date], item)
		}
	}

	days := make([]Day, 0, len(buckets))
	for date, dayItems := range buckets {
		days = append(days, Day{Date: date, Items: dayItems})
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days
}

func spanDates(item CalendarItem, loc *time.Location) []string {
	start := item.Start
	end := item.End
	if !item.AllDay {
		start = start.In(loc)
		end = end.In(loc)
	}
	if end.Before(start) {
		end = start
	}
	if end.After(start) && isMidnight(end) {
		end = end.Add(-time.Nanosecond)
	}

	first := startOfDay(start)
	last := startOfDay(end)

	var dates []string
	for d := first; !d.After(last) && len(dates) < maxSpanDays; d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
