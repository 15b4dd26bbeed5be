package calendar

import (
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/taskboard/backend/internal/storage/models"
	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps how many occurrences one recurring event
// expands into per call.
const DefaultMaxOccurrences = 500

// ErrRuleTooFrequent is returned for rules repeating more often than hourly.
var ErrRuleTooFrequent = errors.New("recurrence must not repeat more often than hourly")

// occurrenceLayout formats the start of an occurrence inside its id.
const occurrenceLayout = "20060102T150405Z"

// Expand returns the events that intersect the closed range [from, to].
// Recurring events are replaced by their occurrences in the range; each
// occurrence gets the id "<event id>@<UTC start>" and SourceID set to the
// stored event. An event whose rule cannot be parsed is kept as a single
// event. The result is sorted by start time.
func Expand(events []models.CalendarEvent, from, to time.Time, maxPerEvent int) []models.CalendarEvent {
	if maxPerEvent <= 0 {
		maxPerEvent = DefaultMaxOccurrences
	}

	out := make([]models.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !ev.IsRecurring() {
			if ev.Overlaps(from, to) {
				out = append(out, ev)
			}
			continue
		}

		occurrences, err := expandEvent(ev, from, to, maxPerEvent)
		if err != nil {
			log.Printf("Invalid recurrence rule on event %s: %v", ev.ID, err)
			if ev.Overlaps(from, to) {
				out = append(out, ev)
			}
			continue
		}
		out = append(out, occurrences...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func expandEvent(ev models.CalendarEvent, from, to time.Time, maxPerEvent int) ([]models.CalendarEvent, error) {
	rule, err := parseRule(*ev.RRule)
	if err != nil {
		return nil, err
	}
	rule.DTStart(ev.StartTime)

	duration := ev.EndTime.Sub(ev.StartTime)
	if duration < 0 {
		duration = 0
	}

	// An occurrence starting before from still intersects the range while
	// it lasts.
	after := from.Add(-duration)

	var out []models.CalendarEvent
	next := rule.Iterator()
	for start, ok := next(); ok && !start.After(to); start, ok = next() {
		if start.Before(after) {
			continue
		}
		if len(out) == maxPerEvent {
			log.Printf("Truncating event %s to %d occurrences", ev.ID, maxPerEvent)
			break
		}
		occ := ev
		occ.ID = ev.ID + "@" + start.UTC().Format(occurrenceLayout)
		occ.SourceID = ev.ID
		occ.StartTime = start
		occ.EndTime = start.Add(duration)
		out = append(out, occ)
	}
	return out, nil
}

// parseRule parses an RRULE value, with or without its "RRULE:" prefix.
func parseRule(value string) (*rrule.RRule, error) {
	rule, err := rrule.StrToRRule(strings.TrimPrefix(value, "RRULE:"))
	if err != nil {
		return nil, err
	}
	switch rule.OrigOptions.Freq {
	case rrule.SECONDLY, rrule.MINUTELY:
		return nil, ErrRuleTooFrequent
	}
	return rule, nil
}

// SplitOccurrenceID returns the stored event id of an occurrence id, or the
// id itself if it is not an occurrence id.
func SplitOccurrenceID(id string) (eventID string, isOccurrence bool) {
	base, stamp, found := strings.Cut(id, "@")
	if !found {
		return id, false
	}
	if _, err := time.Parse(occurrenceLayout, stamp); err != nil {
		return id, false
	}
	return base, true
}

// ValidateRule reports whether rule can be expanded.
func ValidateRule(rule string) error {
	_, err := parseRule(rule)
	return err
}
