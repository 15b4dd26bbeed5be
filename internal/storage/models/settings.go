package models

import (
	"time"
)

// UserSettings are the calendar display preferences of a user.
type UserSettings struct {
	UserID    string    `json:"user_id"`
	Timezone  string    `json:"timezone"`
	WeekStart string    `json:"week_start"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location returns the settings' timezone, or UTC if it cannot be loaded.
func (s *UserSettings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WeekStartDay returns the first day of the week.
func (s *UserSettings) WeekStartDay() time.Weekday {
	if s.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}
