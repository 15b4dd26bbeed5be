// Package models contains the domain models for the application.
package models

import (
	"time"
)

// User is an account known to the application.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserReference is the resolved identity shown wherever a user is referenced
// (assignees, event owners). Placeholder references are synthesized for ids
// that could not be resolved and are never persisted.
type UserReference struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Reference converts a stored user into a UserReference.
func (u User) Reference() UserReference {
	ref := UserReference{
		ID:          u.ID,
		DisplayName: u.DisplayName,
	}
	if u.AvatarURL != nil {
		ref.AvatarURL = *u.AvatarURL
	}
	return ref
}

// References converts a list of users into references, preserving order.
func References(users []User) []UserReference {
	refs := make([]UserReference, 0, len(users))
	for _, u := range users {
		refs = append(refs, u.Reference())
	}
	return refs
}
