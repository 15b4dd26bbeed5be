package handlers

import (
	"net/http"
	"strings"

	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/storage/models"
)

// ProfileRequest is the body of PUT /api/me.
type ProfileRequest struct {
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// TeammateRequest is the body of POST /api/teammates.
type TeammateRequest struct {
	UserID string `json:"user_id"`
}

// GetMe returns the caller's profile.
func GetMe(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		user, err := store.Users.GetByID(r.Context(), userID)
		if err != nil {
			writeStoreError(w, err, "load profile")
			return
		}
		if user == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Profile not found")
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

// UpdateMe mirrors the caller's profile from the session provider.
func UpdateMe(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		var req ProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user := &models.User{
			ID:          userID,
			Email:       strings.TrimSpace(req.Email),
			DisplayName: strings.TrimSpace(req.DisplayName),
			AvatarURL:   req.AvatarURL,
		}
		if user.DisplayName == "" {
			user.DisplayName = user.Email
		}
		if user.DisplayName == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Display name or email is required")
			return
		}

		if err := store.Users.Upsert(r.Context(), user); err != nil {
			writeStoreError(w, err, "save profile")
			return
		}

		saved, err := store.Users.GetByID(r.Context(), userID)
		if err != nil || saved == nil {
			writeJSON(w, http.StatusOK, user)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// ListUsers returns every known user as a reference.
func ListUsers(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.RequireUser(w, r); !ok {
			return
		}

		users, err := store.Users.List(r.Context())
		if err != nil {
			writeStoreError(w, err, "list users")
			return
		}

		writeJSON(w, http.StatusOK, models.References(users))
	}
}

// ListTeammates returns the users whose events appear on the caller's timeline.
func ListTeammates(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		teammates, err := store.Users.Teammates(r.Context(), userID)
		if err != nil {
			writeStoreError(w, err, "list teammates")
			return
		}

		writeJSON(w, http.StatusOK, models.References(teammates))
	}
}

// AddTeammate links the caller with another user.
func AddTeammate(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		var req TeammateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.UserID == "" || req.UserID == userID {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "A different user_id is required")
			return
		}

		teammate, err := store.Users.GetByID(r.Context(), req.UserID)
		if err != nil {
			writeStoreError(w, err, "load user")
			return
		}
		if teammate == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		if err := store.Users.AddTeammate(r.Context(), userID, req.UserID); err != nil {
			writeStoreError(w, err, "add teammate")
			return
		}

		writeJSON(w, http.StatusCreated, teammate.Reference())
	}
}
