package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/storage/models"
	"github.com/taskboard/backend/internal/timeline"
)

// Workspace request types

type CreateWorkspaceRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ListWorkspaces returns the workspaces the caller belongs to.
func ListWorkspaces(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		workspaces, err := store.Workspaces.ListForUser(r.Context(), userID)
		if err != nil {
			writeStoreError(w, err, "list workspaces")
			return
		}
		if workspaces == nil {
			workspaces = []models.Workspace{}
		}

		writeJSON(w, http.StatusOK, workspaces)
	}
}

// CreateWorkspace creates a workspace owned by the caller.
func CreateWorkspace(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}

		var req CreateWorkspaceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name is required")
			return
		}

		ws := &models.Workspace{
			OwnerID:     userID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := store.Workspaces.Create(r.Context(), ws); err != nil {
			writeStoreError(w, err, "create workspace")
			return
		}

		writeJSON(w, http.StatusCreated, ws)
	}
}

// ListMembers returns the members of a workspace.
func ListMembers(store *storage.Store, roster *timeline.RosterCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		workspaceID := mux.Vars(r)["id"]
		if !requireMember(w, r, store, workspaceID, userID) {
			return
		}

		var (
			members []models.UserReference
			err     error
		)
		if roster != nil {
			members, err = roster.Get(r.Context(), workspaceID)
		} else {
			members, err = store.Roster(r.Context(), workspaceID)
		}
		if err != nil {
			writeStoreError(w, err, "list members")
			return
		}
		if members == nil {
			members = []models.UserReference{}
		}

		writeJSON(w, http.StatusOK, members)
	}
}

// AddMember adds a user to a workspace. Only the owner may do so.
func AddMember(store *storage.Store, roster *timeline.RosterCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		workspaceID := mux.Vars(r)["id"]

		ws, err := store.Workspaces.GetByID(r.Context(), workspaceID)
		if err != nil {
			writeStoreError(w, err, "load workspace")
			return
		}
		if ws == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Workspace not found")
			return
		}
		if !requireMember(w, r, store, workspaceID, userID) {
			return
		}
		if ws.OwnerID != userID {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Only the workspace owner can add members")
			return
		}

		var req AddMemberRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.UserID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "user_id is required")
			return
		}
		switch req.Role {
		case "", models.RoleMember, models.RoleAdmin:
		default:
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "role must be member or admin")
			return
		}

		user, err := store.Users.GetByID(r.Context(), req.UserID)
		if err != nil {
			writeStoreError(w, err, "load user")
			return
		}
		if user == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}

		if err := store.Workspaces.AddMember(r.Context(), workspaceID, req.UserID, req.Role); err != nil {
			writeStoreError(w, err, "add member")
			return
		}
		if roster != nil {
			roster.Invalidate(workspaceID)
		}

		writeJSON(w, http.StatusCreated, user.Reference())
	}
}

// ListProjects returns the projects of a workspace.
func ListProjects(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		workspaceID := mux.Vars(r)["id"]
		if !requireMember(w, r, store, workspaceID, userID) {
			return
		}

		projects, err := store.Projects.ListByWorkspace(r.Context(), workspaceID)
		if err != nil {
			writeStoreError(w, err, "list projects")
			return
		}
		if projects == nil {
			projects = []models.Project{}
		}

		writeJSON(w, http.StatusOK, projects)
	}
}

// CreateProject adds a project to a workspace.
func CreateProject(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		workspaceID := mux.Vars(r)["id"]
		if !requireMember(w, r, store, workspaceID, userID) {
			return
		}

		var req CreateProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name is required")
			return
		}

		project := &models.Project{
			WorkspaceID: workspaceID,
			Name:        req.Name,
			Description: req.Description,
		}
		if err := store.Projects.Create(r.Context(), project); err != nil {
			writeStoreError(w, err, "create project")
			return
		}

		writeJSON(w, http.StatusCreated, project)
	}
}
