package handlers

import (
	"net/http"

	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/storage/models"
)

// requireMember writes a 404 unless userID belongs to the workspace.
// Non-members cannot tell a hidden workspace from a missing one.
func requireMember(w http.ResponseWriter, r *http.Request, store *storage.Store, workspaceID, userID string) bool {
	isMember, err := store.Workspaces.IsMember(r.Context(), workspaceID, userID)
	if err != nil {
		writeStoreError(w, err, "check workspace membership")
		return false
	}
	if !isMember {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Workspace not found")
		return false
	}
	return true
}

// loadProject returns the project if userID may access it.
func loadProject(w http.ResponseWriter, r *http.Request, store *storage.Store, projectID, userID string) (*models.Project, bool) {
	project, err := store.Projects.GetByID(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, err, "load project")
		return nil, false
	}
	if project == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Project not found")
		return nil, false
	}
	if !requireMember(w, r, store, project.WorkspaceID, userID) {
		return nil, false
	}
	return project, true
}

// loadTask returns the task and its workspace id if userID may access it.
func loadTask(w http.ResponseWriter, r *http.Request, store *storage.Store, taskID, userID string) (*models.Task, string, bool) {
	task, err := store.Tasks.GetByID(r.Context(), taskID)
	if err != nil {
		writeStoreError(w, err, "load task")
		return nil, "", false
	}
	if task == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Task not found")
		return nil, "", false
	}

	workspaceID, err := store.Tasks.WorkspaceID(r.Context(), taskID)
	if err != nil {
		writeStoreError(w, err, "load task")
		return nil, "", false
	}
	if !requireMember(w, r, store, workspaceID, userID) {
		return nil, "", false
	}
	return task, workspaceID, true
}

// memberIDs returns the ids of a workspace's members, for broadcasts.
func memberIDs(r *http.Request, store *storage.Store, workspaceID string) []string {
	members, err := store.Workspaces.Members(r.Context(), workspaceID)
	if err != nil {
		return []string{}
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

// eventAudience returns the owner of an event and their teammates.
func eventAudience(r *http.Request, store *storage.Store, ownerID string) []string {
	audience := []string{ownerID}
	teammates, err := store.Users.Teammates(r.Context(), ownerID)
	if err != nil {
		return audience
	}
	for _, u := range teammates {
		audience = append(audience, u.ID)
	}
	return audience
}
