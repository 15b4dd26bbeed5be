package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/assignee"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/storage/models"
	"github.com/taskboard/backend/internal/timeline"
	"github.com/taskboard/backend/internal/websocket"
)

// Task request/response types

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     string  `json:"due_date"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	// AssignedTo accepts a single id, a list of ids or a list of user objects.
	AssignedTo any `json:"assigned_to"`
}

// UpdateTaskRequest changes only the fields present. An empty due_date
// clears it.
type UpdateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	DueDate     *string         `json:"due_date"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	AssignedTo  json.RawMessage `json:"assigned_to"`
}

type CommentRequest struct {
	Body string `json:"body"`
}

type TaskResponse struct {
	models.Task
	Assignees []models.UserReference `json:"assignees"`
}

// rosterFunc loads the members of a workspace.
type rosterFunc func(r *http.Request, workspaceID string) []models.UserReference

func newRosterFunc(store *storage.Store, roster *timeline.RosterCache) rosterFunc {
	return func(r *http.Request, workspaceID string) []models.UserReference {
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
			return nil
		}
		return members
	}
}

func taskResponse(t models.Task, roster []models.UserReference) TaskResponse {
	var raw any
	if t.AssignedTo != nil {
		raw = *t.AssignedTo
	}
	return TaskResponse{Task: t, Assignees: assignee.Resolve(raw, roster).Users()}
}

// encodeAssignees stores any accepted assignment shape as a JSON array of ids.
func encodeAssignees(v any) *string {
	ids := assignee.Resolve(v, nil).IDs()
	if len(ids) == 0 {
		return nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	encoded := string(data)
	return &encoded
}

func parseDueDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	d, err := time.Parse(timeline.DateLayout, s)
	if err != nil {
		return nil, false
	}
	return &d, true
}

func validStatus(s string) bool {
	switch s {
	case models.TaskStatusNotStarted, models.TaskStatusInProgress, models.TaskStatusCompleted:
		return true
	}
	return false
}

func validPriority(s string) bool {
	switch s {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

// ListTasks returns the tasks of a project with resolved assignees.
func ListTasks(store *storage.Store, roster *timeline.RosterCache) http.HandlerFunc {
	members := newRosterFunc(store, roster)

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		project, ok := loadProject(w, r, store, mux.Vars(r)["id"], userID)
		if !ok {
			return
		}

		tasks, err := store.Tasks.ListByProject(r.Context(), project.ID)
		if err != nil {
			writeStoreError(w, err, "list tasks")
			return
		}

		refs := members(r, project.WorkspaceID)
		response := make([]TaskResponse, 0, len(tasks))
		for _, t := range tasks {
			response = append(response, taskResponse(t, refs))
		}

		writeJSON(w, http.StatusOK, response)
	}
}

// CreateTask adds a task to a project.
func CreateTask(store *storage.Store, roster *timeline.RosterCache, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	members := newRosterFunc(store, roster)

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		project, ok := loadProject(w, r, store, mux.Vars(r)["id"], userID)
		if !ok {
			return
		}

		var req CreateTaskRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Title is required")
			return
		}
		dueDate, ok := parseDueDate(req.DueDate)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "due_date must be a yyyy-mm-dd date")
			return
		}
		if req.Status != "" && !validStatus(req.Status) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown status")
			return
		}
		if req.Priority != "" && !validPriority(req.Priority) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown priority")
			return
		}

		task := &models.Task{
			ProjectID:   project.ID,
			Title:       req.Title,
			Description: req.Description,
			DueDate:     dueDate,
			Status:      req.Status,
			Priority:    req.Priority,
			AssignedTo:  encodeAssignees(req.AssignedTo),
		}
		if err := store.Tasks.Create(r.Context(), task); err != nil {
			writeStoreError(w, err, "create task")
			return
		}

		broadcaster.BroadcastTaskUpdated(*task, project.WorkspaceID, memberIDs(r, store, project.WorkspaceID))
		writeJSON(w, http.StatusCreated, taskResponse(*task, members(r, project.WorkspaceID)))
	}
}

// UpdateTask applies a partial update to a task.
func UpdateTask(store *storage.Store, roster *timeline.RosterCache, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	members := newRosterFunc(store, roster)

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		task, workspaceID, ok := loadTask(w, r, store, mux.Vars(r)["id"], userID)
		if !ok {
			return
		}

		var req UpdateTaskRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Title cannot be empty")
				return
			}
			task.Title = title
		}
		if req.Description != nil {
			task.Description = req.Description
		}
		if req.DueDate != nil {
			dueDate, ok := parseDueDate(*req.DueDate)
			if !ok {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "due_date must be a yyyy-mm-dd date")
				return
			}
			task.DueDate = dueDate
		}
		if req.Status != nil {
			if !validStatus(*req.Status) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown status")
				return
			}
			task.Status = *req.Status
		}
		if req.Priority != nil {
			if !validPriority(*req.Priority) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown priority")
				return
			}
			task.Priority = *req.Priority
		}
		if len(req.AssignedTo) > 0 {
			var raw any
			if err := json.Unmarshal(req.AssignedTo, &raw); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid assigned_to")
				return
			}
			task.AssignedTo = encodeAssignees(raw)
		}

		if err := store.Tasks.Update(r.Context(), task); err != nil {
			writeStoreError(w, err, "update task")
			return
		}

		broadcaster.BroadcastTaskUpdated(*task, workspaceID, memberIDs(r, store, workspaceID))
		writeJSON(w, http.StatusOK, taskResponse(*task, members(r, workspaceID)))
	}
}

// DeleteTask removes a task and its comments.
func DeleteTask(store *storage.Store, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		task, workspaceID, ok := loadTask(w, r, store, mux.Vars(r)["id"], userID)
		if !ok {
			return
		}

		if err := store.Tasks.Delete(r.Context(), task.ID); err != nil {
			writeStoreError(w, err, "delete task")
			return
		}

		broadcaster.BroadcastTaskDeleted(task.ID, workspaceID, memberIDs(r, store, workspaceID))
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetAssignees returns the resolved assignees of a task.
func GetAssignees(store *storage.Store, roster *timeline.RosterCache) http.HandlerFunc {
	members := newRosterFunc(store, roster)

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		task, workspaceID, ok := loadTask(w, r, store, mux.Vars(r)["id"], userID)
		if !ok {
			return
		}

		writeJSON(w, http.StatusOK, taskResponse(*task, members(r, workspaceID)).Assignees)
	}
}

// ListComments returns the comments on a task, oldest first.
func ListComments(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		task, _, ok := loadTask(w, r, store, mux.Vars(r)["id"], userID)
		if !ok {
			return
		}

		comments, err := store.Tasks.ListComments(r.Context(), task.ID)
		if err != nil {
			writeStoreError(w, err, "list comments")
			return
		}
		if comments == nil {
			comments = []models.Comment{}
		}

		writeJSON(w, http.StatusOK, comments)
	}
}

// AddComment posts a comment on a task as the caller.
func AddComment(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.RequireUser(w, r)
		if !ok {
			return
		}
		task, _, ok := loadTask(w, r, store, mux.Vars(r)["id"], userID)
		if !ok {
			return
		}

		var req CommentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Comment body is required")
			return
		}

		comment := &models.Comment{TaskID: task.ID, UserID: userID, Body: req.Body}
		if err := store.Tasks.AddComment(r.Context(), comment); err != nil {
			writeStoreError(w, err, "add comment")
			return
		}

		writeJSON(w, http.StatusCreated, comment)
	}
}
