// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"

	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Healthy(r.Context())

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	Users            int `json:"users"`
	Workspaces       int `json:"workspaces"`
	Projects         int `json:"projects"`
	Tasks            int `json:"tasks"`
	OpenTasksWithDue int `json:"open_tasks_with_due_date"`
	Events           int `json:"events"`
	LiveClients      int `json:"live_clients"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var response StatusResponse

		counts := []struct {
			query string
			dest  *int
		}{
			{"SELECT COUNT(*) FROM users", &response.Users},
			{"SELECT COUNT(*) FROM workspaces", &response.Workspaces},
			{"SELECT COUNT(*) FROM projects", &response.Projects},
			{"SELECT COUNT(*) FROM tasks", &response.Tasks},
			{"SELECT COUNT(*) FROM tasks WHERE due_date IS NOT NULL AND status <> 'completed'", &response.OpenTasksWithDue},
			{"SELECT COUNT(*) FROM calendar_events", &response.Events},
		}
		for _, c := range counts {
			db.QueryRowContext(ctx, c.query).Scan(c.dest)
		}

		if hub != nil {
			response.LiveClients = hub.ClientCount()
		}

		writeJSON(w, http.StatusOK, response)
	}
}
