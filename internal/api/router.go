// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/taskboard/backend/internal/api/handlers"
	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/calendar"
	"github.com/taskboard/backend/internal/config"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/timeline"
	"github.com/taskboard/backend/internal/websocket"
)

// Services are the collaborators the handlers are built from. Roster and
// Hub are optional.
type Services struct {
	Config     *config.Config
	Store      *storage.Store
	Aggregator *timeline.Aggregator
	Roster     *timeline.RosterCache
	Importer   *calendar.Importer
	Hub        *websocket.Hub
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(svc Services) *mux.Router {
	store, cfg, roster := svc.Store, svc.Config, svc.Roster
	broadcaster := websocket.NewEventBroadcaster(svc.Hub)

	agg := svc.Aggregator
	if agg == nil {
		agg = timeline.NewAggregator(store.TimelineSource(), timeline.WithRoster(roster))
	}
	importer := svc.Importer
	if importer == nil {
		importer = calendar.NewImporter(importParser(cfg), store.Events)
	}

	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)
	r.Use(middleware.Identity)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(store.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(store.DB, svc.Hub)).Methods("GET")

	// WebSocket endpoint
	if svc.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(svc.Hub)).Methods("GET")
	}

	// Timeline endpoints
	api.HandleFunc("/timeline", handlers.GetTimeline(agg, store, cfg)).Methods("GET")
	api.HandleFunc("/timeline.ics", handlers.ExportTimeline(agg, store, cfg)).Methods("GET")

	// User endpoints
	api.HandleFunc("/me", handlers.GetMe(store)).Methods("GET")
	api.HandleFunc("/me", handlers.UpdateMe(store)).Methods("PUT")
	api.HandleFunc("/users", handlers.ListUsers(store)).Methods("GET")
	api.HandleFunc("/teammates", handlers.ListTeammates(store)).Methods("GET")
	api.HandleFunc("/teammates", handlers.AddTeammate(store)).Methods("POST")

	// Workspace endpoints
	api.HandleFunc("/workspaces", handlers.ListWorkspaces(store)).Methods("GET")
	api.HandleFunc("/workspaces", handlers.CreateWorkspace(store)).Methods("POST")
	api.HandleFunc("/workspaces/{id}/members", handlers.ListMembers(store, roster)).Methods("GET")
	api.HandleFunc("/workspaces/{id}/members", handlers.AddMember(store, roster)).Methods("POST")
	api.HandleFunc("/workspaces/{id}/projects", handlers.ListProjects(store)).Methods("GET")
	api.HandleFunc("/workspaces/{id}/projects", handlers.CreateProject(store)).Methods("POST")

	// Task endpoints
	api.HandleFunc("/projects/{id}/tasks", handlers.ListTasks(store, roster)).Methods("GET")
	api.HandleFunc("/projects/{id}/tasks", handlers.CreateTask(store, roster, broadcaster)).Methods("POST")
	api.HandleFunc("/tasks/{id}", handlers.UpdateTask(store, roster, broadcaster)).Methods("PATCH")
	api.HandleFunc("/tasks/{id}", handlers.DeleteTask(store, broadcaster)).Methods("DELETE")
	api.HandleFunc("/tasks/{id}/assignees", handlers.GetAssignees(store, roster)).Methods("GET")
	api.HandleFunc("/tasks/{id}/comments", handlers.ListComments(store)).Methods("GET")
	api.HandleFunc("/tasks/{id}/comments", handlers.AddComment(store)).Methods("POST")

	// Personal event endpoints
	api.HandleFunc("/events/import", handlers.ImportEvents(importer, store, broadcaster, cfg.URLImport)).Methods("POST")
	api.HandleFunc("/events", handlers.CreateEvent(store, broadcaster)).Methods("POST")
	api.HandleFunc("/events/{id}", handlers.UpdateEvent(store, broadcaster)).Methods("PUT")
	api.HandleFunc("/events/{id}", handlers.DeleteEvent(store, broadcaster)).Methods("DELETE")

	// Settings endpoints
	api.HandleFunc("/settings", handlers.GetSettings(store, cfg)).Methods("GET")
	api.HandleFunc("/settings", handlers.UpdateSettings(store, cfg)).Methods("PUT")

	// Serve static frontend files
	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return r
}

// importParser fetches imported feeds, refusing non-public addresses unless
// the configuration allows them.
func importParser(cfg *config.Config) *calendar.Parser {
	if cfg.URLImportPrivate {
		return calendar.NewParser()
	}
	return calendar.NewParser(calendar.WithPublicAddressesOnly())
}
