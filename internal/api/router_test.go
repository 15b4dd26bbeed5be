package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard/backend/internal/api"
	"github.com/taskboard/backend/internal/api/middleware"
	"github.com/taskboard/backend/internal/config"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/timeline"
)

type testServer struct {
	handler http.Handler
	store   *storage.Store
}

func newTestServer(t *testing.T, configure ...func(*config.Config)) *testServer {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "taskboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = storage.RunMigrations(context.Background(), db)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.StaticDir = ""
	for _, fn := range configure {
		fn(cfg)
	}
	store := storage.NewStore(db)

	return &testServer{
		handler: api.NewRouter(api.Services{
			Config: cfg,
			Store:  store,
			Roster: timeline.NewRosterCache(store.Roster, cfg.RosterCacheTTL),
		}),
		store: store,
	}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if _, isString := body.(string); !isString && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) signUp(t *testing.T, id, name string) {
	t.Helper()
	rec := s.do(t, http.MethodPut, "/api/me", id, map[string]any{
		"email":        id + "@example.com",
		"display_name": name,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

type timelineBody struct {
	From                 string `json:"from"`
	To                   string `json:"to"`
	PersonalEventsFailed bool   `json:"personal_events_failed"`
	Items                []struct {
		ID        string `json:"id"`
		Kind      string `json:"kind"`
		Title     string `json:"title"`
		Editable  bool   `json:"editable"`
		ColorKey  string `json:"color_key"`
		SourceRef string `json:"source_ref"`
		Assignees []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"assignees"`
	} `json:"items"`
	Days []struct {
		Date  string            `json:"date"`
		Items []json.RawMessage `json:"items"`
	} `json:"days"`
	Warnings []json.RawMessage `json:"warnings"`
}

// seed creates alice's workspace with bob as a member, a project, a task due
// 2026-10-14 assigned to bob and a personal event of alice on 2026-10-13.
func (s *testServer) seed(t *testing.T) (taskID, eventID string) {
	t.Helper()
	s.signUp(t, "alice", "Alice")
	s.signUp(t, "bob", "Bob")

	rec := s.do(t, http.MethodPost, "/api/workspaces", "alice", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ws := decode[map[string]any](t, rec)
	wsID := ws["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/workspaces/"+wsID+"/members", "alice", map[string]any{"user_id": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/workspaces/"+wsID+"/projects", "alice", map[string]any{"name": "Launch"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	projectID := decode[map[string]any](t, rec)["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", "alice", map[string]any{
		"title":       "Ship it",
		"due_date":    "2026-10-14",
		"assigned_to": `["bob","bob"]`,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskID = decode[map[string]any](t, rec)["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/events", "alice", map[string]any{
		"title":      "Standup",
		"start_time": "2026-10-13T09:00:00Z",
		"end_time":   "2026-10-13T09:15:00Z",
		"type":       "meeting",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	eventID = decode[map[string]any](t, rec)["id"].(string)

	return taskID, eventID
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
}

func TestTimeline_AnonymousIsEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[timelineBody](t, rec)
	assert.NotNil(t, body.Items)
	assert.Empty(t, body.Items)
	assert.Empty(t, body.Warnings)
}

func TestTimeline_MergesEventsAndTasks(t *testing.T) {
	s := newTestServer(t)
	taskID, eventID := s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "alice", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[timelineBody](t, rec)
	require.Len(t, body.Items, 2)

	event := body.Items[0]
	assert.Equal(t, eventID, event.ID)
	assert.Equal(t, string(timeline.KindPersonalEvent), event.Kind)
	assert.True(t, event.Editable)
	assert.Equal(t, "meeting", event.ColorKey)

	task := body.Items[1]
	assert.Equal(t, timeline.TaskIDPrefix+taskID, task.ID)
	assert.Equal(t, taskID, task.SourceRef)
	assert.False(t, task.Editable)
	assert.Equal(t, "todo", task.ColorKey)
	require.Len(t, task.Assignees, 1)
	assert.Equal(t, "Bob", task.Assignees[0].DisplayName)
	assert.False(t, body.PersonalEventsFailed)
}

func TestTimeline_TeammateSeesSharedTaskButNotPrivateEvent(t *testing.T) {
	s := newTestServer(t)
	taskID, _ := s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "bob", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[timelineBody](t, rec)
	require.Len(t, body.Items, 1)
	assert.Equal(t, timeline.TaskIDPrefix+taskID, body.Items[0].ID)

	// Once linked as teammates, alice's event shows up read-only.
	rec = s.do(t, http.MethodPost, "/api/teammates", "bob", map[string]any{"user_id": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "bob", nil)
	body = decode[timelineBody](t, rec)
	require.Len(t, body.Items, 2)
	assert.Equal(t, string(timeline.KindTeammateEvent), body.Items[1].Kind)
	assert.False(t, body.Items[1].Editable)
}

func TestTimeline_GroupByDay(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18&group=day", "alice", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[timelineBody](t, rec)
	require.Len(t, body.Days, 2)
	assert.Equal(t, "2026-10-13", body.Days[0].Date)
	assert.Equal(t, "2026-10-14", body.Days[1].Date)
}

func TestTimeline_RejectsBadDates(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/timeline?from=12/10/2026", "alice", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeline_ExportsICS(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	rec := s.do(t, http.MethodGet, "/api/timeline.ics?from=2026-10-12&to=2026-10-18", "alice", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Standup")
	assert.Contains(t, body, "SUMMARY:Ship it")
}

func TestEvents_OnlyOwnerMayChange(t *testing.T) {
	s := newTestServer(t)
	taskID, eventID := s.seed(t)
	update := map[string]any{
		"title":      "Standup (moved)",
		"start_time": "2026-10-13T10:00:00Z",
		"end_time":   "2026-10-13T10:15:00Z",
	}

	rec := s.do(t, http.MethodPut, "/api/events/"+eventID, "bob", update)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/events/"+timeline.TaskIDPrefix+taskID, "alice", update)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/events/"+eventID, "", update)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/events/"+eventID, "alice", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Standup (moved)", decode[map[string]any](t, rec)["title"])

	rec = s.do(t, http.MethodDelete, "/api/events/"+eventID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/events/"+eventID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_Validation(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice", "Alice")

	cases := map[string]map[string]any{
		"missing title": {"start_time": "2026-10-13T09:00:00Z", "end_time": "2026-10-13T10:00:00Z"},
		"end before start": {
			"title": "x", "start_time": "2026-10-13T10:00:00Z", "end_time": "2026-10-13T09:00:00Z",
		},
		"unknown type": {
			"title": "x", "start_time": "2026-10-13T09:00:00Z", "end_time": "2026-10-13T10:00:00Z", "type": "party",
		},
		"bad rrule": {
			"title": "x", "start_time": "2026-10-13T09:00:00Z", "end_time": "2026-10-13T10:00:00Z", "rrule": "FREQ=SOMETIMES",
		},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/events", "alice", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEvents_RecurringOccurrenceEditsSeries(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice", "Alice")

	rec := s.do(t, http.MethodPost, "/api/events", "alice", map[string]any{
		"title":      "Gym",
		"start_time": "2026-10-12T18:00:00Z",
		"end_time":   "2026-10-12T19:00:00Z",
		"rrule":      "FREQ=DAILY;COUNT=3",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	eventID := decode[map[string]any](t, rec)["id"].(string)

	rec = s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "alice", nil)
	body := decode[timelineBody](t, rec)
	require.Len(t, body.Items, 3)
	occurrence := body.Items[1]
	assert.Equal(t, eventID, occurrence.SourceRef)
	assert.NotEqual(t, eventID, occurrence.ID)

	rec = s.do(t, http.MethodDelete, "/api/events/"+occurrence.ID, "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "alice", nil)
	assert.Empty(t, decode[timelineBody](t, rec).Items)
}

func TestEvents_ImportICS(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice", "Alice")
	feed := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:1@test",
		"DTSTART:20261015T080000Z",
		"DTEND:20261015T090000Z",
		"SUMMARY:Dentist",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	rec := s.do(t, http.MethodPost, "/api/events/import", "alice", feed)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, result["created"])

	rec = s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "alice", nil)
	body := decode[timelineBody](t, rec)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Dentist", body.Items[0].Title)
}

func TestEvents_ImportURL(t *testing.T) {
	feed := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Test//EN",
		"BEGIN:VEVENT",
		"UID:1@test",
		"DTSTART:20261015T080000Z",
		"DTEND:20261015T090000Z",
		"SUMMARY:Dentist",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer feedServer.Close()
	body := map[string]any{"url": feedServer.URL + "/cal.ics"}

	t.Run("loopback is refused by default", func(t *testing.T) {
		s := newTestServer(t)
		s.signUp(t, "alice", "Alice")

		rec := s.do(t, http.MethodPost, "/api/events/import", "alice", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "not public")
	})

	t.Run("private addresses can be allowed", func(t *testing.T) {
		s := newTestServer(t, func(cfg *config.Config) { cfg.URLImportPrivate = true })
		s.signUp(t, "alice", "Alice")

		rec := s.do(t, http.MethodPost, "/api/events/import", "alice", body)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.EqualValues(t, 1, decode[map[string]any](t, rec)["created"])
	})

	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, func(cfg *config.Config) { cfg.URLImport = false })
		s.signUp(t, "alice", "Alice")

		rec := s.do(t, http.MethodPost, "/api/events/import", "alice", body)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestTasks_UpdateStatusAndAssignees(t *testing.T) {
	s := newTestServer(t)
	taskID, _ := s.seed(t)

	rec := s.do(t, http.MethodPatch, "/api/tasks/"+taskID, "bob", map[string]any{
		"status":      "completed",
		"assigned_to": []any{"alice", map[string]any{"id": "bob"}, "ghost"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/tasks/"+taskID+"/assignees", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assignees := decode[[]map[string]any](t, rec)
	require.Len(t, assignees, 3)
	assert.Equal(t, "Alice", assignees[0]["display_name"])
	assert.Equal(t, "Bob", assignees[1]["display_name"])
	assert.Equal(t, "G User", assignees[2]["display_name"])

	rec = s.do(t, http.MethodGet, "/api/timeline?from=2026-10-12&to=2026-10-18", "alice", nil)
	body := decode[timelineBody](t, rec)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "done", body.Items[1].ColorKey)

	task, err := s.store.Tasks.GetByID(context.Background(), taskID)
	require.NoError(t, err)
	require.NotNil(t, task.AssignedTo)
	assert.JSONEq(t, `["alice","bob","ghost"]`, *task.AssignedTo)
}

func TestTasks_NonMemberCannotSeeTasks(t *testing.T) {
	s := newTestServer(t)
	taskID, _ := s.seed(t)
	s.signUp(t, "mallory", "Mallory")

	rec := s.do(t, http.MethodPatch, "/api/tasks/"+taskID, "mallory", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/tasks/"+taskID+"/comments", "mallory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasks_Comments(t *testing.T) {
	s := newTestServer(t)
	taskID, _ := s.seed(t)

	rec := s.do(t, http.MethodPost, "/api/tasks/"+taskID+"/comments", "bob", map[string]any{"body": "On it"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/tasks/"+taskID+"/comments", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[[]map[string]any](t, rec)
	require.Len(t, comments, 1)
	assert.Equal(t, "bob", comments[0]["user_id"])

	rec = s.do(t, http.MethodDelete, "/api/tasks/"+taskID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWorkspaces_OnlyOwnerAddsMembers(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	s.signUp(t, "carol", "Carol")

	rec := s.do(t, http.MethodGet, "/api/workspaces", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workspaces := decode[[]map[string]any](t, rec)
	require.Len(t, workspaces, 1)
	wsID := workspaces[0]["id"].(string)

	rec = s.do(t, http.MethodPost, "/api/workspaces/"+wsID+"/members", "bob", map[string]any{"user_id": "carol"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/workspaces/"+wsID+"/members", "carol", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/workspaces/"+wsID+"/members", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)
}

func TestSettings_RoundTripAndValidation(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice", "Alice")

	rec := s.do(t, http.MethodGet, "/api/settings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "monday", decode[map[string]any](t, rec)["week_start"])

	rec = s.do(t, http.MethodPut, "/api/settings", "alice", map[string]any{"week_start": "friday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/settings", "alice", map[string]any{"timezone": "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/settings", "alice", map[string]any{
		"timezone":   "Asia/Tokyo",
		"week_start": "sunday",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/timeline", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Asia/Tokyo", body["timezone"])
}

func TestTimeline_ReadsDaysInUserTimezone(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice", "Alice")

	rec := s.do(t, http.MethodPut, "/api/settings", "alice", map[string]any{"timezone": "America/Los_Angeles"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for title, start := range map[string]string{
		"Yesterday": "2026-10-14T20:00:00-07:00",
		"Dinner":    "2026-10-15T20:00:00-07:00",
	} {
		rec = s.do(t, http.MethodPost, "/api/events", "alice", map[string]any{
			"title":      title,
			"start_time": start,
			"end_time":   start,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/timeline?from=2026-10-15&to=2026-10-15", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[timelineBody](t, rec)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Dinner", body.Items[0].Title)
}

func TestUsers_RequireIdentity(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/users", "/api/teammates", "/api/workspaces", "/api/settings"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
