package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taskboard/backend/internal/storage/models"
	"github.com/taskboard/backend/internal/timeline"
)

type MockTasks struct {
	mock.Mock
}

func (m *MockTasks) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.TaskWithContext, error) {
	args := m.Called(ctx, from, to)
	tasks, _ := args.Get(0).([]models.TaskWithContext)
	return tasks, args.Error(1)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) BroadcastTaskDueSoon(tc models.TaskWithContext, assignees []models.UserReference, audience []string) {
	m.Called(tc, assignees, audience)
}

var fixedNow = time.Date(2026, 10, 12, 8, 30, 0, 0, time.UTC)

func dueTask(id string, assigned *string) models.TaskWithContext {
	due := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	return models.TaskWithContext{
		Task:          models.Task{ID: id, Title: "Task " + id, DueDate: &due, AssignedTo: assigned},
		ProjectName:   "Launch",
		WorkspaceID:   "w1",
		WorkspaceName: "Acme",
	}
}

func newTestScheduler(tasks DueTaskLister, b Broadcaster) *Scheduler {
	roster := timeline.NewRosterCache(func(ctx context.Context, workspaceID string) ([]models.UserReference, error) {
		return []models.UserReference{{ID: "ada", DisplayName: "Ada"}, {ID: "kim", DisplayName: "Kim"}}, nil
	}, time.Minute)

	s := NewScheduler(tasks, roster, nil, "0 */15 * * * *", 24*time.Hour)
	s.broadcaster = b
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestRunDueSoon_RemindsAssigneesOnce(t *testing.T) {
	assigned := "kim"
	tasks := new(MockTasks)
	tasks.On("ListDueBetween", mock.Anything,
		time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		fixedNow.Add(24*time.Hour),
	).Return([]models.TaskWithContext{dueTask("t1", &assigned)}, nil)

	b := new(MockBroadcaster)
	b.On("BroadcastTaskDueSoon", mock.Anything,
		[]models.UserReference{{ID: "kim", DisplayName: "Kim"}},
		[]string{"kim"},
	).Once()

	s := newTestScheduler(tasks, b)

	assert.Equal(t, 1, s.RunDueSoon(context.Background()))
	assert.Equal(t, 0, s.RunDueSoon(context.Background()), "already reminded")
	b.AssertExpectations(t)
}

func TestRunDueSoon_UnassignedTaskGoesToWorkspace(t *testing.T) {
	tasks := new(MockTasks)
	tasks.On("ListDueBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.TaskWithContext{dueTask("t1", nil)}, nil)

	b := new(MockBroadcaster)
	b.On("BroadcastTaskDueSoon", mock.Anything, []models.UserReference{}, []string{"ada", "kim"}).Once()

	s := newTestScheduler(tasks, b)

	assert.Equal(t, 1, s.RunDueSoon(context.Background()))
	b.AssertExpectations(t)
}

func TestRunDueSoon_RemindsAgainAfterReschedule(t *testing.T) {
	tasks := new(MockTasks)
	tasks.On("ListDueBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.TaskWithContext{dueTask("t1", nil)}, nil).Once()
	tasks.On("ListDueBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.TaskWithContext{}, nil).Once()
	tasks.On("ListDueBetween", mock.Anything, mock.Anything, mock.Anything).
		Return([]models.TaskWithContext{dueTask("t1", nil)}, nil).Once()

	b := new(MockBroadcaster)
	b.On("BroadcastTaskDueSoon", mock.Anything, mock.Anything, mock.Anything)

	s := newTestScheduler(tasks, b)

	assert.Equal(t, 1, s.RunDueSoon(context.Background()))
	assert.Equal(t, 0, s.RunDueSoon(context.Background()))
	assert.Equal(t, 1, s.RunDueSoon(context.Background()))
	b.AssertNumberOfCalls(t, "BroadcastTaskDueSoon", 2)
}

func TestRunDueSoon_ListFailure(t *testing.T) {
	tasks := new(MockTasks)
	tasks.On("ListDueBetween", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("locked"))
	b := new(MockBroadcaster)

	s := newTestScheduler(tasks, b)

	assert.Equal(t, 0, s.RunDueSoon(context.Background()))
	b.AssertNotCalled(t, "BroadcastTaskDueSoon", mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_RejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(new(MockTasks), nil, nil, "not a cron spec", time.Hour)
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(new(MockTasks), timeline.NewRosterCache(nil, time.Minute), nil, "0 0 3 * * *", time.Hour)
	require.NoError(t, s.Start())
	s.Stop()
}
