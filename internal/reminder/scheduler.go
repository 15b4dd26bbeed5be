// Package reminder runs the periodic jobs of the server: due-soon task
// reminders and roster cache maintenance.
package reminder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/taskboard/backend/internal/assignee"
	"github.com/taskboard/backend/internal/storage/models"
	"github.com/taskboard/backend/internal/timeline"
	"github.com/taskboard/backend/internal/websocket"
)

// DueTaskLister lists open tasks due within a date range.
type DueTaskLister interface {
	ListDueBetween(ctx context.Context, from, to time.Time) ([]models.TaskWithContext, error)
}

// Broadcaster delivers due-soon reminders.
type Broadcaster interface {
	BroadcastTaskDueSoon(tc models.TaskWithContext, assignees []models.UserReference, audience []string)
}

// Scheduler periodically reminds assignees of tasks nearing their due date
// and sweeps expired roster cache entries.
type Scheduler struct {
	cron        *cron.Cron
	tasks       DueTaskLister
	roster      *timeline.RosterCache
	broadcaster Broadcaster
	spec        string
	horizon     time.Duration
	now         func() time.Time

	// reminded holds "<task id>/<due date>" keys already announced, so that a
	// task is reminded once per due date.
	mu       sync.Mutex
	reminded map[string]bool
}

// NewScheduler creates a reminder scheduler. spec is a cron expression with
// a seconds field; horizon is how far ahead of now a due date counts as soon.
func NewScheduler(
	tasks DueTaskLister,
	roster *timeline.RosterCache,
	broadcaster *websocket.EventBroadcaster,
	spec string,
	horizon time.Duration,
) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		tasks:    tasks,
		roster:   roster,
		spec:     spec,
		horizon:  horizon,
		now:      time.Now,
		reminded: make(map[string]bool),
	}
	// Keep the interface nil when live updates are disabled.
	if broadcaster != nil {
		s.broadcaster = broadcaster
	}
	return s
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	log.Println("Starting reminder scheduler...")

	if _, err := s.cron.AddFunc(s.spec, func() {
		s.RunDueSoon(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling due-soon reminders %q: %w", s.spec, err)
	}

	if s.roster != nil {
		if _, err := s.cron.AddFunc("@every 1m", s.sweepRosters); err != nil {
			return fmt.Errorf("scheduling roster sweep: %w", err)
		}
	}

	s.cron.Start()
	log.Printf("Reminder scheduler started (%s, horizon %s)", s.spec, s.horizon)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	log.Println("Stopping reminder scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Reminder scheduler stopped")
}

// RunDueSoon sends a reminder for every open task due between today and the
// end of the horizon that has not been reminded yet. It returns the number of
// reminders sent.
func (s *Scheduler) RunDueSoon(ctx context.Context) int {
	now := s.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := now.Add(s.horizon)

	due, err := s.tasks.ListDueBetween(ctx, from, to)
	if err != nil {
		log.Printf("Failed to list tasks due soon: %v", err)
		return 0
	}

	current := make(map[string]bool, len(due))
	sent := 0
	for _, tc := range due {
		key := reminderKey(tc)
		current[key] = true
		if s.alreadyReminded(key) {
			continue
		}

		assignees, audience := s.recipients(ctx, tc)
		if s.broadcaster != nil {
			s.broadcaster.BroadcastTaskDueSoon(tc, assignees, audience)
		}
		sent++
	}

	s.forgetOutside(current)
	if sent > 0 {
		log.Printf("Sent %d due-soon reminders", sent)
	}
	return sent
}

// recipients resolves the assignees of a task. Reminders go to the
// assignees, or to the whole workspace when nobody is assigned.
func (s *Scheduler) recipients(ctx context.Context, tc models.TaskWithContext) ([]models.UserReference, []string) {
	var roster []models.UserReference
	if s.roster != nil {
		var err error
		roster, err = s.roster.Get(ctx, tc.WorkspaceID)
		if err != nil {
			log.Printf("Failed to load roster of workspace %s: %v", tc.WorkspaceID, err)
		}
	}

	set := assignee.Resolve(tc.AssignedTo, roster)
	audience := set.IDs()
	if len(audience) == 0 {
		for _, member := range roster {
			audience = append(audience, member.ID)
		}
	}
	return set.Users(), audience
}

func (s *Scheduler) alreadyReminded(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reminded[key] {
		return true
	}
	s.reminded[key] = true
	return false
}

// forgetOutside drops keys of tasks no longer due soon, e.g. completed or
// rescheduled ones.
func (s *Scheduler) forgetOutside(current map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.reminded {
		if !current[key] {
			delete(s.reminded, key)
		}
	}
}

func (s *Scheduler) sweepRosters() {
	if removed := s.roster.Sweep(); removed > 0 {
		log.Printf("Dropped %d expired workspace rosters", removed)
	}
}

func reminderKey(tc models.TaskWithContext) string {
	due := ""
	if tc.DueDate != nil {
		due = tc.DueDate.Format(timeline.DateLayout)
	}
	return tc.ID + "/" + due
}
