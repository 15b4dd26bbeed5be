package timeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/taskboard/backend/internal/assignee"
	"github.com/taskboard/backend/internal/storage/models"
)

// Result is the output of one aggregation.
type Result struct {
	// Items are personal events, then task due dates, then teammate events.
	// Never nil.
	Items []CalendarItem
	// Failures lists every sub-fetch that failed, in source order.
	Failures []FetchError
	// PersonalEventsFailed is set when the primary source could not be read;
	// callers show a non-fatal warning while still rendering Items.
	PersonalEventsFailed bool
}

// Aggregator builds timelines from a Source.
type Aggregator struct {
	source      Source
	roster      *RosterCache
	parallelism int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRoster resolves task assignees against workspace rosters from cache.
func WithRoster(cache *RosterCache) Option {
	return func(a *Aggregator) {
		a.roster = cache
	}
}

// WithParallelism bounds how many workspaces are walked at once.
func WithParallelism(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.parallelism = n
		}
	}
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:      source,
		parallelism: 4,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns the unified timeline of userID for the closed date range
// [from, to], with days read in the location of from. Failed sub-fetches are
// logged and contribute no items; the result is never nil, even if every
// fetch fails. An empty userID yields an empty timeline.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, from, to time.Time) Result {
	result := Result{Items: []CalendarItem{}}
	if userID == "" {
		return result
	}
	days := NewDateRange(from, to)

	var (
		wg        sync.WaitGroup
		personal  outcome[[]models.CalendarEvent]
		tasks     branch
		teammates branch
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		personal = capture(func() ([]models.CalendarEvent, error) {
			return a.source.UserEvents(ctx, userID, days)
		})
	}()
	go func() {
		defer wg.Done()
		tasks = a.collectTasks(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		teammates = a.collectTeammateEvents(ctx, userID, days)
	}()
	wg.Wait()

	if personal.ok() {
		for _, ev := range personal.value {
			result.Items = append(result.Items, FromEvent(ev, KindPersonalEvent))
		}
	} else {
		fe := FetchError{Source: SourcePersonalEvents, Err: personal.err}
		log.Printf("Timeline for %s: %v", userID, fe)
		result.Failures = append(result.Failures, fe)
		result.PersonalEventsFailed = true
	}

	result.Items = append(result.Items, tasks.items...)
	result.Failures = append(result.Failures, tasks.failures...)
	result.Items = append(result.Items, teammates.items...)
	result.Failures = append(result.Failures, teammates.failures...)

	return result
}

// branch is the contribution of one independent part of the aggregation.
type branch struct {
	items    []CalendarItem
	failures []FetchError
}

func (b *branch) fail(fe FetchError) {
	log.Printf("Timeline: %v", fe)
	b.failures = append(b.failures, fe)
}

func (b *branch) merge(other branch) {
	b.items = append(b.items, other.items...)
	b.failures = append(b.failures, other.failures...)
}

// collectTasks walks workspaces -> projects -> tasks. Workspaces are walked
// concurrently; their contributions are merged in workspace order.
func (a *Aggregator) collectTasks(ctx context.Context, userID string) branch {
	var out branch

	workspaces := capture(func() ([]models.Workspace, error) {
		return a.source.Workspaces(ctx, userID)
	})
	if !workspaces.ok() {
		out.fail(FetchError{Source: SourceWorkspaces, Scope: userID, Err: workspaces.err})
		return out
	}

	perWorkspace := make([]branch, len(workspaces.value))
	sem := make(chan struct{}, a.parallelism)

	var wg sync.WaitGroup
	for i, ws := range workspaces.value {
		wg.Add(1)
		go func(i int, ws models.Workspace) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			perWorkspace[i] = a.collectWorkspace(ctx, ws)
		}(i, ws)
	}
	wg.Wait()

	for _, b := range perWorkspace {
		out.merge(b)
	}
	return out
}

func (a *Aggregator) collectWorkspace(ctx context.Context, ws models.Workspace) branch {
	var out branch

	projects := capture(func() ([]models.Project, error) {
		return a.source.Projects(ctx, ws.ID)
	})
	if !projects.ok() {
		out.fail(FetchError{Source: SourceProjects, Scope: ws.ID, Err: projects.err})
		return out
	}

	var roster []models.UserReference
	rosterLoaded := false

	for _, project := range projects.value {
		tasks := capture(func() ([]models.Task, error) {
			return a.source.Tasks(ctx, project.ID)
		})
		if !tasks.ok() {
			out.fail(FetchError{Source: SourceTasks, Scope: project.ID, Err: tasks.err})
			continue
		}

		for _, t := range tasks.value {
			if !t.HasDueDate() {
				continue
			}

			item := FromTask(t, project, ws)
			if a.roster != nil {
				if !rosterLoaded {
					roster = a.loadRoster(ctx, ws.ID, &out)
					rosterLoaded = true
				}
				item.Assignees = assignee.Resolve(t.AssignedTo, roster).Users()
			}
			out.items = append(out.items, item)
		}
	}

	return out
}

// loadRoster returns the workspace roster, or nil if it cannot be loaded, in
// which case assignees resolve to placeholders.
func (a *Aggregator) loadRoster(ctx context.Context, workspaceID string, out *branch) []models.UserReference {
	roster := capture(func() ([]models.UserReference, error) {
		return a.roster.Get(ctx, workspaceID)
	})
	if !roster.ok() {
		out.fail(FetchError{Source: SourceRoster, Scope: workspaceID, Err: roster.err})
		return nil
	}
	return roster.value
}

func (a *Aggregator) collectTeammateEvents(ctx context.Context, userID string, days DateRange) branch {
	var out branch

	teammates := capture(func() ([]models.User, error) {
		return a.source.Teammates(ctx, userID)
	})
	if !teammates.ok() {
		out.fail(FetchError{Source: SourceTeammates, Scope: userID, Err: teammates.err})
		return out
	}
	if len(teammates.value) == 0 {
		return out
	}

	ids := make([]string, 0, len(teammates.value))
	for _, u := range teammates.value {
		ids = append(ids, u.ID)
	}

	events := capture(func() ([]models.CalendarEvent, error) {
		return a.source.TeammateEvents(ctx, ids, days)
	})
	if !events.ok() {
		out.fail(FetchError{Source: SourceTeammateEvents, Err: events.err})
		return out
	}

	for _, ev := range events.value {
		out.items = append(out.items, FromEvent(ev, KindTeammateEvent))
	}
	return out
}
