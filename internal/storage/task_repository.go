package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskboard/backend/internal/storage/models"
)

// dueDateLayout is the storage format of tasks.due_date.
const dueDateLayout = "2006-01-02"

// TaskRepository provides data access for tasks and their comments.
type TaskRepository struct {
	BaseRepository
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const taskColumns = `id, project_id, title, description, due_date, status, priority,
	assigned_to, position, created_at, updated_at`

// Create inserts a new task at the end of its project's list.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	t.ID = GenerateID()
	t.CreatedAt = r.Now()
	t.UpdatedAt = r.Now()
	if t.Status == "" {
		t.Status = models.TaskStatusNotStarted
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO tasks (
			id, project_id, title, description, due_date, status, priority,
			assigned_to, position, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE project_id = ?),
			?, ?)
	`,
		t.ID, t.ProjectID, t.Title, t.Description, dueDateArg(t.DueDate), t.Status, t.Priority,
		t.AssignedTo, t.ProjectID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID. It returns nil if none exists.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}

	return t, nil
}

// ListByProject retrieves the tasks of a project in display order.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = ?
		ORDER BY position, created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	return tasks, rows.Err()
}

// ListDueBetween retrieves open tasks due within [from, to] (date precision),
// joined with their project and workspace names.
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.TaskWithContext, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT t.id, t.project_id, t.title, t.description, t.due_date, t.status, t.priority,
		       t.assigned_to, t.position, t.created_at, t.updated_at,
		       p.name, w.id, w.name
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		JOIN workspaces w ON w.id = p.workspace_id
		WHERE t.due_date IS NOT NULL
		  AND t.due_date BETWEEN ? AND ?
		  AND t.status <> ?
		ORDER BY t.due_date, w.name, p.position
	`, from.Format(dueDateLayout), to.Format(dueDateLayout), models.TaskStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("querying due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.TaskWithContext
	for rows.Next() {
		var tc models.TaskWithContext
		t := &tc.Task
		if err := rows.Scan(
			&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.DueDate, &t.Status, &t.Priority,
			&t.AssignedTo, &t.Position, &t.CreatedAt, &t.UpdatedAt,
			&tc.ProjectName, &tc.WorkspaceID, &tc.WorkspaceName,
		); err != nil {
			return nil, fmt.Errorf("scanning due task: %w", err)
		}
		tasks = append(tasks, tc)
	}

	return tasks, rows.Err()
}

// Update replaces the editable fields of a task.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, due_date = ?, status = ?, priority = ?,
			assigned_to = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Title, t.Description, dueDateArg(t.DueDate), t.Status, t.Priority,
		t.AssignedTo, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	return expectAffected(result, "task", t.ID)
}

// UpdateStatus changes only the status of a task.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
	`, status, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating task status: %w", err)
	}

	return expectAffected(result, "task", id)
}

// Delete removes a task and its comments.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	return expectAffected(result, "task", id)
}

// WorkspaceID returns the workspace a task belongs to.
func (r *TaskRepository) WorkspaceID(ctx context.Context, taskID string) (string, error) {
	var workspaceID string
	err := r.DB().QueryRowContext(ctx, `
		SELECT p.workspace_id FROM tasks t JOIN projects p ON p.id = t.project_id WHERE t.id = ?
	`, taskID).Scan(&workspaceID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying task workspace: %w", err)
	}
	return workspaceID, nil
}

// AddComment inserts a comment on a task.
func (r *TaskRepository) AddComment(ctx context.Context, c *models.Comment) error {
	c.ID = GenerateID()
	c.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO comments (id, task_id, user_id, body, created_at) VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.TaskID, c.UserID, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}

	return nil
}

// ListComments retrieves the comments on a task, oldest first.
func (r *TaskRepository) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, task_id, user_id, body, created_at
		FROM comments WHERE task_id = ? ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

// DeleteComment removes a comment.
func (r *TaskRepository) DeleteComment(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}

	return expectAffected(result, "comment", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.DueDate, &t.Status, &t.Priority,
		&t.AssignedTo, &t.Position, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func dueDateArg(d *time.Time) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Format(dueDateLayout)
}
