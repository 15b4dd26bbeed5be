package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard/backend/internal/storage/models"
)

// ProjectRepository provides data access for projects.
type ProjectRepository struct {
	BaseRepository
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new project at the end of its workspace's list.
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	p.ID = GenerateID()
	p.CreatedAt = r.Now()
	p.UpdatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO projects (id, workspace_id, name, description, position, created_at, updated_at)
		VALUES (?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM projects WHERE workspace_id = ?),
			?, ?)
	`, p.ID, p.WorkspaceID, p.Name, p.Description, p.WorkspaceID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by ID. It returns nil if none exists.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	p := &models.Project{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, workspace_id, name, description, position, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Position, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	return p, nil
}

// ListByWorkspace retrieves all projects of a workspace in display order.
func (r *ProjectRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Project, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, workspace_id, name, description, position, created_at, updated_at
		FROM projects
		WHERE workspace_id = ?
		ORDER BY position, name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Position, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// Update updates a project's name and description.
func (r *ProjectRepository) Update(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`, p.Name, p.Description, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}

	return expectAffected(result, "project", p.ID)
}

// Delete removes a project and its tasks.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	return expectAffected(result, "project", id)
}
