package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard/backend/internal/storage/models"
)

// WorkspaceRepository provides data access for workspaces and their members.
type WorkspaceRepository struct {
	BaseRepository
}

// NewWorkspaceRepository creates a new workspace repository.
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a workspace and registers its owner as a member.
func (r *WorkspaceRepository) Create(ctx context.Context, ws *models.Workspace) error {
	ws.ID = GenerateID()
	ws.CreatedAt = r.Now()
	ws.UpdatedAt = r.Now()

	return r.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workspaces (id, owner_id, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ws.ID, ws.OwnerID, ws.Name, ws.Description, ws.CreatedAt, ws.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting workspace: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		`, ws.ID, ws.OwnerID, models.RoleOwner, ws.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting workspace owner: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a workspace by ID. It returns nil if none exists.
func (r *WorkspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	ws := &models.Workspace{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, created_at, updated_at
		FROM workspaces WHERE id = ?
	`, id).Scan(&ws.ID, &ws.OwnerID, &ws.Name, &ws.Description, &ws.CreatedAt, &ws.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying workspace: %w", err)
	}

	return ws, nil
}

// ListForUser retrieves the workspaces userID is a member of.
func (r *WorkspaceRepository) ListForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT w.id, w.owner_id, w.name, w.description, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = ?
		ORDER BY w.created_at, w.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []models.Workspace
	for rows.Next() {
		var ws models.Workspace
		if err := rows.Scan(&ws.ID, &ws.OwnerID, &ws.Name, &ws.Description, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		workspaces = append(workspaces, ws)
	}

	return workspaces, rows.Err()
}

// Update updates a workspace's name and description.
func (r *WorkspaceRepository) Update(ctx context.Context, ws *models.Workspace) error {
	ws.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE workspaces SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`, ws.Name, ws.Description, ws.UpdatedAt, ws.ID)
	if err != nil {
		return fmt.Errorf("updating workspace: %w", err)
	}

	return expectAffected(result, "workspace", ws.ID)
}

// Delete removes a workspace and, through cascades, its projects and tasks.
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM workspaces WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting workspace: %w", err)
	}

	return expectAffected(result, "workspace", id)
}

// AddMember adds userID to the workspace, updating the role if already present.
func (r *WorkspaceRepository) AddMember(ctx context.Context, workspaceID, userID, role string) error {
	if role == "" {
		role = models.RoleMember
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(workspace_id, user_id) DO UPDATE SET role = excluded.role
	`, workspaceID, userID, role, r.Now())
	if err != nil {
		return fmt.Errorf("inserting workspace member: %w", err)
	}

	return nil
}

// IsMember reports whether userID belongs to the workspace.
func (r *WorkspaceRepository) IsMember(ctx context.Context, workspaceID, userID string) (bool, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workspace_members WHERE workspace_id = ? AND user_id = ?
	`, workspaceID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying workspace membership: %w", err)
	}
	return n > 0, nil
}

// Members retrieves the users belonging to a workspace, in join order.
func (r *WorkspaceRepository) Members(ctx context.Context, workspaceID string) ([]models.User, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT u.id, u.email, u.display_name, u.avatar_url, u.created_at
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = ?
		ORDER BY m.joined_at, u.display_name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying workspace members: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}
