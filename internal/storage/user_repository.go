package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard/backend/internal/storage/models"
)

// UserRepository provides data access for users and teammate links.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const userColumns = `id, email, display_name, avatar_url, created_at`

// Create inserts a new user. A caller-supplied ID is kept, so that ids issued
// by the session provider can be mirrored locally.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = GenerateID()
	}
	user.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.DisplayName, user.AvatarURL, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// Upsert inserts a user or updates the profile of an existing one. It is
// used to mirror accounts of the session provider on first sign-in.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("upserting user: empty id")
	}
	user.CreatedAt = r.Now()

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url
	`, user.ID, user.Email, user.DisplayName, user.AvatarURL, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID. It returns nil if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}

	err := r.DB().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.AvatarURL, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return user, nil
}

// List retrieves all users ordered by display name.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// AddTeammate links two users in both directions.
func (r *UserRepository) AddTeammate(ctx context.Context, userID, teammateID string) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		for _, pair := range [][2]string{{userID, teammateID}, {teammateID, userID}} {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO teammates (user_id, teammate_id, created_at) VALUES (?, ?, ?)
				ON CONFLICT(user_id, teammate_id) DO NOTHING
			`, pair[0], pair[1], r.Now())
			if err != nil {
				return fmt.Errorf("inserting teammate link: %w", err)
			}
		}
		return nil
	})
}

// Teammates retrieves the users linked to userID.
func (r *UserRepository) Teammates(ctx context.Context, userID string) ([]models.User, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT u.id, u.email, u.display_name, u.avatar_url, u.created_at
		FROM teammates t
		JOIN users u ON u.id = t.teammate_id
		WHERE t.user_id = ? AND t.teammate_id <> t.user_id
		ORDER BY u.display_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying teammates: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
