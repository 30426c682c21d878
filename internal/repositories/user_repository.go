// ===============================
// FILE: internal/repositories/user_repository.go
// ===============================

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wavehub/internal/database"
	"wavehub/internal/models"

	"go.uber.org/zap"
)

// userRepository implements UserRepository over Postgres.
type userRepository struct {
	*BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.Manager, logger *zap.Logger, txMaxRetries int, txRetryBackoff time.Duration) UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository(db, logger, txMaxRetries, txRetryBackoff),
	}
}

const userColumns = `
	id, username, name, email, bio,
	profile_image_url, profile_image_public_id,
	followers_count, following_count, created_at, updated_at`

// Insert conditionally creates the profile. ON CONFLICT(id) DO NOTHING
// resolves the concurrent double-provisioning race inside the database:
// the losing writer observes created=false and re-reads the winner's row.
// A username collision surfaces as ErrUsernameTaken for the caller's
// suffix loop.
func (r *userRepository) Insert(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (id, username, name, email, bio, profile_image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at`

	err := r.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Name, user.Email, user.Bio, user.ProfileImageURL,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict on id: another request provisioned this identity first.
			return false, nil
		}
		if IsUniqueViolation(err, "users_username_key") {
			return false, ErrUsernameTaken
		}
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	r.GetLogger().Info("User profile created",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return true, nil
}

// GetByID retrieves a profile by its identity key, or nil when absent.
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// GetByUsername retrieves a profile by username, or nil when absent.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`

	user, err := scanUser(r.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return user, nil
}

// UsernameExists reports whether a username is taken.
func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username %s: %w", username, err)
	}
	return exists, nil
}

// Update patches the mutable profile fields in one statement and returns
// the updated row. Identity key, username and email never change here.
func (r *userRepository) Update(ctx context.Context, id string, params UpdateUserParams) (*models.User, error) {
	setParts := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Name != nil {
		appendSet("name", *params.Name)
	}
	if params.Bio != nil {
		appendSet("bio", *params.Bio)
	}
	if params.ProfileImageURL != nil {
		appendSet("profile_image_url", *params.ProfileImageURL)
	}
	if params.ProfileImagePublicID != nil {
		appendSet("profile_image_public_id", *params.ProfileImagePublicID)
	}

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(setParts, ", "), userColumns)

	user, err := scanUser(r.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user %s: %w", id, err)
	}

	r.GetLogger().Info("User profile updated", zap.String("user_id", id))
	return user, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Name, &user.Email, &user.Bio,
		&user.ProfileImageURL, &user.ProfileImagePublicID,
		&user.Followers, &user.Following, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
