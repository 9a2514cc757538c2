package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
	"github.com/Dhrumilshah777/imageDrop/internal/model"
	"github.com/Dhrumilshah777/imageDrop/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// userColumns maps NULL github_id to 0 so it scans into model.User.
const userColumns = `id, COALESCE(github_id, 0) AS github_id, email, display_name,
	photo_url, password_hash, created_at, updated_at`

// UpsertGitHub inserts a new GitHub account or refreshes the profile of an
// existing one. The internal ID of an existing account never changes.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return fmt.Errorf("sqlite: upserting user: github id is required")
	}

	var existingID string
	err := db.conn.GetContext(ctx, &existingID,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	now := time.Now().UTC()
	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = now
		_, err = db.conn.NamedExecContext(ctx,
			`UPDATE users SET email = :email, display_name = :display_name,
			     photo_url = :photo_url, updated_at = :updated_at
			 WHERE id = :id`,
			user,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return db.reload(ctx, user)
	}

	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err = db.conn.NamedExecContext(ctx,
		`INSERT INTO users (id, github_id, email, display_name, photo_url, created_at, updated_at)
		 VALUES (:id, :github_id, :email, :display_name, :photo_url, :created_at, :updated_at)`,
		user,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
	}
	return nil
}

// reload refreshes user from the row, so CreatedAt reflects the stored value.
func (db *DB) reload(ctx context.Context, user *model.User) error {
	stored, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// CreateWithPassword inserts an email/password account.
func (db *DB) CreateWithPassword(ctx context.Context, user *model.User) error {
	if user.PasswordHash == "" {
		return fmt.Errorf("sqlite: creating user: password hash is required")
	}

	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.GitHubID = 0
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.NamedExecContext(ctx,
		`INSERT INTO users (id, github_id, email, display_name, photo_url, password_hash, created_at, updated_at)
		 VALUES (:id, NULL, :email, :display_name, :photo_url, :password_hash, :created_at, :updated_at)`,
		user,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail retrieves an email/password account.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND password_hash != ''`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}
