// Package repository defines the persistence interfaces for accounts.
// Image records do not live here; they go through internal/docstore.
package repository

import (
	"context"

	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// UserRepository stores identity-provider accounts.
type UserRepository interface {
	// UpsertGitHub creates or refreshes the account linked to
	// user.GitHubID and fills in ID and timestamps.
	UpsertGitHub(ctx context.Context, user *model.User) error

	// CreateWithPassword creates an email/password account. A second
	// account with the same email is an apperror.ErrConflict.
	CreateWithPassword(ctx context.Context, user *model.User) error

	// GetUserByID returns apperror.ErrNotFound for unknown IDs.
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// GetUserByEmail finds an email/password account. GitHub accounts are
	// not matched.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}
