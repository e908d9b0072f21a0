// Package users stores user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Repository is the user store. Lookups of unknown ids or emails return
// common.ErrorNotFound; a duplicate email returns common.ErrEmailExists.
// Emails are expected to be normalized by the caller.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByID loads a user without PasswordHash and Salt.
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*models.User, error)
	GetCredentialsByID(ctx context.Context, id string) (*models.User, error)
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	// Update writes names, email, role and active flag.
	Update(ctx context.Context, user *models.User) error
	UpdateCredential(ctx context.Context, id, hash, salt string) error
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, int, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, since time.Time) (models.UserStats, error)
}
