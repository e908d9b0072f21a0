// Package admin implements the operator commands behind cmd/admin: schema
// migration, bootstrapping admin accounts and flipping roles or the active
// flag directly in storage.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/validation"
)

// ErrNoSuchUser is returned when no account has the given email.
var ErrNoSuchUser = errors.New("no user with that email")

type Tool struct {
	rm     repomanager.RepositoryManager
	hasher *auth.Hasher
}

func NewTool(rm repomanager.RepositoryManager, hasher *auth.Hasher) *Tool {
	return &Tool{rm: rm, hasher: hasher}
}

// CreateAdmin adds an active admin account. The same field rules as
// self-registration apply.
func (t *Tool) CreateAdmin(ctx context.Context, first, last, email string, password []byte) (*models.User, error) {
	err := validation.New().
		Validate("firstName", first, validation.PersonName("First name")...).
		Validate("lastName", last, validation.PersonName("Last name")...).
		Validate("email", email, validation.Email()).
		Validate("password", string(password), validation.ByteRange("Password", 6, 72)).
		Err()
	if err != nil {
		return nil, err
	}

	hash, err := t.hasher.Hash(string(password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := t.rm.Users(t.rm.Conn()).Create(ctx, &models.User{
		FirstName:    strings.TrimSpace(first),
		LastName:     strings.TrimSpace(last),
		Email:        models.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailExists) {
			return nil, common.ErrEmailExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (t *Tool) SetRole(ctx context.Context, email, role string) (*models.User, error) {
	r := models.Role(role)
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	return t.update(ctx, email, func(u *models.User) { u.Role = r })
}

func (t *Tool) SetActive(ctx context.Context, email string, active bool) (*models.User, error) {
	return t.update(ctx, email, func(u *models.User) { u.IsActive = active })
}

func (t *Tool) update(ctx context.Context, email string, change func(*models.User)) (*models.User, error) {
	repo := t.rm.Users(t.rm.Conn())
	user, err := repo.GetCredentialsByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchUser, email)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	user.PasswordHash, user.Salt = "", ""

	change(user)
	if err := repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	return user, nil
}

// HashPassword returns a stored secret for password. With legacy set it
// produces the salted digest format instead of bcrypt, for seeding data that
// exercises the upgrade-on-login path.
func (t *Tool) HashPassword(password []byte, legacy bool) (secret, salt string, err error) {
	if legacy {
		return auth.LegacyHash(string(password))
	}
	secret, err = t.hasher.Hash(string(password))
	return secret, "", err
}
