// Package services contains the server-side business logic. UserService
// covers accounts and sessions; TaskService covers tasks. Both consult the
// auth Guard before touching a repository.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/archive"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/validation"
)

// recentWindow bounds "recent registrations" in system stats.
const recentWindow = 30 * 24 * time.Hour

// Invalidator drops cached state for a user after a role, active flag or
// existence change.
type Invalidator interface {
	Invalidate(userID string)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

type UserService struct {
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	issuer      *auth.Issuer
	revocations auth.RevocationStore
	invalidator Invalidator
	archiver    archive.Archiver
	logger      logging.Logger
	now         func() time.Time
}

type UserServiceOption func(*UserService)

// WithRevocationStore enables Logout. Without it Logout is a no-op.
func WithRevocationStore(s auth.RevocationStore) UserServiceOption {
	return func(us *UserService) { us.revocations = s }
}

func WithInvalidator(i Invalidator) UserServiceOption {
	return func(us *UserService) { us.invalidator = i }
}

func WithArchiver(a archive.Archiver) UserServiceOption {
	return func(us *UserService) { us.archiver = a }
}

func WithLogger(l logging.Logger) UserServiceOption {
	return func(us *UserService) { us.logger = l }
}

func WithUserClock(now func() time.Time) UserServiceOption {
	return func(us *UserService) { us.now = now }
}

func NewUserService(m repomanager.RepositoryManager, hasher *auth.Hasher, issuer *auth.Issuer, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repomanager: m,
		hasher:      hasher,
		issuer:      issuer,
		invalidator: noopInvalidator{},
		archiver:    archive.Noop{},
		logger:      logging.Discard(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterInput is the self-registration request.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthResult is a freshly issued session.
type AuthResult struct {
	Token string
	User  *models.User
}

// ProfileUpdate changes the caller's own account. Nil fields are left alone.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// AdminUserUpdate is ProfileUpdate plus the fields only admins may change.
type AdminUserUpdate struct {
	ProfileUpdate
	Role     *string
	IsActive *bool
}

// SystemStats is the admin dashboard summary.
type SystemStats struct {
	Users models.UserStats `json:"users"`
	Tasks models.TaskStats `json:"tasks"`
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	err := validation.New().
		Validate("firstName", in.FirstName, validation.PersonName("First name")...).
		Validate("lastName", in.LastName, validation.PersonName("Last name")...).
		Validate("email", in.Email, validation.Email()).
		Validate("password", in.Password, passwordRules...).
		Err()
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        models.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	user, err = s.repomanager.Users(s.repomanager.Conn()).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrEmailExists) {
			return nil, common.ErrEmailExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return s.session(user)
}

// Login checks the password and issues a token. Unknown emails and wrong
// passwords are indistinguishable; a deactivated account is only reported
// once the password has been proven. Legacy or under-cost secrets are
// re-hashed on success.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	err := validation.New().
		Validate("email", email, validation.Email()).
		Validate("password", password, validation.Required("Password", auth.MaxPasswordBytes), validation.ByteRange("Password", 1, auth.MaxPasswordBytes)).
		Err()
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.repomanager.Conn())
	user, err := repo.GetCredentialsByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.DummyVerify(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash, user.Salt) {
		return nil, common.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, common.ErrAccountDeactivated
	}

	if s.hasher.NeedsRehash(user.PasswordHash, user.Salt) {
		if hash, err := s.hasher.Hash(password); err != nil {
			s.logger.Warn(ctx, "rehash failed", "user_id", user.ID, "error", err)
		} else if err := repo.UpdateCredential(ctx, user.ID, hash, ""); err != nil {
			s.logger.Warn(ctx, "rehash not stored", "user_id", user.ID, "error", err)
		} else {
			s.logger.Info(ctx, "credential migrated to adaptive hash", "user_id", user.ID)
		}
	}
	user.PasswordHash, user.Salt = "", ""
	return s.session(user)
}

func (s *UserService) session(user *models.User) (*AuthResult, error) {
	token, _, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Logout revokes the token p was resolved from.
func (s *UserService) Logout(ctx context.Context, p *auth.Principal) error {
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *UserService) Profile(ctx context.Context, p *auth.Principal) (*models.User, error) {
	return s.loadUser(ctx, p.UserID)
}

func (s *UserService) UpdateProfile(ctx context.Context, p *auth.Principal, in ProfileUpdate) (*models.User, error) {
	fv := validateProfile(in)
	if err := fv.Err(); err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, p.UserID, AdminUserUpdate{ProfileUpdate: in})
}

// ChangePassword replaces the caller's credential after checking the current
// one. The new secret always uses the adaptive scheme.
func (s *UserService) ChangePassword(ctx context.Context, p *auth.Principal, current, next string) error {
	err := validation.New().
		Validate("currentPassword", current, validation.Required("Current password", auth.MaxPasswordBytes), validation.ByteRange("Current password", 1, auth.MaxPasswordBytes)).
		Validate("newPassword", next, passwordRules...).
		Err()
	if err != nil {
		return err
	}

	repo := s.repomanager.Users(s.repomanager.Conn())
	user, err := repo.GetCredentialsByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("error loading user: %w", err)
	}
	if !s.hasher.Verify(current, user.PasswordHash, user.Salt) {
		return common.ErrWrongPassword
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := repo.UpdateCredential(ctx, user.ID, hash, ""); err != nil {
		return fmt.Errorf("error storing credential: %w", err)
	}
	return nil
}

// DeleteSelf removes the caller's account and every task it owns.
func (s *UserService) DeleteSelf(ctx context.Context, p *auth.Principal) error {
	return s.deleteAccount(ctx, p.UserID)
}

func (s *UserService) ListUsers(ctx context.Context, p *auth.Principal, filter models.UserFilter) ([]*models.User, int, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, 0, err
	}
	users, total, err := s.repomanager.Users(s.repomanager.Conn()).List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing users: %w", err)
	}
	return users, total, nil
}

// GetUser returns a user and the stats of their tasks.
func (s *UserService) GetUser(ctx context.Context, p *auth.Principal, id string) (*models.User, models.TaskStats, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, models.TaskStats{}, err
	}
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, models.TaskStats{}, err
	}
	stats, err := s.repomanager.Tasks(s.repomanager.Conn()).Stats(ctx, id, s.now())
	if err != nil {
		return nil, models.TaskStats{}, fmt.Errorf("error loading task stats: %w", err)
	}
	return user, stats, nil
}

func (s *UserService) UpdateUser(ctx context.Context, p *auth.Principal, id string, in AdminUserUpdate) (*models.User, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	fv := validateProfile(in.ProfileUpdate)
	if in.Role != nil {
		fv.Validate("role", *in.Role, validation.OneOf("Role", string(models.RoleUser), string(models.RoleAdmin)))
	}
	if err := fv.Err(); err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, id, in)
}

// DeleteUser is the admin path of account deletion. Admins cannot delete
// themselves here.
func (s *UserService) DeleteUser(ctx context.Context, p *auth.Principal, id string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}
	if err := auth.ForbidSelf(p, id); err != nil {
		return err
	}
	return s.deleteAccount(ctx, id)
}

func (s *UserService) SystemStats(ctx context.Context, p *auth.Principal) (*SystemStats, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	now := s.now()
	users, err := s.repomanager.Users(s.repomanager.Conn()).Stats(ctx, now.Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("error loading user stats: %w", err)
	}
	tasks, err := s.repomanager.Tasks(s.repomanager.Conn()).Stats(ctx, "", now)
	if err != nil {
		return nil, fmt.Errorf("error loading task stats: %w", err)
	}
	return &SystemStats{Users: users, Tasks: tasks}, nil
}

// --- helpers below ---

var passwordRules = []validation.Validator{validation.ByteRange("Password", 6, auth.MaxPasswordBytes)}

func validateProfile(in ProfileUpdate) *validation.FieldValidator {
	return validation.New().
		Optional("firstName", in.FirstName, validation.PersonName("First name")...).
		Optional("lastName", in.LastName, validation.PersonName("Last name")...).
		Optional("email", in.Email, validation.Email())
}

func (s *UserService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.repomanager.Conn()).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

func (s *UserService) applyUpdate(ctx context.Context, id string, in AdminUserUpdate) (*models.User, error) {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	repo := s.repomanager.Users(s.repomanager.Conn())

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if email != user.Email {
			taken, err := repo.EmailTaken(ctx, email, user.ID)
			if err != nil {
				return nil, fmt.Errorf("error checking email: %w", err)
			}
			if taken {
				return nil, common.ErrEmailExists
			}
		}
		user.Email = email
	}
	if in.Role != nil {
		user.Role = models.Role(*in.Role)
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	if err := repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, common.ErrEmailExists):
			return nil, common.ErrEmailExists
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	if in.Role != nil || in.IsActive != nil {
		s.invalidator.Invalidate(user.ID)
	}
	return user, nil
}

// deleteAccount archives the account, then removes its tasks and the user in
// one transaction. An archive failure leaves everything in place.
func (s *UserService) deleteAccount(ctx context.Context, id string) error {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	id = user.ID
	tasks, err := s.repomanager.Tasks(s.repomanager.Conn()).ListByOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("error loading tasks: %w", err)
	}
	if err := s.archiver.Archive(ctx, user, tasks); err != nil {
		return fmt.Errorf("error archiving user: %w", err)
	}

	var removed int64
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Tasks(tx).DeleteByOwner(ctx, id)
		if err != nil {
			return fmt.Errorf("error deleting tasks: %w", err)
		}
		removed = n
		if err := s.repomanager.Users(tx).Delete(ctx, id); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUserNotFound
			}
			return fmt.Errorf("error deleting user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidator.Invalidate(id)
	s.logger.Info(ctx, "user deleted", "user_id", id, "tasks_deleted", removed)
	return nil
}
