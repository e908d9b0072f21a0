package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.emailTakenLocked(user.Email, "") {
		return nil, common.ErrEmailExists
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.noteUserLocked(ctx, user.ID)
	r.s.users[user.ID] = copyUser(user)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := r.GetCredentialsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.PasswordHash, u.Salt = "", ""
	return u, nil
}

func (r *UserRepository) GetCredentialsByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *UserRepository) GetCredentialsByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) EmailTaken(_ context.Context, email, exceptID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.emailTakenLocked(email, exceptID), nil
}

func (r *UserRepository) emailTakenLocked(email, exceptID string) bool {
	for id, u := range r.s.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if r.emailTakenLocked(user.Email, user.ID) {
		return common.ErrEmailExists
	}
	stored := copyUser(current)
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Email = user.Email
	stored.Role = user.Role
	stored.IsActive = user.IsActive
	stored.UpdatedAt = r.s.now()
	r.s.noteUserLocked(ctx, user.ID)
	r.s.users[user.ID] = stored
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *UserRepository) UpdateCredential(ctx context.Context, id, hash, salt string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	stored := copyUser(current)
	stored.PasswordHash = hash
	stored.Salt = salt
	stored.UpdatedAt = r.s.now()
	r.s.noteUserLocked(ctx, id)
	r.s.users[id] = stored
	return nil
}

func (r *UserRepository) List(_ context.Context, filter models.UserFilter) ([]*models.User, int, error) {
	filter.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	r.s.mu.RLock()
	var matched []*models.User
	for _, u := range r.s.users {
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), search) &&
			!strings.Contains(strings.ToLower(u.LastName), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		c := copyUser(u)
		c.PasswordHash, c.Salt = "", ""
		matched = append(matched, c)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return paginate(matched, filter.Page), len(matched), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return common.ErrorNotFound
	}
	for _, t := range r.s.tasks {
		if t.UserID == id {
			return errOwnerHasTasks
		}
	}
	r.s.noteUserLocked(ctx, id)
	delete(r.s.users, id)
	return nil
}

func (r *UserRepository) Stats(_ context.Context, since time.Time) (models.UserStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var s models.UserStats
	for _, u := range r.s.users {
		s.Total++
		if u.IsActive {
			s.Active++
		} else {
			s.Inactive++
		}
		if u.IsAdmin() {
			s.Admins++
		}
		if !u.CreatedAt.Before(since) {
			s.RecentRegistrations++
		}
	}
	return s, nil
}

func paginate[T any](items []T, p models.Page) []T {
	start := min(max(p.Offset(), 0), len(items))
	end := min(start+max(p.Limit, 0), len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
