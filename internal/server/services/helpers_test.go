package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2030, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeArchiver struct {
	mu    sync.Mutex
	calls []string
	tasks int
	err   error
}

func (f *fakeArchiver) Archive(_ context.Context, u *models.User, tasks []*models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, u.ID)
	f.tasks += len(tasks)
	return f.err
}

type fakeInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeInvalidator) Invalidate(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
}

type fakeRevocations struct {
	revoked map[string]time.Time
	err     error
}

func (f *fakeRevocations) Revoke(_ context.Context, id string, exp time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.revoked[id] = exp
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := f.revoked[id]
	return ok, nil
}

// failingDeleteManager makes the user delete inside a transaction fail.
type failingDeleteManager struct {
	repomanager.RepositoryManager
}

type failingDeleteUsers struct {
	users.Repository
}

func (failingDeleteUsers) Delete(context.Context, string) error { return errors.New("fk violation") }

func (m failingDeleteManager) Users(db dbx.DBTX) users.Repository {
	return failingDeleteUsers{m.RepositoryManager.Users(db)}
}

type testEnv struct {
	rm          repomanager.RepositoryManager
	issuer      *auth.Issuer
	hasher      *auth.Hasher
	archiver    *fakeArchiver
	invalidator *fakeInvalidator
	revocations *fakeRevocations
	users       *UserService
	tasks       *TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, repomanager.NewInMemoryRepositoryManager())
}

func newTestEnvWith(t *testing.T, rm repomanager.RepositoryManager) *testEnv {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", auth.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	e := &testEnv{
		rm:          rm,
		issuer:      issuer,
		hasher:      auth.NewHasher(bcrypt.MinCost),
		archiver:    &fakeArchiver{},
		invalidator: &fakeInvalidator{},
		revocations: &fakeRevocations{revoked: map[string]time.Time{}},
	}
	e.users = NewUserService(rm, e.hasher, issuer,
		WithArchiver(e.archiver),
		WithInvalidator(e.invalidator),
		WithRevocationStore(e.revocations),
		WithUserClock(func() time.Time { return fixedNow }),
	)
	e.tasks = NewTaskService(rm)
	e.tasks.now = func() time.Time { return fixedNow }
	return e
}

func (e *testEnv) register(t *testing.T, first, email string) *models.User {
	t.Helper()
	res, err := e.users.Register(context.Background(), RegisterInput{
		FirstName: first, LastName: "Tester", Email: email, Password: "secret1",
	})
	require.NoError(t, err)
	return res.User
}

func (e *testEnv) registerAdmin(t *testing.T, email string) *models.User {
	t.Helper()
	u := e.register(t, "Admin", email)
	u.Role = models.RoleAdmin
	require.NoError(t, e.rm.Users(e.rm.Conn()).Update(context.Background(), u))
	return u
}

func principalOf(u *models.User) *auth.Principal {
	return &auth.Principal{UserID: u.ID, Role: u.Role, IsActive: u.IsActive, TokenID: "jti-" + u.ID, ExpiresAt: fixedNow.Add(auth.TokenTTL)}
}

func ptr[T any](v T) *T { return &v }
