package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
	calls int
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) set(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) Revoke(_ context.Context, id string, _ time.Time) error {
	f.revoked[id] = true
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return f.revoked[id], f.err
}

func activeUser(id string, role models.Role) *models.User {
	return &models.User{ID: id, Role: role, IsActive: true, PasswordHash: "$2a$secret"}
}

func TestResolver_Resolve(t *testing.T) {
	issuer := newTestIssuer(t)
	users := newFakeUsers(activeUser("alice", models.RoleUser))
	r := NewResolver(issuer, users)

	tok, claims, err := issuer.Issue("alice")
	require.NoError(t, err)

	p, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, models.RoleUser, p.Role)
	assert.True(t, p.IsActive)
	assert.Equal(t, claims.ID, p.TokenID)
	assert.Equal(t, claims.ExpiresAtTime(), p.ExpiresAt)
}

func TestResolver_FailureOrder(t *testing.T) {
	issuer := newTestIssuer(t)
	ctx := context.Background()

	t.Run("token failure passes through", func(t *testing.T) {
		r := NewResolver(issuer, newFakeUsers())
		_, err := r.Resolve(ctx, "")
		require.ErrorIs(t, err, ErrMissingToken)
		_, err = r.Resolve(ctx, "garbage")
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("deleted user", func(t *testing.T) {
		r := NewResolver(issuer, newFakeUsers())
		tok, _, err := issuer.Issue("ghost")
		require.NoError(t, err)

		_, err = r.Resolve(ctx, tok)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("deactivated user with valid token", func(t *testing.T) {
		users := newFakeUsers(activeUser("bob", models.RoleUser))
		r := NewResolver(issuer, users)
		tok, _, err := issuer.Issue("bob")
		require.NoError(t, err)

		_, err = r.Resolve(ctx, tok)
		require.NoError(t, err)

		users.set(func() { users.users["bob"].IsActive = false })

		_, err = r.Resolve(ctx, tok)
		require.ErrorIs(t, err, ErrAccountDeactivated)
	})

	t.Run("revoked token", func(t *testing.T) {
		rev := &fakeRevocations{revoked: map[string]bool{}}
		r := NewResolver(issuer, newFakeUsers(activeUser("carol", models.RoleUser)), WithRevocations(rev))
		tok, claims, err := issuer.Issue("carol")
		require.NoError(t, err)
		require.NoError(t, rev.Revoke(ctx, claims.ID, claims.ExpiresAtTime()))

		_, err = r.Resolve(ctx, tok)
		require.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("storage error is wrapped without a failure kind", func(t *testing.T) {
		users := newFakeUsers()
		users.err = errors.New("connection reset")
		r := NewResolver(issuer, users)
		tok, _, err := issuer.Issue("dave")
		require.NoError(t, err)

		_, err = r.Resolve(ctx, tok)
		require.Error(t, err)
		_, ok := FailureOf(err)
		assert.False(t, ok)
		assert.ErrorIs(t, err, users.err)
	})

	t.Run("revocation store error", func(t *testing.T) {
		rev := &fakeRevocations{revoked: map[string]bool{}, err: errors.New("redis down")}
		r := NewResolver(issuer, newFakeUsers(activeUser("erin", models.RoleUser)), WithRevocations(rev))
		tok, _, err := issuer.Issue("erin")
		require.NoError(t, err)

		_, err = r.Resolve(ctx, tok)
		require.ErrorIs(t, err, rev.err)
	})
}

func TestResolver_ResolveOptional(t *testing.T) {
	issuer := newTestIssuer(t)
	r := NewResolver(issuer, newFakeUsers(activeUser("alice", models.RoleAdmin)))
	ctx := context.Background()

	assert.Nil(t, r.ResolveOptional(ctx, ""))
	assert.Nil(t, r.ResolveOptional(ctx, "garbage"))

	tok, _, err := issuer.Issue("alice")
	require.NoError(t, err)
	p := r.ResolveOptional(ctx, tok)
	require.NotNil(t, p)
	assert.True(t, p.IsAdmin())
}

func TestResolver_WithCache(t *testing.T) {
	ctx := context.Background()
	cache, err := NewPrincipalCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	issuer := newTestIssuer(t)
	users := newFakeUsers(activeUser("alice", models.RoleUser))
	r := NewResolver(issuer, users, WithPrincipalCache(cache))

	tok, _, err := issuer.Issue("alice")
	require.NoError(t, err)

	for range 3 {
		_, err := r.Resolve(ctx, tok)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, users.calls, "cached after first lookup")

	users.set(func() { users.users["alice"].IsActive = false })
	_, err = r.Resolve(ctx, tok)
	require.NoError(t, err, "stale within ttl")

	r.Invalidate("alice")
	_, err = r.Resolve(ctx, tok)
	require.ErrorIs(t, err, ErrAccountDeactivated)
}

func TestResolver_Concurrent(t *testing.T) {
	issuer := newTestIssuer(t)
	users := newFakeUsers(activeUser("a", models.RoleUser), activeUser("b", models.RoleAdmin))
	r := NewResolver(issuer, users)

	tokA, _, err := issuer.Issue("a")
	require.NoError(t, err)
	tokB, _, err := issuer.Issue("b")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for n := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tok, want := tokA, "a"
			if n%2 == 1 {
				tok, want = tokB, "b"
			}
			p, err := r.Resolve(context.Background(), tok)
			if assert.NoError(t, err) {
				assert.Equal(t, want, p.UserID)
			}
		}(n)
	}
	wg.Wait()
}
