package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// TokenVerifier turns a raw token into claims or an *Error.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// UserLoader loads a user without its stored credential. It returns
// common.ErrorNotFound for unknown ids.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Resolver turns bearer tokens into principals. It holds no per-request
// state and is safe for concurrent use.
type Resolver struct {
	tokens  TokenVerifier
	users   UserLoader
	revoked RevocationStore
	cache   *PrincipalCache
}

type ResolverOption func(*Resolver)

// WithRevocations makes the resolver reject tokens whose id was revoked.
func WithRevocations(s RevocationStore) ResolverOption {
	return func(r *Resolver) { r.revoked = s }
}

// WithPrincipalCache puts c in front of the user lookup.
func WithPrincipalCache(c *PrincipalCache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

func NewResolver(tokens TokenVerifier, users UserLoader, opts ...ResolverOption) *Resolver {
	r := &Resolver{tokens: tokens, users: users}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve verifies token and loads its user. Failures come in this order:
// the token's own failure, TOKEN_REVOKED, USER_NOT_FOUND,
// ACCOUNT_DEACTIVATED. Storage errors are returned wrapped and carry no
// Failure.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Principal, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if r.revoked != nil {
		revoked, err := r.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("revocation lookup: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	role, active, err := r.lookup(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrAccountDeactivated
	}

	return &Principal{
		UserID:    claims.UserID,
		Role:      role,
		IsActive:  active,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, userID string) (models.Role, bool, error) {
	if r.cache != nil {
		if u, ok := r.cache.get(userID); ok {
			return u.Role, u.IsActive, nil
		}
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", false, ErrUserNotFound
		}
		return "", false, fmt.Errorf("user lookup: %w", err)
	}

	if r.cache != nil {
		r.cache.put(user)
	}
	return user.Role, user.IsActive, nil
}

// ResolveOptional is Resolve for endpoints open to guests: any failure,
// including a missing token, yields nil.
func (r *Resolver) ResolveOptional(ctx context.Context, token string) *Principal {
	if token == "" {
		return nil
	}
	p, err := r.Resolve(ctx, token)
	if err != nil {
		return nil
	}
	return p
}

// Invalidate forgets any cached state for userID. Call it after changing a
// user's role or active flag, or deleting the user.
func (r *Resolver) Invalidate(userID string) {
	if r.cache != nil {
		r.cache.Invalidate(userID)
	}
}
