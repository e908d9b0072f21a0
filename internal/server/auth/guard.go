package auth

import (
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/google/uuid"
)

// AuthorizeOwnerOrAdmin allows p to act on a resource owned by ownerID when
// p is the owner or an admin. A denial is common.ErrorNotFound so callers
// cannot tell someone else's resource from a missing one.
func AuthorizeOwnerOrAdmin(p *Principal, ownerID string) error {
	if p == nil {
		return common.ErrorNotFound
	}
	if p.IsAdmin() || (ownerID != "" && sameUser(p.UserID, ownerID)) {
		return nil
	}
	return common.ErrorNotFound
}

// OwnerScope is the owner filter for resource queries made on behalf of p.
// Admins get "" (unscoped).
func OwnerScope(p *Principal) string {
	if p.IsAdmin() {
		return ""
	}
	return p.UserID
}

// RequireAdmin allows only admins.
func RequireAdmin(p *Principal) error {
	if !p.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}

// ForbidSelf stops an admin from deleting their own account through the
// admin path.
func ForbidSelf(p *Principal, targetUserID string) error {
	if p != nil && sameUser(p.UserID, targetUserID) {
		return ErrSelfDeleteNotAllowed
	}
	return nil
}

// sameUser compares ids by value when both are UUIDs, so "{...}" or
// upper-case spellings of the same id match. The store accepts those too.
func sameUser(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA == nil && errB == nil {
		return ua == ub
	}
	return a == b
}
