package auth

import (
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Principal is the authenticated identity behind a request.
type Principal struct {
	UserID    string
	Role      models.Role
	IsActive  bool
	TokenID   string
	ExpiresAt time.Time
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}
