package auth

import (
	"encoding/json"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// PrincipalCache keeps the role and active flag of recently resolved users so
// that most requests skip the user lookup. Entries live for the configured
// TTL; a deactivation made on another instance shows up at most that late.
type PrincipalCache struct {
	cache *bigcache.BigCache
}

type cachedUser struct {
	Role     models.Role `json:"r"`
	IsActive bool        `json:"a"`
}

func NewPrincipalCache(ttl time.Duration) (*PrincipalCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.MaxEntrySize = 64
	cfg.HardMaxCacheSize = 32
	cfg.CleanWindow = ttl

	c, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, err
	}
	return &PrincipalCache{cache: c}, nil
}

func (c *PrincipalCache) get(userID string) (cachedUser, bool) {
	b, err := c.cache.Get(userID)
	if err != nil {
		return cachedUser{}, false
	}
	var u cachedUser
	if err := json.Unmarshal(b, &u); err != nil {
		return cachedUser{}, false
	}
	return u, true
}

func (c *PrincipalCache) put(u *models.User) {
	b, err := json.Marshal(cachedUser{Role: u.Role, IsActive: u.IsActive})
	if err != nil {
		return
	}
	_ = c.cache.Set(u.ID, b)
}

// Invalidate drops userID so the next resolution reads the store.
func (c *PrincipalCache) Invalidate(userID string) {
	_ = c.cache.Delete(userID)
}

func (c *PrincipalCache) Close() error {
	return c.cache.Close()
}
