package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers token ids that must no longer be accepted.
// Entries only need to outlive the token they revoke.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

var errEmptyTokenID = errors.New("token id cannot be empty")

// RedisRevocationStore shares revocations between server instances.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "revoked:", now: time.Now}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errEmptyTokenID
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		// already expired; verification rejects it anyway
		return nil
	}
	if err := s.client.Set(ctx, s.prefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocationStore keeps revocations in process. Every entry lives for
// TokenTTL, which covers the remaining life of any token.
type MemoryRevocationStore struct {
	cache *bigcache.BigCache
}

func NewMemoryRevocationStore() (*MemoryRevocationStore, error) {
	cfg := bigcache.DefaultConfig(TokenTTL)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 8
	cfg.CleanWindow = time.Hour

	c, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, err
	}
	return &MemoryRevocationStore{cache: c}, nil
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, _ time.Time) error {
	if tokenID == "" {
		return errEmptyTokenID
	}
	return s.cache.Set(tokenID, []byte{1})
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	buf, err := s.cache.Get(tokenID)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return false, nil
		}
		return false, err
	}
	return len(buf) > 0 && buf[0] == 1, nil
}

func (s *MemoryRevocationStore) Close() error {
	return s.cache.Close()
}
