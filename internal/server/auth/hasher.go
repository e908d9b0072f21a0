// Package auth is the authentication and authorization core: password
// hashing, session tokens, principal resolution and ownership checks.
package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt distinguishes. Anything past
// it would be ignored by the comparison.
const MaxPasswordBytes = 72

var (
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrMalformedSecret = errors.New("malformed stored secret")
)

// Scheme identifies how a stored secret was produced.
type Scheme int

const (
	SchemeLegacy Scheme = iota + 1
	SchemeAdaptive
)

// StoredSecret is a parsed credential: LegacyDigest or Adaptive.
type StoredSecret interface {
	Scheme() Scheme
	matches(plaintext string) bool
}

// LegacyDigest is a hex HMAC-SHA1 of the password keyed by Salt.
type LegacyDigest struct {
	Salt   string
	Digest string
}

func (LegacyDigest) Scheme() Scheme { return SchemeLegacy }

func (d LegacyDigest) matches(plaintext string) bool {
	want, err := hex.DecodeString(d.Digest)
	if err != nil {
		return false
	}
	return hmac.Equal(want, legacyDigest(plaintext, d.Salt))
}

// Adaptive is a bcrypt hash.
type Adaptive struct {
	Hash string
}

func (Adaptive) Scheme() Scheme { return SchemeAdaptive }

func (a Adaptive) matches(plaintext string) bool {
	if len(plaintext) > MaxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(plaintext)) == nil
}

func legacyDigest(plaintext, salt string) []byte {
	mac := hmac.New(sha1.New, []byte(salt))
	mac.Write([]byte(plaintext))
	return mac.Sum(nil)
}

// ParseSecret decides which scheme produced secret. bcrypt hashes carry a
// "$2" prefix; anything else must be a 40-char hex digest with a salt.
func ParseSecret(secret, salt string) (StoredSecret, error) {
	if strings.HasPrefix(secret, "$2") {
		return Adaptive{Hash: secret}, nil
	}
	if salt == "" || len(secret) != sha1.Size*2 {
		return nil, ErrMalformedSecret
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return nil, ErrMalformedSecret
	}
	return LegacyDigest{Salt: salt, Digest: secret}, nil
}

// Hasher creates and checks stored password secrets. New secrets are always
// bcrypt; legacy digests are only ever verified.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a bcrypt hash of plaintext. Passwords over 72 bytes fail with
// bcrypt.ErrPasswordTooLong.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches the stored secret. It never
// panics; an empty plaintext or an unparseable secret yields false, and so
// does a plaintext longer than MaxPasswordBytes against a bcrypt secret.
func (h *Hasher) Verify(plaintext, secret, salt string) bool {
	if plaintext == "" {
		return false
	}
	s, err := ParseSecret(secret, salt)
	if err != nil {
		return false
	}
	return s.matches(plaintext)
}

// NeedsRehash reports whether a secret that just verified should be replaced
// with a fresh hash at the current cost.
func (h *Hasher) NeedsRehash(secret, salt string) bool {
	s, err := ParseSecret(secret, salt)
	if err != nil || s.Scheme() == SchemeLegacy {
		return true
	}
	cost, err := bcrypt.Cost([]byte(secret))
	return err != nil || cost < h.cost
}

// DummyVerify burns roughly the time of a real verification. Used when the
// account does not exist so response timing does not reveal it.
func (h *Hasher) DummyVerify(plaintext string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
}

// LegacyHash produces a salted HMAC-SHA1 record in the old format. Only
// import tooling and tests need it; Hash is the one to use for new secrets.
func LegacyHash(plaintext string) (digest, salt string, err error) {
	if plaintext == "" {
		return "", "", ErrEmptyPassword
	}
	salt, err = common.MakeRandHexString(8)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(legacyDigest(plaintext, salt)), salt, nil
}
