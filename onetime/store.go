// Package onetime implements single-use, time-bounded secrets on Redis:
// password-reset and email-verification tokens, federated-login state, and
// per-session CSRF values.
//
// Only a SHA-256 digest of each token ever reaches Redis, so a store
// compromise yields nothing usable without the original secret. Redemption
// is a single GETDEL (atomic read-and-delete), which makes every token
// valid for exactly one successful redemption. Expiry rides on the key TTL.
package onetime

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBytes = 32

var (
	// ErrNotFound covers every unsuccessful redemption: unknown token,
	// already redeemed, or expired. Callers cannot tell which, on purpose.
	ErrNotFound = errors.New("one-time token not found")
	// ErrUnavailable indicates the Redis backend could not be reached.
	ErrUnavailable = errors.New("one-time token backend unavailable")
)

// Purpose namespaces tokens so a token issued for one flow can never be
// redeemed in another.
type Purpose string

const (
	// PurposePasswordReset tokens are bound to a user id.
	PurposePasswordReset Purpose = "pwreset"
	// PurposeEmailVerification tokens are bound to a user id.
	PurposeEmailVerification Purpose = "emailverify"
	// PurposeOAuthState tokens carry federated-login round-trip state.
	PurposeOAuthState Purpose = "oauthstate"
	// PurposeTwoFactorLogin tokens bridge a password-verified login to its
	// second-factor completion.
	PurposeTwoFactorLogin Purpose = "mfalogin"
)

// Store issues and redeems one-time tokens.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Store. prefix namespaces the Redis keys.
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "aot"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(purpose Purpose, digest [32]byte) string {
	return s.prefix + ":" + string(purpose) + ":" + hex.EncodeToString(digest[:])
}

func (s *Store) csrfKey(sessionID string) string {
	return s.prefix + ":csrf:" + sessionID
}

// Issue mints a 256-bit random token bound to boundID and persists its
// digest with the given TTL. The returned plaintext token exists only in
// this return value.
func (s *Store) Issue(ctx context.Context, purpose Purpose, boundID string, ttl time.Duration) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	ok, err := s.redis.SetNX(ctx, s.key(purpose, sha256.Sum256([]byte(token))), boundID, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		// 256-bit collision; if it ever happens, refuse rather than clobber.
		return "", fmt.Errorf("%w: token digest collision", ErrUnavailable)
	}

	return token, nil
}

// Redeem atomically consumes a token and returns the id it was bound to.
// A second redemption, a wrong-purpose redemption, and an expired token all
// return [ErrNotFound].
func (s *Store) Redeem(ctx context.Context, purpose Purpose, token string) (string, error) {
	boundID, err := s.redis.GetDel(ctx, s.key(purpose, sha256.Sum256([]byte(token)))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return boundID, nil
}

// RotateCSRF mints a fresh CSRF token for the session, replacing any prior
// one, and stores its digest for the session's remaining lifetime. CSRF
// tokens are checked by exact match, not consumed.
func (s *Store) RotateCSRF(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	digest := sha256.Sum256([]byte(token))
	if err := s.redis.Set(ctx, s.csrfKey(sessionID), digest[:], ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return token, nil
}

// CheckCSRF reports whether token is the current CSRF value for the session.
// The comparison is constant-time over digests.
func (s *Store) CheckCSRF(ctx context.Context, sessionID, token string) (bool, error) {
	stored, err := s.redis.Get(ctx, s.csrfKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	digest := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(stored, digest[:]) == 1, nil
}

// DropCSRF removes the session's CSRF value. Called when the session is
// destroyed so the binding rotates with the session.
func (s *Store) DropCSRF(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.csrfKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
