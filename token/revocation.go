package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records revoked jtis in Redis. Each record's TTL equals the
// token's remaining natural lifetime, so the set can never outgrow the set
// of still-verifiable tokens.
type Revocations struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRevocations creates a revocation store. prefix namespaces the keys.
func NewRevocations(redisClient redis.UniversalClient, prefix string) *Revocations {
	if prefix == "" {
		prefix = "arv"
	}
	return &Revocations{redis: redisClient, prefix: prefix, now: time.Now}
}

func (r *Revocations) key(jti string) string {
	return r.prefix + ":" + jti
}

// Revoke records the jti until expiresAt. Revoking an already-expired token
// is a no-op: the signature check alone rejects it from now on.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	if err := r.redis.Set(ctx, r.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the jti has a live revocation record. Backend
// failures are surfaced, never folded into "not revoked".
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.redis.Get(ctx, r.key(jti)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}
