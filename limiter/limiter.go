// Package limiter enforces fixed-window login attempt limits on Redis.
//
// Counters are incremented with INCR; the window TTL is armed only when the
// increment created the key, so repeated failures cannot extend their own
// lockout. A counter found without a TTL (a crash between INCR and EXPIRE)
// is re-armed on the next increment rather than left to grow forever.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the Redis backend could not be reached.
var ErrUnavailable = errors.New("attempt limiter backend unavailable")

// Config tunes the attempt limiter.
type Config struct {
	// MaxAttempts is the number of attempts permitted inside one window.
	MaxAttempts int
	// Window is the fixed lockout window, armed on the first attempt.
	Window time.Duration
	// TrackIP additionally counts attempts per client IP when one is given.
	TrackIP bool
}

// Limiter counts authentication attempts per identifier (and optionally per
// client IP) in a shared Redis instance.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a Limiter. prefix namespaces the Redis keys.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	if prefix == "" {
		prefix = "alm"
	}
	return &Limiter{redis: redisClient, prefix: prefix, config: cfg}
}

func (l *Limiter) idKey(identifier string) string {
	return l.prefix + ":id:" + identifier
}

func (l *Limiter) ipKey(ip string) string {
	return l.prefix + ":ip:" + ip
}

// CheckAttempt records one attempt for the identifier (and IP, when tracked)
// and reports whether authentication may proceed along with the attempts
// still remaining in the window. Callers must refuse authentication when
// allowed is false, regardless of credential correctness.
func (l *Limiter) CheckAttempt(ctx context.Context, identifier, ip string) (allowed bool, remaining int, err error) {
	count, err := l.bump(ctx, l.idKey(identifier))
	if err != nil {
		return false, 0, err
	}

	if l.config.TrackIP && ip != "" {
		ipCount, err := l.bump(ctx, l.ipKey(ip))
		if err != nil {
			return false, 0, err
		}
		if ipCount > count {
			count = ipCount
		}
	}

	remaining = l.config.MaxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(l.config.MaxAttempts), remaining, nil
}

// Reset clears the counters for the identifier (and IP, when tracked).
// Called after a successful authentication.
func (l *Limiter) Reset(ctx context.Context, identifier, ip string) error {
	keys := []string{l.idKey(identifier)}
	if l.config.TrackIP && ip != "" {
		keys = append(keys, l.ipKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for an identifier. Missing keys read
// as zero and do not reveal whether the identifier exists.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.idKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) bump(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed window: arm the TTL only on the first hit. Concurrent first hits
	// may arm it more than once; the window stays correct or marginally
	// extended, never unbounded.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return count, nil
	}

	// Re-arm a counter that somehow lost its TTL so it cannot grow forever.
	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}
