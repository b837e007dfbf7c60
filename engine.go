// Package authcore is a Redis-backed identity and session lifecycle engine.
//
// The engine composes the credential hasher, login attempt limiter, session
// store, token service, two-factor verifier, and one-time token store behind
// a single API. Account storage is supplied by the host through
// [UserProvider]; everything volatile lives in Redis.
package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/limiter"
	"github.com/halcyondev/authcore/onetime"
	"github.com/halcyondev/authcore/password"
	"github.com/halcyondev/authcore/session"
	"github.com/halcyondev/authcore/token"
	"github.com/halcyondev/authcore/twofactor"
)

// Engine is the authentication core. Build one with [Builder.Build]; all
// methods are safe for concurrent use.
type Engine struct {
	config   Config
	users    UserProvider
	notifier Notifier
	logger   *slog.Logger

	hasher   *password.Hasher
	limiter  *limiter.Limiter
	sessions *session.Store
	tokens   *token.Service
	totp     *twofactor.TOTP
	secrets  *onetime.Store

	auditor *audit.Dispatcher
	metrics *Metrics

	// dummyHash is verified against when the identifier is unknown, so the
	// miss costs the same argon2 work as a real mismatch.
	dummyHash string

	now func() time.Time
}

// Metrics exposes the engine's operation counters.
func (e *Engine) Metrics() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// Close flushes the audit pipeline. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.auditor.Close()
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = e.now()
	e.auditor.Emit(ctx, event)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// HashPassword checks the candidate against the policy and returns its
// argon2id hash, for host applications creating accounts.
func (e *Engine) HashPassword(candidate string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	hash, err := e.hasher.Hash(candidate)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return "", errors.Join(ErrInvalidPassword, err)
		}
		return "", err
	}
	return hash, nil
}

// lookupUser resolves an identifier, mapping provider misses to nil.
func (e *Engine) lookupUser(ctx context.Context, identifier string) (*UserRecord, error) {
	user, err := e.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// statusGate refuses authentication for accounts that must not log in.
func (e *Engine) statusGate(user *UserRecord) error {
	switch user.Status {
	case StatusDisabled:
		return ErrAccountDisabled
	case StatusLocked:
		return ErrAccountLocked
	}
	if e.config.RequireVerifiedEmail && !user.EmailVerified {
		return ErrAccountUnverified
	}
	return nil
}
