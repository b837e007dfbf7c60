package authcore

import (
	"context"
	"errors"

	"github.com/halcyondev/authcore/session"
	"github.com/halcyondev/authcore/token"
)

// AuthenticateOptions controls optional checks during request
// authentication.
type AuthenticateOptions struct {
	// SkipRevocationCheck trusts the signature and expiry alone, trading
	// the Redis round trip for a revocation window of one access TTL.
	SkipRevocationCheck bool
	// SkipSessionCheck skips resolving the backing session. The claims are
	// then the only proof of authentication.
	SkipSessionCheck bool
}

// Authenticate validates an access token and confirms its backing session
// is still alive, sliding the session's activity window.
//
// A valid signature is not sufficient: a revoked token fails with
// [ErrTokenRevoked] and a token whose session was terminated fails with
// [ErrSessionNotFound].
func (e *Engine) Authenticate(ctx context.Context, accessToken string, opts AuthenticateOptions) (*Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.VerifyAccess(ctx, accessToken, token.VerifyOptions{
		CheckRevoked: !opts.SkipRevocationCheck,
	})
	if err != nil {
		return nil, mapTokenErr(err)
	}

	if !opts.SkipSessionCheck {
		if err := e.sessions.Touch(ctx, claims.SessionID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, mapStoreErr(err)
		}
	}

	return claims, nil
}

// CheckSession resolves a session id without authenticating a token, for
// introspection surfaces like "active devices" pages.
func (e *Engine) CheckSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, mapStoreErr(err)
	}
	return sess, nil
}

// ListSessions returns the user's live sessions.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	sessions, err := e.sessions.List(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return sessions, nil
}

// mapTokenErr converts token subpackage sentinels to the engine taxonomy.
func mapTokenErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrRevoked):
		return ErrTokenRevoked
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrReused), errors.Is(err, token.ErrRefreshInvalid):
		return ErrRefreshInvalid
	case errors.Is(err, token.ErrRefreshExpired):
		return ErrRefreshExpired
	case errors.Is(err, token.ErrUnavailable):
		return mapStoreErr(err)
	case errors.Is(err, token.ErrInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}
