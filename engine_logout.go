package authcore

import (
	"context"
	"errors"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/token"
)

// Logout ends the session behind an access token. The access token and, when
// supplied, the refresh token are revoked for their remaining lifetimes, the
// session record is destroyed, and its CSRF token is dropped.
//
// Logging out an already-dead session is not an error.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.tokens.VerifyAccess(ctx, accessToken, token.VerifyOptions{})
	if err != nil {
		return mapTokenErr(err)
	}

	if err := e.tokens.Revoke(ctx, claims); err != nil {
		return mapTokenErr(err)
	}

	if refreshToken != "" {
		refreshClaims, err := e.tokens.VerifyRefresh(ctx, refreshToken)
		if err == nil {
			if err := e.tokens.Revoke(ctx, refreshClaims); err != nil {
				return mapTokenErr(err)
			}
		} else if !errors.Is(err, token.ErrRefreshExpired) &&
			!errors.Is(err, token.ErrRefreshInvalid) &&
			!errors.Is(err, token.ErrReused) {
			return mapTokenErr(err)
		}
	}

	if err := e.terminateSession(ctx, claims.SessionID); err != nil {
		return err
	}

	e.metrics.incLogout()
	e.emit(ctx, audit.Event{Action: audit.ActionLogout, UserID: claims.Subject, SessionID: claims.SessionID, Success: true})
	return nil
}

// TerminateSession force-ends one session by id, for admin tooling and
// "log out that device" surfaces. Tokens already issued against the session
// keep verifying until expiry, but fail session-checked authentication
// immediately.
func (e *Engine) TerminateSession(ctx context.Context, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.terminateSession(ctx, sessionID)
}

// TerminateAllSessions force-ends every session the user has.
func (e *Engine) TerminateAllSessions(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	// Walk the index first so each session's CSRF token goes with it.
	live, err := e.sessions.List(ctx, userID)
	if err != nil {
		return mapStoreErr(err)
	}
	for _, sess := range live {
		if err := e.secrets.DropCSRF(ctx, sess.ID); err != nil {
			return mapStoreErr(err)
		}
	}
	if err := e.sessions.DestroyAll(ctx, userID); err != nil {
		return mapStoreErr(err)
	}

	e.emit(ctx, audit.Event{Action: audit.ActionLogoutAll, UserID: userID, Success: true})
	return nil
}

func (e *Engine) terminateSession(ctx context.Context, sessionID string) error {
	if err := e.secrets.DropCSRF(ctx, sessionID); err != nil {
		return mapStoreErr(err)
	}
	if err := e.sessions.Destroy(ctx, sessionID); err != nil {
		return mapStoreErr(err)
	}
	return nil
}
