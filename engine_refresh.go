package authcore

import (
	"context"
	"errors"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/session"
	"github.com/halcyondev/authcore/token"
)

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair bound to the same session is issued. Each refresh token
// therefore works exactly once.
//
// Presenting an already-rotated token is treated as theft evidence: the
// session it names is terminated and [ErrRefreshInvalid] is returned.
func (e *Engine) Refresh(ctx context.Context, refreshToken, ip string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrReused) && claims != nil {
			e.metrics.incRefreshReuse()
			e.emit(ctx, audit.Event{
				Action:    audit.ActionRefreshReuse,
				UserID:    claims.Subject,
				SessionID: claims.SessionID,
				IP:        ip,
				Error:     "rotated refresh token presented again",
			})
			if err := e.terminateSession(ctx, claims.SessionID); err != nil {
				return nil, err
			}
			return nil, ErrRefreshInvalid
		}
		return nil, mapTokenErr(err)
	}

	// A refresh token is only as alive as its session.
	if _, err := e.sessions.Get(ctx, claims.SessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, mapStoreErr(err)
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrRefreshInvalid
	}
	if err := e.statusGate(user); err != nil {
		return nil, err
	}

	// Revoke the consumed token before signing its successor, so no window
	// exists in which both can rotate.
	if err := e.tokens.Revoke(ctx, claims); err != nil {
		return nil, mapTokenErr(err)
	}

	pair, err := e.tokens.Issue(user.ID, user.Role, claims.SessionID)
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Touch(ctx, claims.SessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, mapStoreErr(err)
	}

	e.metrics.incRefresh()
	e.emit(ctx, audit.Event{Action: audit.ActionRefresh, UserID: user.ID, SessionID: claims.SessionID, IP: ip, Success: true})

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		SessionID:    claims.SessionID,
	}, nil
}
