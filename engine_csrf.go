package authcore

import (
	"context"
	"errors"

	"github.com/halcyondev/authcore/onetime"
)

// CheckCSRF reports whether the presented CSRF token belongs to the session.
// A missing or mismatched token is (false, nil), not an error.
func (e *Engine) CheckCSRF(ctx context.Context, sessionID, csrfToken string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	ok, err := e.secrets.CheckCSRF(ctx, sessionID, csrfToken)
	if err != nil {
		return false, mapStoreErr(err)
	}
	return ok, nil
}

// RotateCSRF replaces the session's CSRF token, invalidating the previous
// one, and returns the new value.
func (e *Engine) RotateCSRF(ctx context.Context, sessionID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	tok, err := e.secrets.RotateCSRF(ctx, sessionID, e.csrfTTL())
	if err != nil {
		return "", mapStoreErr(err)
	}
	return tok, nil
}

// IssueOAuthState mints a single-use state value for a federated login
// round trip, bound to the given payload.
func (e *Engine) IssueOAuthState(ctx context.Context, payload string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	state, err := e.secrets.Issue(ctx, onetime.PurposeOAuthState, payload, e.config.OneTime.OAuthStateTTL)
	if err != nil {
		return "", mapStoreErr(err)
	}
	return state, nil
}

// RedeemOAuthState consumes a state value and returns the payload it was
// bound to. A state works exactly once.
func (e *Engine) RedeemOAuthState(ctx context.Context, state string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	payload, err := e.secrets.Redeem(ctx, onetime.PurposeOAuthState, state)
	if err != nil {
		if errors.Is(err, onetime.ErrNotFound) {
			return "", ErrOneTimeTokenInvalid
		}
		return "", mapStoreErr(err)
	}
	return payload, nil
}
