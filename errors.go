package authcore

import (
	"errors"

	"github.com/halcyondev/authcore/limiter"
	"github.com/halcyondev/authcore/onetime"
	"github.com/halcyondev/authcore/session"
	"github.com/halcyondev/authcore/token"
)

var (
	// ErrInvalidCredential is returned when the identifier is unknown or the
	// password does not match. The two cases are deliberately
	// indistinguishable to callers.
	ErrInvalidCredential = errors.New("invalid credentials")
	// ErrLockedOut is returned when the login attempt budget for the
	// identifier or source address is exhausted.
	ErrLockedOut = errors.New("too many login attempts")
	// ErrInvalidPassword is returned when a candidate password violates the
	// configured password policy.
	ErrInvalidPassword = errors.New("password rejected by policy")
	// ErrTokenExpired is returned for a well-formed access token past its
	// expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed, tampered, or misaddressed
	// access tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned for a valid access token that has been
	// explicitly revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionNotFound is returned when a session id does not resolve to a
	// live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshExpired is returned for a refresh token past its expiry.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrRefreshInvalid is returned for malformed, tampered, reused, or
	// misaddressed refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrTwoFactorRequired signals that primary credentials were accepted
	// and the login must now be completed with a second factor.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrTwoFactorInvalid is returned for a wrong or replayed second factor.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrOneTimeTokenInvalid is returned for unknown, expired, or already
	// redeemed one-time tokens. The cases are indistinguishable.
	ErrOneTimeTokenInvalid = errors.New("invalid one-time token")
	// ErrStoreUnavailable is returned when the Redis backend cannot be
	// reached. It wraps the underlying error.
	ErrStoreUnavailable = errors.New("backend store unavailable")

	// ErrAccountDisabled is returned when the account exists but has been
	// administratively disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is returned when the account is administratively
	// locked.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountUnverified is returned when logins require a verified email
	// and the account has none.
	ErrAccountUnverified = errors.New("account email not verified")
	// ErrTwoFactorNotEnabled is returned by second-factor operations on an
	// account without two-factor auth configured.
	ErrTwoFactorNotEnabled = errors.New("two-factor auth not enabled")
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// mapStoreErr converts subpackage transport failures into the engine's
// ErrStoreUnavailable while preserving the detail text.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiter.ErrUnavailable),
		errors.Is(err, session.ErrUnavailable),
		errors.Is(err, token.ErrUnavailable),
		errors.Is(err, onetime.ErrUnavailable):
		return errors.Join(ErrStoreUnavailable, err)
	default:
		return err
	}
}
