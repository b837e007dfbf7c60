package token

import "errors"

var (
	// ErrExpired is returned when an access token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for a bad signature, malformed claims, or an
	// issuer/audience mismatch on an access token.
	ErrInvalid = errors.New("token invalid")
	// ErrRevoked is returned when a token's jti has a live revocation record.
	ErrRevoked = errors.New("token revoked")
	// ErrRefreshExpired is returned when a refresh token is past its expiry.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrRefreshInvalid is returned for a bad signature, malformed claims,
	// or an issuer/audience mismatch on a refresh token.
	ErrRefreshInvalid = errors.New("refresh token invalid")
	// ErrReused is returned when an already-revoked refresh token is
	// presented again, the replay signal after rotation.
	ErrReused = errors.New("refresh token reuse detected")
	// ErrUnavailable indicates the revocation backend could not be reached.
	ErrUnavailable = errors.New("token backend unavailable")
)
