// Package token issues and verifies the signed access/refresh token pairs
// bound to a session.
//
// Access and refresh tokens are both JWTs, signed with distinct keys so that
// compromise of one class does not compromise the other. Every token carries
// subject, role, session id, issuer, audience, issued-at, expiry and a unique
// jti; issuer and audience are enforced exactly on parse. Tokens are
// immutable once issued; rotation always means a brand-new pair.
//
// Revocation records live in Redis keyed by jti, with a TTL equal to the
// token's remaining natural lifetime: once the signature check alone would
// reject the token, the record has already evaporated, so revocation storage
// is self-bounding.
package token
