// Package session tracks authenticated sessions in Redis.
//
// Each session is a compact binary blob keyed by an unguessable 256-bit id,
// with a per-user index set so that "destroy everything for this user" walks
// the index instead of scanning the keyspace. Expiry is enforced twice: by
// the Redis TTL and by the absolute expiry recorded in the blob, so an
// expired session is inert even if the record still physically exists.
package session

import (
	"crypto/rand"
	"encoding/base64"
)

const idBytes = 32

// Session is the server-side record of one authenticated context.
type Session struct {
	ID        string
	UserID    string
	IP        string
	UserAgent string
	CreatedAt int64
	LastSeen  int64
	// ExpiresAt is the absolute expiry. Sliding renewal on activity never
	// extends a session past this instant.
	ExpiresAt int64
}

// NewID returns a 256-bit random session id, base64url without padding.
func NewID() (string, error) {
	var raw [idBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
