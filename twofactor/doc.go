// Package twofactor implements the second authentication factor: RFC 6238
// time-based one-time passwords and single-use backup codes.
//
// The TOTP core is a plain HOTP implementation (RFC 4226) driven by the
// current time step, with a configurable skew window to absorb clock drift.
// Code comparison is constant-time.
//
// Backup codes are issued in plaintext exactly once; only SHA-256 digests
// are ever stored. Consuming a code yields the reduced set, which the caller
// must persist; a backup code is a single-use secret by definition.
package twofactor
