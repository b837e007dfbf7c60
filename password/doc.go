// Package password implements credential hashing for the authcore engine.
//
// Passwords are validated against a configurable [Policy] before any hashing
// work happens, then hashed with Argon2id into a self-describing PHC string.
// Every hash uses a fresh random salt, so two hashes of the same password
// never match. Verification is constant-time over the derived key.
//
// The package holds no shared state; a [Hasher] is safe for concurrent use.
package password
