package authcore

import (
	"context"

	"github.com/halcyondev/authcore/token"
	"github.com/halcyondev/authcore/twofactor"
)

// Claims re-exports the token claims type so most callers only import the
// root package.
type Claims = token.Claims

// AccountStatus gates whether an account may authenticate.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusDisabled AccountStatus = "disabled"
	StatusLocked   AccountStatus = "locked"
)

// UserRecord is the engine's view of an account. The engine never sees
// plaintext passwords at rest; PasswordHash is a PHC-format argon2id string.
type UserRecord struct {
	ID            string
	Identifier    string
	Email         string
	PasswordHash  string
	Role          string
	Status        AccountStatus
	EmailVerified bool
}

// TwoFactorRecord is the persisted second-factor state for one account.
type TwoFactorRecord struct {
	// Secret is the base32 TOTP secret. Stored only while provisioning or
	// enabled.
	Secret string
	// Enabled marks whether the second factor is enforced at login.
	// A record with a secret but Enabled false is mid-provisioning.
	Enabled bool
	// LastCounter is the highest accepted TOTP counter, kept so a code
	// cannot be replayed within its validity window.
	LastCounter int64
	// BackupCodes holds sha256 digests of the unused recovery codes.
	BackupCodes []twofactor.BackupCode
}

// UserProvider is the storage the host application supplies for account
// records. All methods must be safe for concurrent use.
type UserProvider interface {
	// GetUserByIdentifier resolves a login identifier (username or email).
	// Unknown identifiers return (nil, nil).
	GetUserByIdentifier(ctx context.Context, identifier string) (*UserRecord, error)
	// GetUserByID resolves an account id. Unknown ids return (nil, nil).
	GetUserByID(ctx context.Context, id string) (*UserRecord, error)
	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// MarkEmailVerified flips the verified flag for the account.
	MarkEmailVerified(ctx context.Context, id string) error
	// GetTwoFactor returns the account's second-factor record, or (nil, nil)
	// when none exists.
	GetTwoFactor(ctx context.Context, id string) (*TwoFactorRecord, error)
	// SaveTwoFactor persists the second-factor record, replacing any
	// previous one.
	SaveTwoFactor(ctx context.Context, id string, rec *TwoFactorRecord) error
	// DeleteTwoFactor removes the account's second-factor record.
	DeleteTwoFactor(ctx context.Context, id string) error
}

// Notification is an outbound message carrying a one-time secret to the
// account owner.
type Notification struct {
	// Kind is "password_reset" or "email_verification".
	Kind  string
	Email string
	// Token is the plaintext one-time token. It exists only in this message;
	// the engine stores a digest.
	Token string
}

// Notifier delivers notifications. Delivery failures are reported to the
// caller of the requesting operation.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LoginResult is the successful outcome of Login or CompleteTwoFactorLogin.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
	SessionID string
	// CSRFToken is issued alongside the session when CSRF protection is
	// enabled, empty otherwise.
	CSRFToken string
}

// TwoFactorProvision is returned when setting up a second factor. The
// backup codes appear in plaintext exactly once, here.
type TwoFactorProvision struct {
	Secret      string
	URI         string
	BackupCodes []string
}
