package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// PasswordConfig tunes the policy and the argon2id parameters.
type PasswordConfig struct {
	MinLength      int  `koanf:"min_length" validate:"min=1,ltefield=MaxLength"`
	MaxLength      int  `koanf:"max_length" validate:"max=1024"`
	RequireUpper   bool `koanf:"require_upper"`
	RequireLower   bool `koanf:"require_lower"`
	RequireDigit   bool `koanf:"require_digit"`
	RequireSpecial bool `koanf:"require_special"`

	Memory      uint32 `koanf:"memory" validate:"min=8192"`
	Time        uint32 `koanf:"time" validate:"min=1"`
	Parallelism uint8  `koanf:"parallelism" validate:"min=1"`
	SaltLength  uint32 `koanf:"salt_length" validate:"min=8"`
	KeyLength   uint32 `koanf:"key_length" validate:"min=16"`
}

// LimiterConfig tunes the login attempt limiter.
type LimiterConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1"`
	Window      time.Duration `koanf:"window" validate:"gt=0"`
	TrackIP     bool          `koanf:"track_ip"`
}

// SessionConfig tunes session lifetimes.
type SessionConfig struct {
	Prefix           string        `koanf:"prefix"`
	AbsoluteLifetime time.Duration `koanf:"absolute_lifetime" validate:"gt=0"`
	SlidingLifetime  time.Duration `koanf:"sliding_lifetime" validate:"min=0"`
	MaxPerUser       int           `koanf:"max_per_user" validate:"min=0"`
}

// TokenConfig tunes the access/refresh signers. The two secrets must differ.
type TokenConfig struct {
	Issuer   string `koanf:"issuer" validate:"required"`
	Audience string `koanf:"audience" validate:"required"`
	// SigningMethod is "hs256" or "ed25519".
	SigningMethod string        `koanf:"signing_method" validate:"oneof=hs256 ed25519"`
	AccessTTL     time.Duration `koanf:"access_ttl" validate:"gt=0"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl" validate:"gtfield=AccessTTL"`
	Leeway        time.Duration `koanf:"leeway" validate:"min=0,max=2m"`
	// AccessSecret and RefreshSecret are the signing keys: raw secrets for
	// hs256, base64 32-byte seeds for ed25519.
	AccessSecret  string `koanf:"access_secret" validate:"required,nefield=RefreshSecret"`
	RefreshSecret string `koanf:"refresh_secret" validate:"required"`
}

// TwoFactorConfig tunes TOTP verification and backup codes.
type TwoFactorConfig struct {
	Issuer      string `koanf:"issuer" validate:"required"`
	Digits      int    `koanf:"digits" validate:"oneof=6 8"`
	Period      int    `koanf:"period" validate:"min=15,max=120"`
	Skew        int    `koanf:"skew" validate:"min=0,max=2"`
	BackupCodes int    `koanf:"backup_codes" validate:"min=0,max=32"`
}

// OneTimeConfig tunes one-time token lifetimes.
type OneTimeConfig struct {
	Prefix          string        `koanf:"prefix"`
	ResetTTL        time.Duration `koanf:"reset_ttl" validate:"gt=0"`
	VerificationTTL time.Duration `koanf:"verification_ttl" validate:"gt=0"`
	OAuthStateTTL   time.Duration `koanf:"oauth_state_ttl" validate:"gt=0"`
}

// CSRFConfig tunes the session-bound CSRF tokens.
type CSRFConfig struct {
	Enabled bool          `koanf:"enabled"`
	TTL     time.Duration `koanf:"ttl"`
}

// AuditConfig tunes the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size" validate:"min=0"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// Config is the engine configuration tree.
type Config struct {
	Password  PasswordConfig  `koanf:"password"`
	Limiter   LimiterConfig   `koanf:"limiter"`
	Session   SessionConfig   `koanf:"session"`
	Token     TokenConfig     `koanf:"token"`
	TwoFactor TwoFactorConfig `koanf:"two_factor"`
	OneTime   OneTimeConfig   `koanf:"one_time"`
	CSRF      CSRFConfig      `koanf:"csrf"`
	Audit     AuditConfig     `koanf:"audit"`

	// RequireVerifiedEmail refuses logins for accounts whose email has not
	// been verified.
	RequireVerifiedEmail bool `koanf:"require_verified_email"`
}

// DefaultConfig returns a working configuration. Token secrets and issuers
// are deliberately empty; the caller must supply them.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			MinLength:    10,
			MaxLength:    128,
			RequireLower: true,
			RequireDigit: true,
			Memory:       64 * 1024,
			Time:         2,
			Parallelism:  2,
			SaltLength:   16,
			KeyLength:    32,
		},
		Limiter: LimiterConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			TrackIP:     true,
		},
		Session: SessionConfig{
			Prefix:           "ases",
			AbsoluteLifetime: 24 * time.Hour,
			SlidingLifetime:  2 * time.Hour,
		},
		Token: TokenConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		TwoFactor: TwoFactorConfig{
			Digits:      6,
			Period:      30,
			Skew:        2,
			BackupCodes: 10,
		},
		OneTime: OneTimeConfig{
			Prefix:          "aot",
			ResetTTL:        30 * time.Minute,
			VerificationTTL: 24 * time.Hour,
			OAuthStateTTL:   10 * time.Minute,
		},
		CSRF: CSRFConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: field %s fails %q", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if c.Session.SlidingLifetime > c.Session.AbsoluteLifetime {
		return fmt.Errorf("config: session sliding lifetime exceeds absolute lifetime")
	}
	return nil
}
