package twofactor

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

// Config tunes TOTP generation and verification.
type Config struct {
	// Issuer is embedded in provisioning URIs shown to authenticator apps.
	Issuer string
	// Digits is the code length, normally 6.
	Digits int
	// Period is the time-step size in seconds, normally 30.
	Period int
	// Skew is the number of adjacent time steps accepted on either side of
	// the current one, absorbing clock drift between client and server.
	Skew int
	// Algorithm selects the HMAC hash: SHA1 (default), SHA256 or SHA512.
	Algorithm string
}

// DefaultConfig returns the interoperable defaults: 6 digits, 30-second
// steps, +/-2 steps of skew, HMAC-SHA1.
func DefaultConfig(issuer string) Config {
	return Config{
		Issuer:    issuer,
		Digits:    6,
		Period:    30,
		Skew:      2,
		Algorithm: "SHA1",
	}
}

// TOTP generates secrets, provisioning URIs, and verifies codes.
type TOTP struct {
	config Config
}

// New returns a TOTP manager, filling in zero-valued config fields with the
// defaults.
func New(cfg Config) *TOTP {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &TOTP{config: cfg}
}

// GenerateSecret returns a fresh 160-bit shared secret and its unpadded
// base32 form for manual entry.
func (t *TOTP) GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw), nil
}

// DecodeSecret parses a base32 secret as produced by [TOTP.GenerateSecret].
// Padding and case are tolerated.
func DecodeSecret(secretBase32 string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secretBase32), "="))
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
}

// ProvisionURI builds the otpauth:// URI that authenticator apps consume,
// labeled issuer:account.
func (t *TOTP) ProvisionURI(secretBase32, account string) string {
	label := url.PathEscape(t.config.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", t.config.Issuer)
	v.Set("period", strconv.Itoa(t.config.Period))
	v.Set("digits", strconv.Itoa(t.config.Digits))
	v.Set("algorithm", strings.ToUpper(t.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode checks code against the secret at the given instant, scanning
// the configured skew window. On success it returns the matched time-step
// counter so callers can reject replays of the same step.
func (t *TOTP) VerifyCode(secret []byte, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != t.config.Digits || !allDigits(trimmed) {
		return false, 0, nil
	}
	if len(secret) == 0 {
		return false, 0, errors.New("empty totp secret")
	}

	base := now.Unix() / int64(t.config.Period)
	for step := -t.config.Skew; step <= t.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		expected, err := hotp(secret, counter, t.config.Digits, t.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}

	return false, 0, nil
}

// GenerateCode produces the code for the time step containing now, as an
// authenticator app would.
func (t *TOTP) GenerateCode(secret []byte, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty totp secret")
	}
	return hotp(secret, now.Unix()/int64(t.config.Period), t.config.Digits, t.config.Algorithm)
}

func hotp(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacHash(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacHash(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
