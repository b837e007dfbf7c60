package password

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrPolicy is returned when a candidate password violates the active
// [Policy]. The check runs before any hashing work.
var ErrPolicy = errors.New("password policy violation")

// Policy describes the acceptance rules for candidate passwords.
// Lengths are measured in bytes, matching how the hash input is consumed.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy returns the policy applied when the caller configures none:
// 10..128 bytes with at least one letter and one digit.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:    10,
		MaxLength:    128,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Check validates a candidate password against the policy. The returned
// error wraps [ErrPolicy] and names the first violated rule.
func (p Policy) Check(candidate string) error {
	if len(candidate) < p.MinLength {
		return fmt.Errorf("%w: shorter than %d bytes", ErrPolicy, p.MinLength)
	}
	if p.MaxLength > 0 && len(candidate) > p.MaxLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrPolicy, p.MaxLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		return fmt.Errorf("%w: missing uppercase character", ErrPolicy)
	}
	if p.RequireLower && !hasLower {
		return fmt.Errorf("%w: missing lowercase character", ErrPolicy)
	}
	if p.RequireDigit && !hasDigit {
		return fmt.Errorf("%w: missing digit", ErrPolicy)
	}
	if p.RequireSpecial && !hasSpecial {
		return fmt.Errorf("%w: missing special character", ErrPolicy)
	}

	return nil
}
