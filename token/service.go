package token

import (
	"context"
	"errors"
	"time"
)

// Pair is an access/refresh token pair issued together for one session.
type Pair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
	// RefreshClaims are the claims signed into the refresh token, kept so
	// the issuer can later revoke it by jti.
	RefreshClaims *Claims
}

// VerifyOptions controls optional checks during access verification.
type VerifyOptions struct {
	// CheckRevoked consults the revocation store in addition to the
	// signature and expiry checks.
	CheckRevoked bool
}

// ServiceConfig carries the two signer configurations. The two private keys
// must differ; a shared key would collapse the access/refresh boundary.
type ServiceConfig struct {
	Access  ManagerConfig
	Refresh ManagerConfig
}

// Service issues token pairs bound to sessions, verifies both classes, and
// manages revocation records.
type Service struct {
	access  *Manager
	refresh *Manager
	revoked *Revocations
}

// NewService builds the two signers and wires the revocation store.
func NewService(cfg ServiceConfig, revoked *Revocations) (*Service, error) {
	if cfg.Access.TTL >= cfg.Refresh.TTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if string(cfg.Access.PrivateKey) == string(cfg.Refresh.PrivateKey) {
		return nil, errors.New("access and refresh keys must be distinct")
	}

	access, err := NewManager(cfg.Access)
	if err != nil {
		return nil, err
	}
	refresh, err := NewManager(cfg.Refresh)
	if err != nil {
		return nil, err
	}

	return &Service{access: access, refresh: refresh, revoked: revoked}, nil
}

// SetTimeFunc overrides the clock used when signing and validating both
// token classes. Useful for tests and replaying recorded traffic.
func (s *Service) SetTimeFunc(now func() time.Time) {
	s.access.now = now
	s.refresh.now = now
}

// Issue signs a fresh pair for the subject bound to sessionID.
func (s *Service) Issue(subject, role, sessionID string) (*Pair, error) {
	accessToken, _, err := s.access.Sign(subject, role, sessionID)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshClaims, err := s.refresh.Sign(subject, role, sessionID)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresIn:     int64(s.access.TTL() / time.Second),
		RefreshClaims: refreshClaims,
	}, nil
}

// VerifyAccess validates an access token and returns its claims. Failures
// map to [ErrExpired], [ErrInvalid], or, with CheckRevoked, [ErrRevoked].
func (s *Service) VerifyAccess(ctx context.Context, tokenStr string, opts VerifyOptions) (*Claims, error) {
	claims, err := s.access.Parse(tokenStr)
	if err != nil {
		return nil, err
	}

	if opts.CheckRevoked {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}

// VerifyRefresh validates a refresh token. The revocation check always runs:
// a revoked refresh token presented again is the rotation-replay signal and
// returns [ErrReused].
func (s *Service) VerifyRefresh(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := s.refresh.Parse(tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpired):
			return nil, ErrRefreshExpired
		default:
			return nil, ErrRefreshInvalid
		}
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		// The claims come back with the error so the caller can tear down
		// the session the reused token was bound to.
		return claims, ErrReused
	}

	return claims, nil
}

// Revoke records a revocation for the claims' jti lasting until the token's
// natural expiry.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalid
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
