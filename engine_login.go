package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/onetime"
	"github.com/halcyondev/authcore/password"
	"github.com/halcyondev/authcore/twofactor"
)

// twoFactorChallengeTTL bounds how long a password-verified login may wait
// for its second factor.
const twoFactorChallengeTTL = 5 * time.Minute

// TwoFactorChallengeError carries the single-use challenge token a client
// must present to CompleteTwoFactorLogin. It unwraps to
// [ErrTwoFactorRequired].
type TwoFactorChallengeError struct {
	Challenge string
}

func (e *TwoFactorChallengeError) Error() string { return ErrTwoFactorRequired.Error() }

func (e *TwoFactorChallengeError) Unwrap() error { return ErrTwoFactorRequired }

// Login verifies primary credentials and, when no second factor is enabled,
// establishes a session and returns its token pair.
//
// Unknown identifiers and wrong passwords are indistinguishable: both cost
// one argon2 verification and both return [ErrInvalidCredential]. When the
// account has two-factor auth enabled, Login returns a
// [*TwoFactorChallengeError] instead of a result and no session exists until
// [Engine.CompleteTwoFactorLogin] succeeds.
func (e *Engine) Login(ctx context.Context, identifier, passwd, ip, userAgent string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	allowed, _, err := e.limiter.CheckAttempt(ctx, identifier, ip)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !allowed {
		e.metrics.incLockout()
		e.emit(ctx, audit.Event{Action: audit.ActionLockout, IP: ip, Error: ErrLockedOut.Error()})
		return nil, ErrLockedOut
	}

	user, err := e.lookupUser(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_, _ = e.hasher.Verify(passwd, e.dummyHash)
		e.metrics.incLoginFailure()
		return nil, ErrInvalidCredential
	}

	ok, err := e.hasher.Verify(passwd, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metrics.incLoginFailure()
		e.emit(ctx, audit.Event{Action: audit.ActionLogin, UserID: user.ID, IP: ip, Error: ErrInvalidCredential.Error()})
		return nil, ErrInvalidCredential
	}

	if err := e.statusGate(user); err != nil {
		e.emit(ctx, audit.Event{Action: audit.ActionLogin, UserID: user.ID, IP: ip, Error: err.Error()})
		return nil, err
	}

	if err := e.maybeUpgradeHash(ctx, user, passwd); err != nil {
		return nil, err
	}

	rec, err := e.users.GetTwoFactor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Enabled {
		challenge, err := e.secrets.Issue(ctx, onetime.PurposeTwoFactorLogin, user.ID, twoFactorChallengeTTL)
		if err != nil {
			return nil, mapStoreErr(err)
		}
		return nil, &TwoFactorChallengeError{Challenge: challenge}
	}

	return e.finishLogin(ctx, user, ip, userAgent)
}

// CompleteTwoFactorLogin trades a login challenge plus a valid TOTP or
// backup code for a session. The challenge is consumed on the attempt, so a
// failed code sends the client back to Login.
func (e *Engine) CompleteTwoFactorLogin(ctx context.Context, challenge, code, ip, userAgent string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	userID, err := e.secrets.Redeem(ctx, onetime.PurposeTwoFactorLogin, challenge)
	if err != nil {
		if errors.Is(err, onetime.ErrNotFound) {
			e.metrics.incTwoFactorFail()
			return nil, ErrTwoFactorInvalid
		}
		return nil, mapStoreErr(err)
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := e.statusGate(user); err != nil {
		return nil, err
	}

	if err := e.consumeSecondFactor(ctx, user, code, ip); err != nil {
		return nil, err
	}

	res, err := e.finishLogin(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	e.emit(ctx, audit.Event{Action: audit.ActionLoginTwoFactor, UserID: user.ID, IP: ip, Success: true})
	return res, nil
}

// consumeSecondFactor accepts either a TOTP code or a backup code. TOTP
// replays within the skew window are rejected by the persisted counter;
// backup codes are removed from the record on use.
func (e *Engine) consumeSecondFactor(ctx context.Context, user *UserRecord, code string, ip string) error {
	rec, err := e.users.GetTwoFactor(ctx, user.ID)
	if err != nil {
		return err
	}
	if rec == nil || !rec.Enabled {
		return ErrTwoFactorNotEnabled
	}

	if twofactor.IsBackupCodeShape(code) {
		remaining, ok := twofactor.ConsumeBackupCode(code, rec.BackupCodes)
		if !ok {
			e.metrics.incTwoFactorFail()
			return ErrTwoFactorInvalid
		}
		rec.BackupCodes = remaining
		if err := e.users.SaveTwoFactor(ctx, user.ID, rec); err != nil {
			return err
		}
		e.emit(ctx, audit.Event{Action: audit.ActionBackupCodeUsed, UserID: user.ID, IP: ip, Success: true})
		return nil
	}

	secret, err := twofactor.DecodeSecret(rec.Secret)
	if err != nil {
		return err
	}
	ok, counter, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil {
		return err
	}
	if !ok || counter <= rec.LastCounter {
		e.metrics.incTwoFactorFail()
		return ErrTwoFactorInvalid
	}

	rec.LastCounter = counter
	return e.users.SaveTwoFactor(ctx, user.ID, rec)
}

// finishLogin creates the session, its CSRF token when enabled, and the
// token pair, then clears the attempt counters.
func (e *Engine) finishLogin(ctx context.Context, user *UserRecord, ip, userAgent string) (*LoginResult, error) {
	sess, err := e.sessions.Create(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	csrfToken := ""
	if e.config.CSRF.Enabled {
		csrfToken, err = e.secrets.RotateCSRF(ctx, sess.ID, e.csrfTTL())
		if err != nil {
			return nil, mapStoreErr(err)
		}
	}

	pair, err := e.tokens.Issue(user.ID, user.Role, sess.ID)
	if err != nil {
		return nil, err
	}

	if err := e.limiter.Reset(ctx, user.Identifier, ip); err != nil {
		return nil, mapStoreErr(err)
	}

	e.metrics.incLogin()
	e.emit(ctx, audit.Event{Action: audit.ActionLogin, UserID: user.ID, SessionID: sess.ID, IP: ip, Success: true})

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		SessionID:    sess.ID,
		CSRFToken:    csrfToken,
	}, nil
}

// maybeUpgradeHash rehashes the verified password when the stored hash was
// produced with weaker parameters than currently configured.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *UserRecord, passwd string) error {
	upgrade, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return err
	}

	rehashed, err := e.hasher.Hash(passwd)
	if err != nil {
		// The password already cleared verification; a policy mismatch on
		// rehash must not fail the login.
		if errors.Is(err, password.ErrPolicy) {
			return nil
		}
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, rehashed); err != nil {
		return err
	}
	user.PasswordHash = rehashed
	e.metrics.incHashUpgrade()
	return nil
}

func (e *Engine) csrfTTL() time.Duration {
	if e.config.CSRF.TTL > 0 {
		return e.config.CSRF.TTL
	}
	return e.config.Session.AbsoluteLifetime
}
