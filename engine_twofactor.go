package authcore

import (
	"context"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/twofactor"
)

// ProvisionTwoFactor generates a TOTP secret and backup codes for the user
// and stores them in a pending state. The second factor is not enforced
// until [Engine.EnableTwoFactor] confirms the user's authenticator works.
//
// The returned backup codes appear in plaintext exactly once.
func (e *Engine) ProvisionTwoFactor(ctx context.Context, userID string) (*TwoFactorProvision, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}

	_, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	plaintexts, records, err := twofactor.GenerateBackupCodes(e.config.TwoFactor.BackupCodes)
	if err != nil {
		return nil, err
	}

	rec := &TwoFactorRecord{
		Secret:      secretBase32,
		Enabled:     false,
		BackupCodes: records,
	}
	if err := e.users.SaveTwoFactor(ctx, userID, rec); err != nil {
		return nil, err
	}

	return &TwoFactorProvision{
		Secret:      secretBase32,
		URI:         e.totp.ProvisionURI(secretBase32, user.Identifier),
		BackupCodes: plaintexts,
	}, nil
}

// EnableTwoFactor turns a pending provision into an enforced second factor
// once the user proves their authenticator produces valid codes.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	rec, err := e.users.GetTwoFactor(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil || rec.Secret == "" {
		return ErrTwoFactorNotEnabled
	}

	counter, err := e.verifyTOTP(rec, code)
	if err != nil {
		return err
	}

	rec.Enabled = true
	rec.LastCounter = counter
	if err := e.users.SaveTwoFactor(ctx, userID, rec); err != nil {
		return err
	}

	e.emit(ctx, audit.Event{Action: audit.ActionTwoFactorEnable, UserID: userID, Success: true})
	return nil
}

// DisableTwoFactor removes the second factor after a valid TOTP or backup
// code confirms control of the account.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCredential
	}

	if err := e.consumeSecondFactor(ctx, user, code, ""); err != nil {
		return err
	}
	if err := e.users.DeleteTwoFactor(ctx, userID); err != nil {
		return err
	}

	e.emit(ctx, audit.Event{Action: audit.ActionTwoFactorDisable, UserID: userID, Success: true})
	return nil
}

// RegenerateBackupCodes replaces the user's remaining backup codes with a
// fresh set after a valid TOTP code. The old codes stop working immediately.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	rec, err := e.users.GetTwoFactor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Enabled {
		return nil, ErrTwoFactorNotEnabled
	}

	counter, err := e.verifyTOTP(rec, code)
	if err != nil {
		return nil, err
	}

	plaintexts, records, err := twofactor.GenerateBackupCodes(e.config.TwoFactor.BackupCodes)
	if err != nil {
		return nil, err
	}

	rec.LastCounter = counter
	rec.BackupCodes = records
	if err := e.users.SaveTwoFactor(ctx, userID, rec); err != nil {
		return nil, err
	}

	return plaintexts, nil
}

// verifyTOTP checks a TOTP code against the record, enforcing the
// replay-protection counter. It returns the matched counter.
func (e *Engine) verifyTOTP(rec *TwoFactorRecord, code string) (int64, error) {
	secret, err := twofactor.DecodeSecret(rec.Secret)
	if err != nil {
		return 0, err
	}

	ok, counter, err := e.totp.VerifyCode(secret, code, e.now())
	if err != nil {
		return 0, err
	}
	if !ok || counter <= rec.LastCounter {
		e.metrics.incTwoFactorFail()
		return 0, ErrTwoFactorInvalid
	}
	return counter, nil
}
