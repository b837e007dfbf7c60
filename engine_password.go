package authcore

import (
	"context"
	"errors"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/onetime"
	"github.com/halcyondev/authcore/password"
)

// NotificationPasswordReset is the Notification.Kind for reset tokens.
const NotificationPasswordReset = "password_reset"

// RequestPasswordReset issues a single-use reset token and hands it to the
// notifier. Unknown identifiers succeed silently so the endpoint cannot be
// used to probe which accounts exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.notifier == nil {
		return errors.New("password reset requires a notifier")
	}

	user, err := e.lookupUser(ctx, identifier)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	tok, err := e.secrets.Issue(ctx, onetime.PurposePasswordReset, user.ID, e.config.OneTime.ResetTTL)
	if err != nil {
		return mapStoreErr(err)
	}

	return e.notifier.Send(ctx, Notification{
		Kind:  NotificationPasswordReset,
		Email: user.Email,
		Token: tok,
	})
}

// ConfirmPasswordReset redeems a reset token and installs the new password.
// The policy is checked before the token is consumed, so a rejected password
// leaves the token redeemable. Every session of the account is terminated.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return errors.Join(ErrInvalidPassword, err)
		}
		return err
	}

	userID, err := e.secrets.Redeem(ctx, onetime.PurposePasswordReset, resetToken)
	if err != nil {
		if errors.Is(err, onetime.ErrNotFound) {
			return ErrOneTimeTokenInvalid
		}
		return mapStoreErr(err)
	}

	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	// A reset proves the old credential may be compromised; nothing issued
	// under it survives.
	if err := e.TerminateAllSessions(ctx, userID); err != nil {
		return err
	}

	e.metrics.incPasswordReset()
	e.emit(ctx, audit.Event{Action: audit.ActionPasswordReset, UserID: userID, Success: true})
	return nil
}

// ChangePassword replaces the password for a logged-in user after
// re-verifying the current one. All sessions are terminated; the caller must
// log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
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

	ok, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredential
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return errors.Join(ErrInvalidPassword, err)
		}
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	if err := e.TerminateAllSessions(ctx, userID); err != nil {
		return err
	}

	e.emit(ctx, audit.Event{Action: audit.ActionPasswordChange, UserID: userID, Success: true})
	return nil
}
