package authcore

import (
	"context"
	"errors"

	"github.com/halcyondev/authcore/audit"
	"github.com/halcyondev/authcore/onetime"
)

// NotificationEmailVerification is the Notification.Kind for verification
// tokens.
const NotificationEmailVerification = "email_verification"

// RequestEmailVerification issues a single-use verification token for the
// account and hands it to the notifier. Unknown identifiers and already
// verified accounts succeed silently.
func (e *Engine) RequestEmailVerification(ctx context.Context, identifier string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.notifier == nil {
		return errors.New("email verification requires a notifier")
	}

	user, err := e.lookupUser(ctx, identifier)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}

	tok, err := e.secrets.Issue(ctx, onetime.PurposeEmailVerification, user.ID, e.config.OneTime.VerificationTTL)
	if err != nil {
		return mapStoreErr(err)
	}

	return e.notifier.Send(ctx, Notification{
		Kind:  NotificationEmailVerification,
		Email: user.Email,
		Token: tok,
	})
}

// ConfirmEmailVerification redeems a verification token and marks the bound
// account's email as verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, verifyToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	userID, err := e.secrets.Redeem(ctx, onetime.PurposeEmailVerification, verifyToken)
	if err != nil {
		if errors.Is(err, onetime.ErrNotFound) {
			return ErrOneTimeTokenInvalid
		}
		return mapStoreErr(err)
	}

	if err := e.users.MarkEmailVerified(ctx, userID); err != nil {
		return err
	}

	e.metrics.incVerification()
	e.emit(ctx, audit.Event{Action: audit.ActionEmailVerified, UserID: userID, Success: true})
	return nil
}
