// Package mail delivers the engine's notifications over SMTP, plus a logging
// notifier for development setups without a mail relay.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	authcore "github.com/halcyondev/authcore"
)

// Config locates the SMTP relay.
type Config struct {
	Host string
	Port int
	// Username and Password enable PLAIN auth when both are set.
	Username string
	Password string
	// From is the envelope and header sender.
	From string
	// ResetURL and VerifyURL are formatted with the token as the single
	// argument, e.g. "https://example.com/reset?token=%s".
	ResetURL  string
	VerifyURL string
}

// Notifier sends one plain-text message per notification.
type Notifier struct {
	config Config
	// send is swapped in tests; it defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New returns an SMTP-backed [authcore.Notifier].
func New(cfg Config) *Notifier {
	return &Notifier{config: cfg, send: smtp.SendMail}
}

func (n *Notifier) Send(_ context.Context, notification authcore.Notification) error {
	subject, body, err := n.compose(notification)
	if err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + n.config.From,
		"To: " + notification.Email,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
		"",
	}, "\r\n")

	var auth smtp.Auth
	if n.config.Username != "" && n.config.Password != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	if err := n.send(addr, auth, n.config.From, []string{notification.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (n *Notifier) compose(notification authcore.Notification) (subject, body string, err error) {
	switch notification.Kind {
	case authcore.NotificationPasswordReset:
		link := fmt.Sprintf(n.config.ResetURL, notification.Token)
		return "Reset your password",
			"A password reset was requested for your account.\r\n\r\n" +
				"Reset link: " + link + "\r\n\r\n" +
				"If you did not request this, you can ignore this message.",
			nil
	case authcore.NotificationEmailVerification:
		link := fmt.Sprintf(n.config.VerifyURL, notification.Token)
		return "Verify your email address",
			"Confirm this address to finish setting up your account.\r\n\r\n" +
				"Verification link: " + link,
			nil
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", notification.Kind)
	}
}

// LogNotifier writes notifications to a structured logger instead of
// sending them. For development only: the token lands in the log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(ctx context.Context, n authcore.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		slog.String("kind", n.Kind),
		slog.String("email", n.Email),
		slog.String("token", n.Token),
	)
	return nil
}
