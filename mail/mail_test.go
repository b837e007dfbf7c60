package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	authcore "github.com/halcyondev/authcore"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func capturingNotifier(cfg Config) (*Notifier, *sentMail) {
	n := New(cfg)
	sent := &sentMail{}
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*sent = sentMail{addr: addr, from: from, to: to, msg: string(msg)}
		return nil
	}
	return n, sent
}

func TestSendPasswordReset(t *testing.T) {
	n, sent := capturingNotifier(Config{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "no-reply@example.com",
		ResetURL: "https://example.com/reset?token=%s",
	})

	err := n.Send(context.Background(), authcore.Notification{
		Kind:  authcore.NotificationPasswordReset,
		Email: "alice@example.com",
		Token: "tok-123",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if sent.addr != "smtp.example.com:587" {
		t.Fatalf("addr = %q", sent.addr)
	}
	if len(sent.to) != 1 || sent.to[0] != "alice@example.com" {
		t.Fatalf("to = %v", sent.to)
	}
	if !strings.Contains(sent.msg, "https://example.com/reset?token=tok-123") {
		t.Fatalf("reset link missing:\n%s", sent.msg)
	}
	if !strings.Contains(sent.msg, "Subject: Reset your password") {
		t.Fatalf("subject missing:\n%s", sent.msg)
	}
}

func TestSendVerification(t *testing.T) {
	n, sent := capturingNotifier(Config{
		Host:      "smtp.example.com",
		Port:      25,
		From:      "no-reply@example.com",
		VerifyURL: "https://example.com/verify?token=%s",
	})

	err := n.Send(context.Background(), authcore.Notification{
		Kind:  authcore.NotificationEmailVerification,
		Email: "bob@example.com",
		Token: "tok-456",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(sent.msg, "https://example.com/verify?token=tok-456") {
		t.Fatalf("verify link missing:\n%s", sent.msg)
	}
}

func TestSendUnknownKind(t *testing.T) {
	n, _ := capturingNotifier(Config{Host: "smtp.example.com", Port: 25})

	err := n.Send(context.Background(), authcore.Notification{Kind: "carrier-pigeon"})
	if err == nil {
		t.Fatal("unknown kind accepted")
	}
}
