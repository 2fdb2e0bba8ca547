package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDisabledMailerReturnsSentinel(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = mailer.Send(context.Background(), Message{To: []string{"a@b.com"}})
	if !errors.Is(err, ErrSMTPDisabled) {
		t.Fatalf("expected ErrSMTPDisabled, got %v", err)
	}
}

func TestEnabledMailerRequiresHostAndPort(t *testing.T) {
	if _, err := NewSMTPMailer(SMTPSettings{Enabled: true, Port: 587}); err == nil {
		t.Fatal("expected error for missing host")
	}
	if _, err := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"}); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestUniqueAddresses(t *testing.T) {
	out := uniqueAddresses([]string{" a@b.com ", "a@b.com", "", "c@d.com"})
	if len(out) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(out))
	}
	if out[0] != "a@b.com" || out[1] != "c@d.com" {
		t.Fatalf("unexpected addresses: %v", out)
	}
}

func TestFormatMessageHeaders(t *testing.T) {
	msg := formatMessage("noreply@pelada.app", []string{"x@y.com"}, "Convite\r\nInjected", "body")
	if want := "Subject: Convite Injected"; !strings.Contains(msg, want) {
		t.Fatalf("expected sanitised subject header in %q", msg)
	}
}
