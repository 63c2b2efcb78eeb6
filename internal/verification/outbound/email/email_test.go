package email

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/pkg/mail"
)

type fakeMail struct {
	sent []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMail) Close() error { return nil }

func TestMail_Send(t *testing.T) {
	// Arrange
	client := &fakeMail{}
	m := New(client, instrument.NewNoop(), "")

	// Act
	err := m.Send(context.Background(), "user@test.example.org", "Your OTP is 123456. The code is valid for 1 minute")

	// Assert
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.sent))
	}
	msg := client.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "user@test.example.org" {
		t.Fatalf("unexpected recipients %v", msg.To)
	}
	if msg.Subject != DefaultSubject {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.TextBody != "Your OTP is 123456. The code is valid for 1 minute" {
		t.Fatalf("unexpected body %q", msg.TextBody)
	}
}

func TestMail_SendError(t *testing.T) {
	errSMTP := errors.New("connection refused")
	m := New(&fakeMail{err: errSMTP}, instrument.NewNoop(), "OTP")

	if err := m.Send(context.Background(), "user@test.example.org", "body"); !errors.Is(err, errSMTP) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
