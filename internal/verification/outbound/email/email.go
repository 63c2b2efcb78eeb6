package email

import (
	"context"

	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/pkg/mail"
	"go.opentelemetry.io/otel/codes"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "Your one-time passcode"

// Mail delivers OTP bodies through a mail.Mail client.
type Mail struct {
	client  mail.Mail
	ins     instrument.Instrumentation
	subject string
}

func New(client mail.Mail, ins instrument.Instrumentation, subject string) *Mail {
	if subject == "" {
		subject = DefaultSubject
	}

	return &Mail{client: client, ins: ins, subject: subject}
}

func (m *Mail) Send(ctx context.Context, address, body string) error {
	ctx, span := m.ins.Tracer("verification.outbound.email").Start(ctx, "Send")
	defer span.End()

	if err := m.client.Send(ctx, mail.Message{
		To:       []string{address},
		Subject:  m.subject,
		TextBody: body,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
