package mail

import (
	"context"
	"log/slog"
)

// Log is a Mail implementation that writes messages to the default logger
// instead of sending them. Used with driver "log" for local runs.
type Log struct{}

// NewLog returns a Log mailer.
func NewLog() *Log {
	return &Log{}
}

// Send logs the message and always succeeds unless ctx is done.
func (*Log) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(msg.To)+len(msg.Cc)+len(msg.Bcc) == 0 {
		return ErrSMTPNoRecipients
	}

	slog.InfoContext(ctx, "mail not sent, log driver active",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)

	return nil
}

// Close implements io.Closer.
func (*Log) Close() error {
	return nil
}
