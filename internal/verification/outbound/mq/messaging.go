package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/pkg/messaging"
	"github.com/shandysiswandi/mailotp/internal/shared/event"
	"github.com/shandysiswandi/mailotp/internal/verification/entity"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

const (
	publishRetries     = 2
	publishBaseBackoff = 100 * time.Millisecond
)

type Messaging struct {
	client  messaging.Publisher
	ins     instrument.Instrumentation
	backoff func() retry.Backoff
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{
		client: client,
		ins:    ins,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(publishRetries, retry.NewExponential(publishBaseBackoff))
		},
	}
}

func (m *Messaging) PublishVerificationResolved(ctx context.Context, out entity.Outcome) error {
	ctx, span := m.ins.Tracer("verification.outbound.mq").Start(ctx, "PublishVerificationResolved")
	defer span.End()

	body, err := json.Marshal(event.OTPVerificationResolvedMessage{
		EventID:     out.ID,
		Email:       out.Email,
		Status:      out.Status.String(),
		Attempts:    out.Attempts,
		MaxAttempts: out.MaxAttempts,
		Reason:      out.Reason,
		ResolvedAt:  out.ResolvedAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	msg := messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(out.ID),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(instrument.GetCorrelationID(ctx))}},
	}

	if err := retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		if _, err := m.client.Publish(ctx, event.OTPVerificationResolvedDestination, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
