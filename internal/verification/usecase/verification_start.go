package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/mailotp/internal/pkg/goerror"
	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/pkg/otp"
	"github.com/shandysiswandi/mailotp/internal/verification/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type StartVerificationOutput struct {
	PollInterval time.Duration
	MaxAttempts  int
	ExpiresAt    time.Time
}

// StartVerification starts a loop against the issued code. The loop runs on
// the module context so it outlives the request that started it.
func (s *Usecase) StartVerification(ctx context.Context) (*StartVerificationOutput, error) {
	ctx, span := s.startSpan(ctx, "StartVerification")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if _, done := s.current.Result(); !done {
			return nil, goerror.NewBusiness("verification in progress", goerror.CodeConflict)
		}
	}

	if err := s.repoQueue.Drain(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to drain candidate queue", "error", err)
		return nil, goerror.NewServer(err)
	}

	loopCtx := instrument.SetCorrelationID(s.ctx, instrument.GetCorrelationID(ctx))

	v, err := s.session.Verify(loopCtx, s.repoQueue)
	switch {
	case errors.Is(err, otp.ErrNotIssued):
		return nil, goerror.NewBusiness("no code issued", goerror.CodeConflict)
	case errors.Is(err, otp.ErrVerificationInProgress):
		return nil, goerror.NewBusiness("verification in progress", goerror.CodeConflict)
	case errors.Is(err, otp.ErrIssueInProgress):
		return nil, goerror.NewBusiness("issuance in progress", goerror.CodeConflict)
	case err != nil:
		slog.ErrorContext(ctx, "failed to start verification", "error", err)
		return nil, goerror.NewServer(err)
	}

	s.current = v
	email := s.email

	if !s.goroutine.Go(loopCtx, "verification.watch", func(ctx context.Context) error {
		return s.watch(ctx, v, email)
	}) {
		slog.WarnContext(ctx, "verification outcome will not be published", "email", email)
	}

	cfg := s.session.Config()
	slog.InfoContext(ctx, "otp verification started", "email", email, "expires_at", v.ExpiresAt())

	return &StartVerificationOutput{
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
		ExpiresAt:    v.ExpiresAt(),
	}, nil
}

// watch waits for v to resolve, then logs, counts and publishes the outcome.
func (s *Usecase) watch(ctx context.Context, v *otp.Verification, email string) error {
	<-v.Done()
	res, _ := v.Result()

	out := entity.Outcome{
		ID:          s.uuid.Generate(),
		Email:       email,
		Status:      res.Status,
		Attempts:    res.Attempts,
		MaxAttempts: s.session.Config().MaxAttempts,
		ResolvedAt:  s.clock.Now(),
	}
	if err := res.Err(); err != nil {
		out.Reason = err.Error()
	}

	if res.Status == otp.StatusMatched {
		slog.InfoContext(ctx, "otp verification resolved", "email", email, "status", res.Status.String(), "attempts", res.Attempts)
	} else {
		slog.WarnContext(ctx, "otp verification resolved", "email", email, "status", res.Status.String(), "attempts", res.Attempts, "reason", out.Reason)
	}

	if s.resolvedCounter != nil {
		s.resolvedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", res.Status.String())))
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.repoMessaging.PublishVerificationResolved(pubCtx, out); err != nil {
		slog.ErrorContext(ctx, "failed to publish verification outcome", "event_id", out.ID, "error", err)
		return err
	}

	return nil
}
