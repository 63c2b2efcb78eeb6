package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/mailotp/internal/pkg/goerror"
	"github.com/shandysiswandi/mailotp/internal/pkg/otp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type (
	IssueInput struct {
		Email string `validate:"required,max=254"`
	}

	IssueOutput struct {
		ExpiresAt time.Time
		ValidFor  time.Duration
	}
)

func (s *Usecase) Issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Email = strings.TrimSpace(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	issuedAt, err := s.session.Issue(ctx, in.Email)
	switch {
	case errors.Is(err, otp.ErrAddressInvalid):
		s.countIssued(ctx, "rejected")
		slog.WarnContext(ctx, "otp address rejected", "email", in.Email)
		return nil, goerror.NewBusiness("address rejected", goerror.CodeInvalidInput)
	case errors.Is(err, otp.ErrVerificationInProgress):
		s.countIssued(ctx, "conflict")
		return nil, goerror.NewBusiness("verification in progress", goerror.CodeConflict)
	case errors.Is(err, otp.ErrIssueInProgress):
		s.countIssued(ctx, "conflict")
		return nil, goerror.NewBusiness("issuance in progress", goerror.CodeConflict)
	case errors.Is(err, otp.ErrDeliveryFailed):
		s.countIssued(ctx, "delivery_failed")
		slog.ErrorContext(ctx, "failed to deliver otp", "email", in.Email, "error", err)
		return nil, goerror.NewUnavailable(err, "send failed")
	case err != nil:
		s.countIssued(ctx, "error")
		slog.ErrorContext(ctx, "failed to issue otp", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	s.countIssued(ctx, "sent")

	s.mu.Lock()
	s.email = in.Email
	s.mu.Unlock()

	cfg := s.session.Config()

	slog.InfoContext(ctx, "otp issued", "email", in.Email, "valid_for", cfg.ValidityWindow.String())

	return &IssueOutput{
		ExpiresAt: issuedAt.Add(cfg.ValidityWindow),
		ValidFor:  cfg.ValidityWindow,
	}, nil
}

func (s *Usecase) countIssued(ctx context.Context, result string) {
	if s.issuedCounter != nil {
		s.issuedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}
