package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/mailotp/internal/pkg/goerror"
	"github.com/shandysiswandi/mailotp/internal/verification/entity"
)

type SubmitCodeInput struct {
	Code string `validate:"required,otpcode"`
}

// SubmitCode hands a candidate to the running verification loop. It does not
// wait for the comparison; the outcome is read through VerificationStatus.
func (s *Usecase) SubmitCode(ctx context.Context, in SubmitCodeInput) error {
	ctx, span := s.startSpan(ctx, "SubmitCode")
	defer span.End()

	in.Code = strings.TrimSpace(in.Code)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if s.polling() == nil {
		return goerror.NewBusiness("no verification in progress", goerror.CodeConflict)
	}

	err := s.repoQueue.Push(ctx, in.Code)
	if errors.Is(err, entity.ErrCandidatePending) {
		return goerror.NewBusiness("a code is already waiting to be checked", goerror.CodeTooManyRequest)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to push candidate code", "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
