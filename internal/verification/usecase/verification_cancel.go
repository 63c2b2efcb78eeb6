package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/mailotp/internal/pkg/goerror"
)

func (s *Usecase) CancelVerification(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "CancelVerification")
	defer span.End()

	v := s.polling()
	if v == nil {
		return goerror.NewBusiness("no verification in progress", goerror.CodeConflict)
	}

	v.Cancel()
	slog.InfoContext(ctx, "otp verification cancelled", "attempts", v.Attempts())

	return nil
}
