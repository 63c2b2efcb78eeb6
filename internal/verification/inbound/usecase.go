package inbound

import (
	"context"

	"github.com/shandysiswandi/mailotp/internal/verification/usecase"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error)
	StartVerification(ctx context.Context) (*usecase.StartVerificationOutput, error)
	SubmitCode(ctx context.Context, in usecase.SubmitCodeInput) error
	VerificationStatus(ctx context.Context) (*usecase.VerificationStatusOutput, error)
	CancelVerification(ctx context.Context) error
}
