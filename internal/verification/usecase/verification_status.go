package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/mailotp/internal/verification/entity"
)

type VerificationStatusOutput struct {
	Status      string
	Message     string
	Attempts    int
	MaxAttempts int
	ExpiresAt   time.Time
}

func (s *Usecase) VerificationStatus(ctx context.Context) (*VerificationStatusOutput, error) {
	_, span := s.startSpan(ctx, "VerificationStatus")
	defer span.End()

	s.mu.Lock()
	v := s.current
	s.mu.Unlock()

	out := &VerificationStatusOutput{MaxAttempts: s.session.Config().MaxAttempts}
	if v == nil {
		out.Status = entity.StatusIdle
		out.Message = entity.MessageIdle
		return out, nil
	}

	res, _ := v.Result()
	out.Status = res.Status.String()
	out.Message = entity.StatusMessage(res.Status)
	out.Attempts = res.Attempts
	out.ExpiresAt = v.ExpiresAt()

	return out, nil
}
