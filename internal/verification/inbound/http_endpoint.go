package inbound

import (
	"github.com/shandysiswandi/mailotp/internal/pkg/router"
	"github.com/shandysiswandi/mailotp/internal/verification/usecase"
)

type HTTPEndpoint struct {
	uc uc
}

// Issue sends a new code to the given address.
func (h *HTTPEndpoint) Issue(r *router.Request) (any, error) {
	var req IssueRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Issue(r.Context(), usecase.IssueInput{Email: req.Email})
	if err != nil {
		return nil, err
	}

	return IssueResponse{
		ExpiresAt:       out.ExpiresAt,
		ValidForSeconds: int64(out.ValidFor.Seconds()),
	}, nil
}

// StartVerification starts polling for the issued code. It answers 202
// immediately; the outcome is read from VerificationStatus.
func (h *HTTPEndpoint) StartVerification(r *router.Request) (any, error) {
	out, err := h.uc.StartVerification(r.Context())
	if err != nil {
		return nil, err
	}

	return StartVerificationResponse{
		PollIntervalMS: out.PollInterval.Milliseconds(),
		MaxAttempts:    out.MaxAttempts,
		ExpiresAt:      out.ExpiresAt,
	}, nil
}

func (h *HTTPEndpoint) SubmitCode(r *router.Request) (any, error) {
	var req SubmitCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.SubmitCode(r.Context(), usecase.SubmitCodeInput{Code: req.Code}); err != nil {
		return nil, err
	}

	return SubmitCodeResponse{Accepted: true}, nil
}

func (h *HTTPEndpoint) VerificationStatus(r *router.Request) (any, error) {
	out, err := h.uc.VerificationStatus(r.Context())
	if err != nil {
		return nil, err
	}

	resp := VerificationStatusResponse{
		Status:      out.Status,
		Attempts:    out.Attempts,
		MaxAttempts: out.MaxAttempts,
		message:     out.Message,
	}
	if !out.ExpiresAt.IsZero() {
		resp.ExpiresAt = &out.ExpiresAt
	}

	return resp, nil
}

// CancelVerification abandons the running loop. Answers 204.
func (h *HTTPEndpoint) CancelVerification(r *router.Request) (any, error) {
	return nil, h.uc.CancelVerification(r.Context())
}
