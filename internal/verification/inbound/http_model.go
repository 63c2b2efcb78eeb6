package inbound

import (
	"net/http"
	"time"
)

type IssueRequest struct {
	Email string `json:"email"`
}

type IssueResponse struct {
	ExpiresAt       time.Time `json:"expires_at"`
	ValidForSeconds int64     `json:"valid_for_seconds"`
}

func (IssueResponse) Message() string { return "otp has been sent" }

type StartVerificationResponse struct {
	PollIntervalMS int64     `json:"poll_interval_ms"`
	MaxAttempts    int       `json:"max_attempts"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (StartVerificationResponse) StatusCode() int { return http.StatusAccepted }
func (StartVerificationResponse) Message() string { return "verification started" }

type SubmitCodeRequest struct {
	Code string `json:"code"`
}

type SubmitCodeResponse struct {
	Accepted bool `json:"accepted"`
}

func (SubmitCodeResponse) StatusCode() int { return http.StatusAccepted }
func (SubmitCodeResponse) Message() string { return "code queued for verification" }

type VerificationStatusResponse struct {
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	message string
}

func (r VerificationStatusResponse) Message() string { return r.message }
