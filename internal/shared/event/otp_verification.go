package event

import "time"

const OTPVerificationResolvedDestination string = "otp_verification_resolved"

type OTPVerificationResolvedMessage struct {
	EventID     string    `json:"event_id"`
	Email       string    `json:"email"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Reason      string    `json:"reason,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
