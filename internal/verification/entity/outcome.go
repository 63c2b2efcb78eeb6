package entity

import (
	"errors"
	"time"

	"github.com/shandysiswandi/mailotp/internal/pkg/otp"
)

// ErrCandidatePending is returned by a queue that still holds an unread candidate.
var ErrCandidatePending = errors.New("verification: a candidate is already pending")

const (
	// StatusIdle is reported before the first verification loop of the process.
	StatusIdle = "IDLE"
	// MessageIdle accompanies StatusIdle.
	MessageIdle = "no verification started"
)

type Outcome struct {
	ID          string
	Email       string
	Status      otp.Status
	Attempts    int
	MaxAttempts int
	Reason      string
	ResolvedAt  time.Time
}

// StatusMessage is the user-facing text for a loop status.
func StatusMessage(s otp.Status) string {
	switch s {
	case otp.StatusPolling:
		return "verification in progress"
	case otp.StatusMatched:
		return "code verified"
	case otp.StatusAttemptsExhausted:
		return "too many attempts"
	case otp.StatusExpired:
		return "code expired"
	case otp.StatusInputError:
		return "could not read code"
	case otp.StatusCancelled:
		return "cancelled"
	default:
		return MessageIdle
	}
}
