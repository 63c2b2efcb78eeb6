package otp

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressInvalid is returned by Issue when the address is rejected by the validator.
	ErrAddressInvalid = errors.New("otp: address rejected")
	// ErrDeliveryFailed is returned by Issue when the Delivery could not send the code.
	ErrDeliveryFailed = errors.New("otp: send failed")
	// ErrNotIssued is returned by Verify when no delivered, unconsumed code exists.
	ErrNotIssued = errors.New("otp: no code issued")
	// ErrVerificationInProgress is returned when a verification loop is still polling.
	ErrVerificationInProgress = errors.New("otp: verification in progress")
	// ErrIssueInProgress is returned by Issue and Verify while a delivery is in flight.
	ErrIssueInProgress = errors.New("otp: issuance in progress")
	// ErrExpired reports that the validity window elapsed.
	ErrExpired = errors.New("otp: code expired")
	// ErrAttemptsExhausted reports that the attempt budget was used up by wrong guesses.
	ErrAttemptsExhausted = errors.New("otp: too many attempts")
	// ErrInput reports that the Input failed to produce a candidate.
	ErrInput = errors.New("otp: could not read code")
)

// Status is the state of a verification loop.
type Status int

const (
	// StatusPolling means the loop is still waiting for a matching candidate.
	StatusPolling Status = iota
	// StatusMatched means a candidate equal to the issued code was read.
	StatusMatched
	// StatusAttemptsExhausted means every attempt was spent on wrong candidates.
	StatusAttemptsExhausted
	// StatusExpired means the validity window elapsed.
	StatusExpired
	// StatusInputError means the Input failed.
	StatusInputError
	// StatusCancelled means the caller abandoned the loop.
	StatusCancelled
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPolling:
		return "POLLING"
	case StatusMatched:
		return "MATCHED"
	case StatusAttemptsExhausted:
		return "ATTEMPTS_EXHAUSTED"
	case StatusExpired:
		return "EXPIRED"
	case StatusInputError:
		return "INPUT_ERROR"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s > StatusPolling && s <= StatusCancelled
}

// Result is the terminal outcome of a verification loop.
type Result struct {
	Status Status
	// Attempts is the number of wrong candidates compared before resolution.
	Attempts int
	// Cause is the Input error when Status is StatusInputError.
	Cause error
}

// Err maps the result onto the package error values.
//
// It returns nil for StatusMatched and StatusCancelled.
func (r Result) Err() error {
	switch r.Status {
	case StatusExpired:
		return ErrExpired
	case StatusAttemptsExhausted:
		return ErrAttemptsExhausted
	case StatusInputError:
		if r.Cause == nil {
			return ErrInput
		}
		return fmt.Errorf("%w: %w", ErrInput, r.Cause)
	default:
		return nil
	}
}
