package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shandysiswandi/mailotp/internal/pkg/clock"
)

const (
	// DefaultMaxAttempts is used when Config.MaxAttempts is not positive.
	DefaultMaxAttempts = 10
	// DefaultValidityWindow is used when Config.ValidityWindow is not positive.
	DefaultValidityWindow = 60 * time.Second
	// DefaultPollInterval is used when Config.PollInterval is not positive.
	DefaultPollInterval = 5 * time.Second

	// minReadTimeout bounds a read started at the exact end of the window.
	minReadTimeout = 10 * time.Millisecond
)

var (
	// ErrDeliveryRequired is returned when a Session is built without a Delivery.
	ErrDeliveryRequired = errors.New("otp: delivery is required")
	// ErrInputRequired is returned when Verify is called with a nil Input.
	ErrInputRequired = errors.New("otp: input is required")
)

// Delivery hands an issued code to the transport that reaches the mailbox.
//
// Any non-nil error is treated as a failed delivery.
type Delivery interface {
	Send(ctx context.Context, address, body string) error
}

// Input supplies candidate codes to a verification loop.
//
// ReadCandidate may block; it should return when ctx is done.
type Input interface {
	ReadCandidate(ctx context.Context) (string, error)
}

// Config is fixed at Session construction. Zero values take the defaults.
type Config struct {
	// AddressSuffix is the domain suffix every destination must end with.
	AddressSuffix string
	// MaxAttempts is the number of wrong candidates tolerated per loop.
	MaxAttempts int
	// ValidityWindow is how long a code stays acceptable after delivery.
	ValidityWindow time.Duration
	// PollInterval is the cadence of the verification loop.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.ValidityWindow <= 0 {
		c.ValidityWindow = DefaultValidityWindow
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces the time source used for issuance and expiry.
//
// Expiry checks read c. The deadline handed to Input.ReadCandidate is a
// wall clock timeout sized to the window left according to c, so with a
// manual clock a blocking read still times out in real time.
func WithClock(c clock.Clocker) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithGenerator replaces the code generator.
func WithGenerator(g Generator) Option {
	return func(s *Session) {
		if g != nil {
			s.generator = g
		}
	}
}

// Session owns the lifecycle of one code.
//
// Issue and Verify are safe to call from different goroutines, but a Session
// serves a single verification context: reissuing while a loop is polling is
// rejected with ErrVerificationInProgress, and Issue or Verify during a
// delivery is rejected with ErrIssueInProgress. The session lock is not held
// while the Delivery sends.
type Session struct {
	cfg       Config
	validator *AddressValidator
	delivery  Delivery
	generator Generator
	clock     clock.Clocker

	mu       sync.Mutex
	code     string
	issuedAt time.Time
	issuing  bool
	active   *Verification
}

// NewSession builds a Session. It defaults to CryptoGenerator and the system clock.
func NewSession(cfg Config, delivery Delivery, opts ...Option) (*Session, error) {
	if delivery == nil {
		return nil, ErrDeliveryRequired
	}

	validator, err := NewAddressValidator(cfg.AddressSuffix)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg.withDefaults(),
		validator: validator,
		delivery:  delivery,
		generator: NewCryptoGenerator(),
		clock:     clock.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// IssuedAt returns the delivery time of the current unconsumed code.
func (s *Session) IssuedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issuedAt, !s.issuedAt.IsZero()
}

// Issue generates a code for address and hands it to the Delivery. It
// returns the delivery time, which starts the validity window.
//
// The code is stored only when delivery succeeds; a rejected address leaves
// the session untouched.
func (s *Session) Issue(ctx context.Context, address string) (time.Time, error) {
	if !s.validator.Validate(address) {
		return time.Time{}, ErrAddressInvalid
	}

	if err := s.reserve(); err != nil {
		return time.Time{}, err
	}

	code, err := s.generator.Generate()
	if err != nil {
		s.release("", time.Time{})
		return time.Time{}, fmt.Errorf("otp: generate code: %w", err)
	}

	if err := s.delivery.Send(ctx, address, messageBody(code, s.cfg.ValidityWindow)); err != nil {
		s.release("", time.Time{})
		return time.Time{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	issuedAt := s.clock.Now()
	s.release(code, issuedAt)

	return issuedAt, nil
}

// reserve marks an issuance in flight so no loop or other issuance starts
// until release.
func (s *Session) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.polling():
		return ErrVerificationInProgress
	case s.issuing:
		return ErrIssueInProgress
	}

	s.issuing = true
	return nil
}

// release ends the reservation. A non-empty code replaces the stored one.
func (s *Session) release(code string, issuedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issuing = false
	if code != "" {
		s.code, s.issuedAt = code, issuedAt
	}
}

// Verify starts a verification loop against the issued code and returns
// without waiting for it.
//
// The loop consumes the code: a later Verify needs a fresh Issue. Cancelling
// ctx or calling Cancel on the returned Verification resolves it as
// StatusCancelled.
func (s *Session) Verify(ctx context.Context, input Input) (*Verification, error) {
	if input == nil {
		return nil, ErrInputRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.polling() {
		return nil, ErrVerificationInProgress
	}
	if s.issuing {
		return nil, ErrIssueInProgress
	}
	if s.code == "" || s.issuedAt.IsZero() {
		return nil, ErrNotIssued
	}

	code, issuedAt := s.code, s.issuedAt
	s.code, s.issuedAt = "", time.Time{}

	loopCtx, cancel := context.WithCancel(ctx)
	v := newVerification(cancel, issuedAt.Add(s.cfg.ValidityWindow))
	s.active = v

	go s.poll(loopCtx, v, input, code, issuedAt)

	return v, nil
}

func (s *Session) polling() bool {
	return s.active != nil && !s.active.resolved()
}

func (s *Session) poll(ctx context.Context, v *Verification, input Input, code string, issuedAt time.Time) {
	defer v.cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			v.resolve(Result{Status: StatusCancelled, Attempts: v.Attempts()})
			return
		case <-ticker.C:
		}

		elapsed := s.clock.Now().Sub(issuedAt)
		if elapsed > s.cfg.ValidityWindow {
			v.resolve(Result{Status: StatusExpired, Attempts: v.Attempts()})
			return
		}

		if v.Attempts() >= s.cfg.MaxAttempts {
			v.resolve(Result{Status: StatusAttemptsExhausted, Attempts: v.Attempts()})
			return
		}

		candidate, status, err := s.read(ctx, input, s.cfg.ValidityWindow-elapsed)
		if status != StatusPolling {
			v.resolve(Result{Status: status, Attempts: v.Attempts(), Cause: err})
			return
		}

		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			v.resolve(Result{Status: StatusMatched, Attempts: v.Attempts()})
			return
		}

		v.attempts.Inc()
	}
}

// read pulls one candidate, bounded by what is left of the validity window.
func (s *Session) read(ctx context.Context, input Input, remaining time.Duration) (string, Status, error) {
	readCtx, cancel := context.WithTimeout(ctx, max(remaining, minReadTimeout))
	defer cancel()

	candidate, err := input.ReadCandidate(readCtx)
	if err == nil {
		return candidate, StatusPolling, nil
	}

	switch {
	case ctx.Err() != nil:
		return "", StatusCancelled, nil
	case errors.Is(readCtx.Err(), context.DeadlineExceeded):
		return "", StatusExpired, nil
	default:
		return "", StatusInputError, err
	}
}

func messageBody(code string, window time.Duration) string {
	return fmt.Sprintf("Your OTP is %s. The code is valid for %s", code, humanizeDuration(window))
}

func humanizeDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return plural(int64(d/time.Second), "second")
	default:
		return d.String()
	}
}
