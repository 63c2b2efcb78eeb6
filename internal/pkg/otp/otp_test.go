package otp

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/mailotp/internal/pkg/clock"
	"go.uber.org/atomic"
)

func newManualClock() *clock.Manual {
	return clock.NewManual(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

type recordingDelivery struct {
	mu      sync.Mutex
	err     error
	calls   int
	address string
	body    string
}

func (d *recordingDelivery) Send(_ context.Context, address, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.address = address
	d.body = body
	return d.err
}

type sequenceGenerator struct {
	next *atomic.Int32
}

func (g sequenceGenerator) Generate() (string, error) {
	return strconv.Itoa(CodeMin + int(g.next.Inc())), nil
}

type inputFunc func(ctx context.Context) (string, error)

func (f inputFunc) ReadCandidate(ctx context.Context) (string, error) {
	return f(ctx)
}

func fixedInput(code string, reads *atomic.Int32) Input {
	return inputFunc(func(context.Context) (string, error) {
		reads.Inc()
		return code, nil
	})
}

func blockingInput(started chan<- struct{}, reads *atomic.Int32) Input {
	return inputFunc(func(ctx context.Context) (string, error) {
		reads.Inc()
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return "", ctx.Err()
	})
}

func newTestSession(t *testing.T, cfg Config, d Delivery, opts ...Option) *Session {
	t.Helper()

	if cfg.AddressSuffix == "" {
		cfg.AddressSuffix = "example.org"
	}

	s, err := NewSession(cfg, d, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func waitResult(t *testing.T, v *Verification) Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	res, err := v.Wait(ctx)
	if err != nil {
		t.Fatalf("verification did not resolve: %v", err)
	}
	return res
}

func TestNewSession_Defaults(t *testing.T) {
	// Act
	s := newTestSession(t, Config{}, &recordingDelivery{})

	// Assert
	cfg := s.Config()
	if cfg.MaxAttempts != DefaultMaxAttempts || cfg.ValidityWindow != DefaultValidityWindow || cfg.PollInterval != DefaultPollInterval {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, ok := s.IssuedAt(); ok {
		t.Fatalf("new session must not have an issued code")
	}
}

func TestNewSession_RequiresDeliveryAndSuffix(t *testing.T) {
	if _, err := NewSession(Config{AddressSuffix: "example.org"}, nil); !errors.Is(err, ErrDeliveryRequired) {
		t.Fatalf("expected ErrDeliveryRequired, got %v", err)
	}
	if _, err := NewSession(Config{}, &recordingDelivery{}); !errors.Is(err, ErrAddressSuffixRequired) {
		t.Fatalf("expected ErrAddressSuffixRequired, got %v", err)
	}
}

func TestSession_Issue_InvalidAddress(t *testing.T) {
	// Arrange
	d := &recordingDelivery{}
	s := newTestSession(t, Config{}, d)

	// Act
	_, err := s.Issue(context.Background(), "user@other.com")

	// Assert
	if !errors.Is(err, ErrAddressInvalid) {
		t.Fatalf("expected ErrAddressInvalid, got %v", err)
	}
	if d.calls != 0 {
		t.Fatalf("delivery must not be attempted, got %d calls", d.calls)
	}
	if s.code != "" {
		t.Fatalf("code must stay unset, got %q", s.code)
	}
	if _, ok := s.IssuedAt(); ok {
		t.Fatalf("issuedAt must stay unset")
	}
}

func TestSession_Issue_Success(t *testing.T) {
	// Arrange
	clk := newManualClock()
	d := &recordingDelivery{}
	s := newTestSession(t, Config{}, d, WithClock(clk))

	// Act
	deliveredAt, err := s.Issue(context.Background(), "user@test.example.org")

	// Assert
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !deliveredAt.Equal(clk.Now()) {
		t.Fatalf("returned issuance time = %v, want %v", deliveredAt, clk.Now())
	}
	issuedAt, ok := s.IssuedAt()
	if !ok || !issuedAt.Equal(clk.Now()) {
		t.Fatalf("issuedAt = %v (%v), want %v", issuedAt, ok, clk.Now())
	}
	n, err := strconv.Atoi(s.code)
	if err != nil || n < CodeMin || n > CodeMax {
		t.Fatalf("code %q out of range", s.code)
	}
	if d.address != "user@test.example.org" {
		t.Fatalf("unexpected delivery address %q", d.address)
	}
	want := "Your OTP is " + s.code + ". The code is valid for 1 minute"
	if d.body != want {
		t.Fatalf("body = %q, want %q", d.body, want)
	}
}

func TestSession_Issue_DeliveryFailed(t *testing.T) {
	// Arrange
	cause := errors.New("smtp down")
	d := &recordingDelivery{err: cause}
	s := newTestSession(t, Config{}, d)

	// Act
	_, err := s.Issue(context.Background(), "user@example.org")

	// Assert
	if !errors.Is(err, ErrDeliveryFailed) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrDeliveryFailed wrapping cause, got %v", err)
	}
	if d.calls != 1 {
		t.Fatalf("expected one delivery attempt, got %d", d.calls)
	}
	if s.code != "" {
		t.Fatalf("failed delivery must discard the code, got %q", s.code)
	}
	if _, ok := s.IssuedAt(); ok {
		t.Fatalf("issuedAt must stay unset")
	}
}

func TestSession_Verify_Preconditions(t *testing.T) {
	s := newTestSession(t, Config{}, &recordingDelivery{})

	if _, err := s.Verify(context.Background(), nil); !errors.Is(err, ErrInputRequired) {
		t.Fatalf("expected ErrInputRequired, got %v", err)
	}

	reads := atomic.NewInt32(0)
	if _, err := s.Verify(context.Background(), fixedInput("123456", reads)); !errors.Is(err, ErrNotIssued) {
		t.Fatalf("expected ErrNotIssued, got %v", err)
	}
	if reads.Load() != 0 {
		t.Fatalf("input must not be read")
	}
}

func TestSession_Verify_Matched(t *testing.T) {
	// Arrange
	interval := 20 * time.Millisecond
	s := newTestSession(t, Config{PollInterval: interval}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	reads := atomic.NewInt32(0)
	start := time.Now()

	// Act
	v, err := s.Verify(context.Background(), fixedInput(s.code, reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusMatched || res.Err() != nil {
		t.Fatalf("expected matched, got %+v", res)
	}
	if reads.Load() != 1 {
		t.Fatalf("expected a single read, got %d", reads.Load())
	}
	if elapsed := time.Since(start); elapsed < interval {
		t.Fatalf("first check must wait one interval, resolved after %s", elapsed)
	}
}

func TestSession_Verify_AttemptsExhausted(t *testing.T) {
	// Arrange
	s := newTestSession(t, Config{PollInterval: 2 * time.Millisecond, MaxAttempts: 4}, &recordingDelivery{},
		WithGenerator(sequenceGenerator{next: atomic.NewInt32(0)}))
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	reads := atomic.NewInt32(0)

	// Act
	v, err := s.Verify(context.Background(), fixedInput("999999", reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusAttemptsExhausted || !errors.Is(res.Err(), ErrAttemptsExhausted) {
		t.Fatalf("expected attempts exhausted, got %+v", res)
	}
	if res.Attempts != 4 || reads.Load() != 4 {
		t.Fatalf("expected exactly 4 attempts and reads, got attempts=%d reads=%d", res.Attempts, reads.Load())
	}
}

func TestSession_Verify_ExhaustionWaitsForNextTick(t *testing.T) {
	// Arrange
	interval := 100 * time.Millisecond
	s := newTestSession(t, Config{PollInterval: interval, MaxAttempts: 1}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	reads := atomic.NewInt32(0)

	// Act
	v, err := s.Verify(context.Background(), fixedInput("000000", reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for v.Attempts() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Assert
	if res, done := v.Result(); done || res.Status != StatusPolling || res.Attempts != 1 {
		t.Fatalf("a wrong read must leave the loop polling, got %+v (%v)", res, done)
	}
	res := waitResult(t, v)
	if res.Status != StatusAttemptsExhausted || res.Attempts != 1 || reads.Load() != 1 {
		t.Fatalf("expected exhaustion on the following tick, got %+v reads=%d", res, reads.Load())
	}
}

func TestSession_Verify_ExpiryCheckedBeforeExhaustion(t *testing.T) {
	// Arrange
	clk := newManualClock()
	s := newTestSession(t, Config{PollInterval: 2 * time.Millisecond, MaxAttempts: 2, ValidityWindow: 60 * time.Second},
		&recordingDelivery{}, WithClock(clk))
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	reads := atomic.NewInt32(0)
	slowWrong := inputFunc(func(context.Context) (string, error) {
		reads.Inc()
		clk.Advance(35 * time.Second)
		return "000000", nil
	})

	// Act
	v, err := s.Verify(context.Background(), slowWrong)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusExpired {
		t.Fatalf("window closed before the exhausted tick, expected expired, got %+v", res)
	}
	if res.Attempts != 2 || reads.Load() != 2 {
		t.Fatalf("expected 2 attempts and reads, got attempts=%d reads=%d", res.Attempts, reads.Load())
	}
}

func TestSession_Verify_ReadsAtWindowBoundary(t *testing.T) {
	// Arrange
	clk := newManualClock()
	s := newTestSession(t, Config{PollInterval: 2 * time.Millisecond}, &recordingDelivery{}, WithClock(clk))
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := s.code
	clk.Advance(DefaultValidityWindow)
	contextAware := inputFunc(func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return code, nil
	})

	// Act
	v, err := s.Verify(context.Background(), contextAware)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusMatched {
		t.Fatalf("a tick at exactly the window end must still read, got %+v", res)
	}
}

func TestSession_Verify_ExpiredBeforeFirstTick(t *testing.T) {
	// Arrange
	clk := newManualClock()
	s := newTestSession(t, Config{PollInterval: 2 * time.Millisecond}, &recordingDelivery{}, WithClock(clk))
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	code := s.code
	clk.Advance(DefaultValidityWindow + time.Second)
	reads := atomic.NewInt32(0)

	// Act
	v, err := s.Verify(context.Background(), fixedInput(code, reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusExpired || !errors.Is(res.Err(), ErrExpired) {
		t.Fatalf("expected expired, got %+v", res)
	}
	if reads.Load() != 0 {
		t.Fatalf("an expired tick must not read input, got %d reads", reads.Load())
	}
}

func TestSession_Verify_ExpiresWhileInputBlocks(t *testing.T) {
	// Arrange
	s := newTestSession(t, Config{PollInterval: 5 * time.Millisecond, ValidityWindow: 60 * time.Millisecond}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	reads := atomic.NewInt32(0)

	// Act
	v, err := s.Verify(context.Background(), blockingInput(make(chan struct{}, 1), reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusExpired {
		t.Fatalf("expected expired, got %+v", res)
	}
	if res.Attempts != 0 {
		t.Fatalf("expiry must not count as an attempt, got %d", res.Attempts)
	}
}

func TestSession_Verify_InputError(t *testing.T) {
	// Arrange
	s := newTestSession(t, Config{PollInterval: 2 * time.Millisecond}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	cause := errors.New("device fault")

	// Act
	v, err := s.Verify(context.Background(), inputFunc(func(context.Context) (string, error) {
		return "", cause
	}))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusInputError {
		t.Fatalf("expected input error, got %+v", res)
	}
	if !errors.Is(res.Err(), ErrInput) || !errors.Is(res.Err(), cause) {
		t.Fatalf("expected ErrInput wrapping cause, got %v", res.Err())
	}
	if res.Attempts != 0 {
		t.Fatalf("input error must not count as an attempt, got %d", res.Attempts)
	}
}

func TestSession_Reissue_InvalidatesPreviousCode(t *testing.T) {
	// Arrange
	s := newTestSession(t, Config{PollInterval: 2 * time.Millisecond, MaxAttempts: 3}, &recordingDelivery{},
		WithGenerator(sequenceGenerator{next: atomic.NewInt32(0)}))
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	oldCode := s.code
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if s.code == oldCode {
		t.Fatalf("reissue must replace the code")
	}
	reads := atomic.NewInt32(0)

	// Act
	v, err := s.Verify(context.Background(), fixedInput(oldCode, reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res := waitResult(t, v)

	// Assert
	if res.Status != StatusAttemptsExhausted {
		t.Fatalf("old code must never match, got %+v", res)
	}
}

func TestSession_Verify_CancelMidPoll(t *testing.T) {
	// Arrange
	interval := 5 * time.Millisecond
	s := newTestSession(t, Config{PollInterval: interval}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	started := make(chan struct{}, 1)
	reads := atomic.NewInt32(0)
	v, err := s.Verify(context.Background(), blockingInput(started, reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("input was never read")
	}

	// Act
	v.Cancel()
	v.Cancel()

	// Assert
	res := waitResult(t, v)
	if res.Status != StatusCancelled || res.Err() != nil {
		t.Fatalf("expected cancelled, got %+v", res)
	}
	time.Sleep(10 * interval)
	if reads.Load() != 1 {
		t.Fatalf("no tick may run after cancel, got %d reads", reads.Load())
	}
	again, ok := v.Result()
	if !ok || again != res {
		t.Fatalf("result changed after resolution: %+v", again)
	}
}

func TestSession_Verify_ParentContextCancelled(t *testing.T) {
	// Arrange
	s := newTestSession(t, Config{PollInterval: time.Hour}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	reads := atomic.NewInt32(0)
	v, err := s.Verify(ctx, fixedInput("000000", reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Act
	cancel()

	// Assert
	if res := waitResult(t, v); res.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %+v", res)
	}
}

func TestSession_SingleLoopPerIssuance(t *testing.T) {
	// Arrange
	s := newTestSession(t, Config{PollInterval: time.Hour}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	reads := atomic.NewInt32(0)
	v, err := s.Verify(context.Background(), fixedInput("000000", reads))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Act & Assert
	if _, err := s.Verify(context.Background(), fixedInput("000000", reads)); !errors.Is(err, ErrVerificationInProgress) {
		t.Fatalf("expected ErrVerificationInProgress from Verify, got %v", err)
	}
	if _, err := s.Issue(context.Background(), "user@example.org"); !errors.Is(err, ErrVerificationInProgress) {
		t.Fatalf("expected ErrVerificationInProgress from Issue, got %v", err)
	}

	v.Cancel()
	waitResult(t, v)

	if _, err := s.Verify(context.Background(), fixedInput("000000", reads)); !errors.Is(err, ErrNotIssued) {
		t.Fatalf("a consumed code needs reissue, got %v", err)
	}
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("reissue after terminal outcome: %v", err)
	}
}

type gatedDelivery struct {
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDelivery) Send(context.Context, string, string) error {
	d.entered <- struct{}{}
	<-d.release
	return nil
}

func TestSession_Issue_DoesNotHoldLockDuringDelivery(t *testing.T) {
	// Arrange
	d := &gatedDelivery{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := newTestSession(t, Config{PollInterval: time.Hour}, d)
	issued := make(chan error, 1)
	go func() {
		_, err := s.Issue(context.Background(), "user@example.org")
		issued <- err
	}()
	select {
	case <-d.entered:
	case <-time.After(3 * time.Second):
		t.Fatalf("delivery was never called")
	}

	// Act
	queried := make(chan bool, 1)
	go func() {
		_, ok := s.IssuedAt()
		queried <- ok
	}()

	// Assert
	select {
	case ok := <-queried:
		if ok {
			t.Fatalf("code must not be visible before delivery completes")
		}
	case <-time.After(time.Second):
		t.Fatalf("IssuedAt blocked while delivery was in flight")
	}
	if _, err := s.Verify(context.Background(), fixedInput("000000", atomic.NewInt32(0))); !errors.Is(err, ErrIssueInProgress) {
		t.Fatalf("expected ErrIssueInProgress from Verify, got %v", err)
	}
	if _, err := s.Issue(context.Background(), "user@example.org"); !errors.Is(err, ErrIssueInProgress) {
		t.Fatalf("expected ErrIssueInProgress from Issue, got %v", err)
	}

	close(d.release)
	if err := <-issued; err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, ok := s.IssuedAt(); !ok {
		t.Fatalf("code must be stored after delivery")
	}
}

func TestVerification_ResultWhilePolling(t *testing.T) {
	s := newTestSession(t, Config{PollInterval: time.Hour}, &recordingDelivery{})
	if _, err := s.Issue(context.Background(), "user@example.org"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	v, err := s.Verify(context.Background(), fixedInput("000000", atomic.NewInt32(0)))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	defer v.Cancel()

	res, ok := v.Result()
	if ok || res.Status != StatusPolling {
		t.Fatalf("expected polling snapshot, got %+v (%v)", res, ok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := v.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wait to time out, got %v", err)
	}
	if !v.ExpiresAt().After(time.Now()) {
		t.Fatalf("expiresAt must be in the future")
	}
}

func TestStatus(t *testing.T) {
	terminal := []Status{StatusMatched, StatusAttemptsExhausted, StatusExpired, StatusInputError, StatusCancelled}
	for _, st := range terminal {
		if !st.Terminal() {
			t.Fatalf("%s must be terminal", st)
		}
		if strings.Contains(st.String(), "UNKNOWN") {
			t.Fatalf("%d has no name", st)
		}
	}
	if StatusPolling.Terminal() || Status(42).Terminal() {
		t.Fatalf("polling and unknown statuses are not terminal")
	}
	if Status(42).String() != "UNKNOWN" {
		t.Fatalf("unexpected name for unknown status")
	}
	if (Result{Status: StatusInputError}).Err() != ErrInput {
		t.Fatalf("input error without cause must map to ErrInput")
	}
}
