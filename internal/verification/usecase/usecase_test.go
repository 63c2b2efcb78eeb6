package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/mailotp/internal/pkg/clock"
	"github.com/shandysiswandi/mailotp/internal/pkg/goerror"
	"github.com/shandysiswandi/mailotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/pkg/otp"
	"github.com/shandysiswandi/mailotp/internal/pkg/uid"
	"github.com/shandysiswandi/mailotp/internal/pkg/validator"
	"github.com/shandysiswandi/mailotp/internal/verification/entity"
	"github.com/shandysiswandi/mailotp/internal/verification/outbound/queue"
)

const testCode = "123456"

type fixedGenerator string

func (g fixedGenerator) Generate() (string, error) { return string(g), nil }

type fakeDelivery struct {
	mu     sync.Mutex
	err    error
	bodies []string
}

func (f *fakeDelivery) Send(_ context.Context, _, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeMessaging struct {
	outcomes chan entity.Outcome
}

func (f *fakeMessaging) PublishVerificationResolved(_ context.Context, out entity.Outcome) error {
	f.outcomes <- out
	return nil
}

type fixture struct {
	uc       *Usecase
	delivery *fakeDelivery
	msg      *fakeMessaging
	cancel   context.CancelFunc
}

func newFixture(t *testing.T, cfg otp.Config, opts ...otp.Option) *fixture {
	t.Helper()

	if cfg.AddressSuffix == "" {
		cfg.AddressSuffix = "example.org"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.ValidityWindow == 0 {
		cfg.ValidityWindow = 5 * time.Second
	}

	delivery := &fakeDelivery{}
	opts = append([]otp.Option{otp.WithGenerator(fixedGenerator(testCode))}, opts...)
	sess, err := otp.NewSession(cfg, delivery, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	gm := goroutine.NewManager(10)
	t.Cleanup(func() {
		cancel()
		waitCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
		defer done()
		_ = gm.Wait(waitCtx)
	})

	msg := &fakeMessaging{outcomes: make(chan entity.Outcome, 4)}
	uc := New(Dependency{
		Ctx:           ctx,
		Session:       sess,
		RepoQueue:     queue.NewMemory(),
		RepoMessaging: msg,
		UUID:          uid.NewUUID(),
		Clock:         clock.New(),
		Validator:     v,
		Goroutine:     gm,
		Instrument:    instrument.NewNoop(),
	})

	return &fixture{uc: uc, delivery: delivery, msg: msg, cancel: cancel}
}

func (f *fixture) outcome(t *testing.T) entity.Outcome {
	t.Helper()

	select {
	case out := <-f.msg.outcomes:
		return out
	case <-time.After(3 * time.Second):
		t.Fatalf("verification outcome was not published")
		return entity.Outcome{}
	}
}

// submit retries while the previous candidate is still queued.
func (f *fixture) submit(t *testing.T, code string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := f.uc.SubmitCode(context.Background(), SubmitCodeInput{Code: code})
		if err == nil {
			return
		}
		if statusOf(err) != http.StatusTooManyRequests || time.Now().After(deadline) {
			t.Fatalf("submit %q: %v", code, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func statusOf(err error) int {
	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		return gerr.StatusCode()
	}
	return 0
}

func assertBusiness(t *testing.T, err error, wantStatus int, wantMsg string) {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected goerror, got %v", err)
	}
	if gerr.StatusCode() != wantStatus || gerr.Msg() != wantMsg {
		t.Fatalf("got %d %q, want %d %q", gerr.StatusCode(), gerr.Msg(), wantStatus, wantMsg)
	}
}

func TestUsecase_Issue(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		// Arrange
		f := newFixture(t, otp.Config{ValidityWindow: time.Minute})
		before := time.Now()

		// Act
		out, err := f.uc.Issue(context.Background(), IssueInput{Email: " user@test.example.org "})

		// Assert
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if out.ValidFor != time.Minute || out.ExpiresAt.Before(before.Add(time.Minute)) {
			t.Fatalf("unexpected output %+v", out)
		}
		if len(f.delivery.bodies) != 1 || f.delivery.bodies[0] != "Your OTP is 123456. The code is valid for 1 minute" {
			t.Fatalf("unexpected delivery %v", f.delivery.bodies)
		}
	})

	t.Run("expiry follows delivery time", func(t *testing.T) {
		// Arrange
		clk := clock.NewManual(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
		f := newFixture(t, otp.Config{ValidityWindow: time.Minute}, otp.WithClock(clk))

		// Act
		out, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"})
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		_, startErr := f.uc.StartVerification(context.Background())

		// Assert
		if startErr != nil {
			t.Fatalf("start: %v", startErr)
		}
		if want := clk.Now().Add(time.Minute); !out.ExpiresAt.Equal(want) {
			t.Fatalf("expires at %v, want %v", out.ExpiresAt, want)
		}
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, otp.Config{})
		_, err := f.uc.Issue(context.Background(), IssueInput{Email: "  "})
		assertBusiness(t, err, http.StatusUnprocessableEntity, "Validation error")
	})

	t.Run("address rejected", func(t *testing.T) {
		f := newFixture(t, otp.Config{})
		_, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.com"})
		assertBusiness(t, err, http.StatusUnprocessableEntity, "address rejected")
		if len(f.delivery.bodies) != 0 {
			t.Fatalf("rejected address must not be delivered")
		}
	})

	t.Run("delivery failed", func(t *testing.T) {
		f := newFixture(t, otp.Config{})
		f.delivery.err = errors.New("smtp down")
		_, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"})
		assertBusiness(t, err, http.StatusServiceUnavailable, "send failed")
		if !errors.Is(err, otp.ErrDeliveryFailed) {
			t.Fatalf("delivery failure must wrap otp.ErrDeliveryFailed, got %v", err)
		}
	})
}

func TestUsecase_StartVerificationRequiresIssue(t *testing.T) {
	f := newFixture(t, otp.Config{})

	_, err := f.uc.StartVerification(context.Background())

	assertBusiness(t, err, http.StatusConflict, "no code issued")
}

func TestUsecase_VerificationMatched(t *testing.T) {
	// Arrange
	f := newFixture(t, otp.Config{MaxAttempts: 3})
	if _, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	ctx := instrument.SetCorrelationID(context.Background(), "cid-42")

	// Act
	start, err := f.uc.StartVerification(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.submit(t, "000000")
	f.submit(t, testCode)
	out := f.outcome(t)

	// Assert
	if start.MaxAttempts != 3 || start.PollInterval != 10*time.Millisecond {
		t.Fatalf("unexpected start output %+v", start)
	}
	if out.Status != otp.StatusMatched || out.Attempts != 1 || out.Email != "user@example.org" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !uid.Valid(out.ID) || out.Reason != "" {
		t.Fatalf("unexpected outcome metadata %+v", out)
	}

	status, err := f.uc.VerificationStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != "MATCHED" || status.Message != "code verified" || status.Attempts != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestUsecase_VerificationAttemptsExhausted(t *testing.T) {
	f := newFixture(t, otp.Config{MaxAttempts: 2})
	if _, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.uc.StartVerification(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.submit(t, "000000")
	f.submit(t, "111111")
	out := f.outcome(t)

	if out.Status != otp.StatusAttemptsExhausted || out.Attempts != 2 || out.MaxAttempts != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !strings.Contains(out.Reason, "too many attempts") {
		t.Fatalf("unexpected reason %q", out.Reason)
	}

	err := f.uc.SubmitCode(context.Background(), SubmitCodeInput{Code: testCode})
	assertBusiness(t, err, http.StatusConflict, "no verification in progress")
}

func TestUsecase_VerificationExpired(t *testing.T) {
	f := newFixture(t, otp.Config{ValidityWindow: 50 * time.Millisecond})
	if _, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.uc.StartVerification(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	out := f.outcome(t)

	if out.Status != otp.StatusExpired || out.Reason != otp.ErrExpired.Error() {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestUsecase_SubmitCode(t *testing.T) {
	f := newFixture(t, otp.Config{PollInterval: time.Hour})

	err := f.uc.SubmitCode(context.Background(), SubmitCodeInput{Code: testCode})
	assertBusiness(t, err, http.StatusConflict, "no verification in progress")

	if _, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.uc.StartVerification(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	err = f.uc.SubmitCode(context.Background(), SubmitCodeInput{Code: "12ab56"})
	assertBusiness(t, err, http.StatusUnprocessableEntity, "Validation error")

	if err := f.uc.SubmitCode(context.Background(), SubmitCodeInput{Code: testCode}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err = f.uc.SubmitCode(context.Background(), SubmitCodeInput{Code: testCode})
	assertBusiness(t, err, http.StatusTooManyRequests, "a code is already waiting to be checked")
}

func TestUsecase_CancelVerification(t *testing.T) {
	// Arrange
	f := newFixture(t, otp.Config{PollInterval: time.Hour})
	if err := f.uc.CancelVerification(context.Background()); statusOf(err) != http.StatusConflict {
		t.Fatalf("cancel without loop must conflict, got %v", err)
	}
	if _, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.uc.StartVerification(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// a second loop and a reissue are both refused while polling
	if _, err := f.uc.StartVerification(context.Background()); statusOf(err) != http.StatusConflict {
		t.Fatalf("second start must conflict, got %v", err)
	}
	_, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"})
	assertBusiness(t, err, http.StatusConflict, "verification in progress")

	// Act
	err = f.uc.CancelVerification(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out := f.outcome(t); out.Status != otp.StatusCancelled {
		t.Fatalf("unexpected outcome %+v", out)
	}
	status, _ := f.uc.VerificationStatus(context.Background())
	if status.Status != "CANCELLED" || status.Message != "cancelled" {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := f.uc.CancelVerification(context.Background()); statusOf(err) != http.StatusConflict {
		t.Fatalf("second cancel must conflict, got %v", err)
	}
}

func TestUsecase_ModuleContextCancelsLoop(t *testing.T) {
	f := newFixture(t, otp.Config{PollInterval: time.Hour})
	if _, err := f.uc.Issue(context.Background(), IssueInput{Email: "user@example.org"}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.uc.StartVerification(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.cancel()

	if out := f.outcome(t); out.Status != otp.StatusCancelled {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestUsecase_VerificationStatusIdle(t *testing.T) {
	f := newFixture(t, otp.Config{MaxAttempts: 7})

	status, err := f.uc.VerificationStatus(context.Background())

	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != entity.StatusIdle || status.Message != entity.MessageIdle || status.MaxAttempts != 7 {
		t.Fatalf("unexpected status %+v", status)
	}
}
