package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/mailotp/internal/pkg/clock"
	"github.com/shandysiswandi/mailotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/pkg/otp"
	"github.com/shandysiswandi/mailotp/internal/pkg/uid"
	"github.com/shandysiswandi/mailotp/internal/pkg/validator"
	"github.com/shandysiswandi/mailotp/internal/verification/entity"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const publishTimeout = 10 * time.Second

type session interface {
	Config() otp.Config
	Issue(ctx context.Context, address string) (time.Time, error)
	Verify(ctx context.Context, input otp.Input) (*otp.Verification, error)
}

type repoQueue interface {
	otp.Input
	Push(ctx context.Context, code string) error
	Drain(ctx context.Context) error
}

type repoMessaging interface {
	PublishVerificationResolved(ctx context.Context, out entity.Outcome) error
}

type Usecase struct {
	ctx           context.Context
	session       session
	repoQueue     repoQueue
	repoMessaging repoMessaging
	uuid          uid.StringID
	clock         clock.Clocker
	validator     validator.Validator
	goroutine     *goroutine.Manager
	ins           instrument.Instrumentation

	issuedCounter   metric.Int64Counter
	resolvedCounter metric.Int64Counter

	mu      sync.Mutex
	email   string
	current *otp.Verification
}

type Dependency struct {
	// Ctx bounds every verification loop; cancelling it cancels the loops.
	Ctx           context.Context
	Session       session
	RepoQueue     repoQueue
	RepoMessaging repoMessaging
	UUID          uid.StringID
	Clock         clock.Clocker
	Validator     validator.Validator
	Goroutine     *goroutine.Manager
	Instrument    instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	ctx := dep.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	meter := ins.Meter("verification.usecase")
	issuedCounter, err := meter.Int64Counter("otp.issued", metric.WithDescription("Number of OTP issuance attempts by result"))
	if err != nil {
		slog.Error("failed to create otp issued counter", "error", err)
	}
	resolvedCounter, err := meter.Int64Counter("otp.verification.resolved", metric.WithDescription("Number of verification loops by terminal status"))
	if err != nil {
		slog.Error("failed to create otp verification resolved counter", "error", err)
	}

	return &Usecase{
		ctx:             ctx,
		session:         dep.Session,
		repoQueue:       dep.RepoQueue,
		repoMessaging:   dep.RepoMessaging,
		uuid:            dep.UUID,
		clock:           dep.Clock,
		validator:       dep.Validator,
		goroutine:       dep.Goroutine,
		ins:             ins,
		issuedCounter:   issuedCounter,
		resolvedCounter: resolvedCounter,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("verification.usecase").Start(ctx, name)
}

// polling returns the running verification, or nil.
func (s *Usecase) polling() *otp.Verification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	if _, done := s.current.Result(); done {
		return nil
	}
	return s.current
}
