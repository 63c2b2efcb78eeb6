package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/mailotp/internal/pkg/clock"
	"github.com/shandysiswandi/mailotp/internal/pkg/config"
	"github.com/shandysiswandi/mailotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/pkg/mail"
	"github.com/shandysiswandi/mailotp/internal/pkg/messaging"
	"github.com/shandysiswandi/mailotp/internal/pkg/otp"
	"github.com/shandysiswandi/mailotp/internal/pkg/router"
	"github.com/shandysiswandi/mailotp/internal/pkg/uid"
	"github.com/shandysiswandi/mailotp/internal/pkg/validator"
	"github.com/shandysiswandi/mailotp/internal/verification/inbound"
	"github.com/shandysiswandi/mailotp/internal/verification/outbound/email"
	"github.com/shandysiswandi/mailotp/internal/verification/outbound/mq"
	"github.com/shandysiswandi/mailotp/internal/verification/outbound/queue"
	"github.com/shandysiswandi/mailotp/internal/verification/usecase"
)

var (
	// ErrUnknownGenerator is returned for an unsupported modules.verification.generator.
	ErrUnknownGenerator = errors.New("verification: unknown code generator")
	// ErrUnknownInputDriver is returned for an unsupported modules.verification.input.driver.
	ErrUnknownInputDriver = errors.New("verification: unknown input driver")
	// ErrCacheRequired is returned when the redis input is selected without a connection.
	ErrCacheRequired = errors.New("verification: redis input requires a cache connection")
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`
	Messaging  messaging.Publisher        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	// CacheConn is only needed by the redis input driver.
	CacheConn *redis.Client
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	cfg := dep.Config
	repoMail := email.New(dep.Mail, dep.Instrument, cfg.GetString("modules.verification.mail.subject"))

	opts := []otp.Option{otp.WithClock(dep.Clock)}
	switch gen := cfg.GetString("modules.verification.generator"); gen {
	case "", "crypto":
	case "math":
		opts = append(opts, otp.WithGenerator(otp.NewMathGenerator()))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGenerator, gen)
	}

	session, err := otp.NewSession(otp.Config{
		AddressSuffix:  cfg.GetString("modules.verification.address_suffix"),
		MaxAttempts:    cfg.GetInt("modules.verification.max_attempts"),
		ValidityWindow: cfg.GetSecond("modules.verification.validity_window_seconds"),
		PollInterval:   cfg.GetMillisecond("modules.verification.poll_interval_ms"),
	}, repoMail, opts...)
	if err != nil {
		return err
	}

	repoQueue, err := newQueue(dep)
	if err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		Ctx:           dep.Ctx,
		Session:       session,
		RepoQueue:     repoQueue,
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		UUID:          dep.UUID,
		Clock:         dep.Clock,
		Validator:     dep.Validator,
		Goroutine:     dep.Goroutine,
		Instrument:    dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}

type candidateQueue interface {
	otp.Input
	Push(ctx context.Context, code string) error
	Drain(ctx context.Context) error
}

func newQueue(dep Dependency) (candidateQueue, error) {
	switch driver := dep.Config.GetString("modules.verification.input.driver"); driver {
	case "", "memory":
		return queue.NewMemory(), nil
	case "redis":
		if dep.CacheConn == nil {
			return nil, ErrCacheRequired
		}
		return queue.NewRedis(
			dep.CacheConn,
			dep.Instrument,
			dep.Config.GetString("modules.verification.input.redis_key"),
			dep.Config.GetMillisecond("modules.verification.input.redis_block_ms"),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInputDriver, driver)
	}
}
