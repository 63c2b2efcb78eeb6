package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/mailotp/internal/pkg/instrument"
	"github.com/shandysiswandi/mailotp/internal/verification/entity"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultRedisKey is the list that carries candidate codes.
	DefaultRedisKey = "mailotp:verification:candidates"
	// DefaultBlockTimeout bounds a single BLPOP so cancellation is observed.
	DefaultBlockTimeout = time.Second
)

// pushIfEmpty keeps the list at one pending candidate.
var pushIfEmpty = redis.NewScript(`
if redis.call("LLEN", KEYS[1]) > 0 then
	return 0
end
redis.call("RPUSH", KEYS[1], ARGV[1])
return 1
`)

// Redis carries candidate codes through a Redis list so they can be
// submitted from another process.
type Redis struct {
	client       *redis.Client
	ins          instrument.Instrumentation
	key          string
	blockTimeout time.Duration
}

func NewRedis(client *redis.Client, ins instrument.Instrumentation, key string, blockTimeout time.Duration) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	if blockTimeout < time.Second {
		blockTimeout = DefaultBlockTimeout
	}

	return &Redis{client: client, ins: ins, key: key, blockTimeout: blockTimeout}
}

func (r *Redis) Push(ctx context.Context, code string) error {
	ctx, span := r.ins.Tracer("verification.outbound.queue").Start(ctx, "Push")
	defer span.End()

	pushed, err := pushIfEmpty.Run(ctx, r.client, []string{r.key}, code).Int()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if pushed == 0 {
		return entity.ErrCandidatePending
	}

	return nil
}

// ReadCandidate pops the oldest candidate, polling with BLPOP until one
// arrives or ctx is done.
func (r *Redis) ReadCandidate(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		res, err := r.client.BLPop(ctx, r.blockTimeout, r.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", err
		}

		// BLPOP replies with [key, value].
		if len(res) == 2 {
			return res[1], nil
		}
	}
}

func (r *Redis) Drain(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
