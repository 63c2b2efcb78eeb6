package queue

import (
	"context"

	"github.com/shandysiswandi/mailotp/internal/verification/entity"
)

// Memory holds at most one candidate code in process memory.
type Memory struct {
	ch chan string
}

func NewMemory() *Memory {
	return &Memory{ch: make(chan string, 1)}
}

// Push enqueues code, or returns entity.ErrCandidatePending when the previous
// candidate has not been read yet.
func (m *Memory) Push(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case m.ch <- code:
		return nil
	default:
		return entity.ErrCandidatePending
	}
}

// ReadCandidate blocks until a candidate is pushed or ctx is done.
func (m *Memory) ReadCandidate(ctx context.Context) (string, error) {
	select {
	case code := <-m.ch:
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Drain drops any candidate left over from a previous loop.
func (m *Memory) Drain(context.Context) error {
	for {
		select {
		case <-m.ch:
		default:
			return nil
		}
	}
}
