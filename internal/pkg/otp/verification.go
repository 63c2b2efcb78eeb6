package otp

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Verification is the handle of a running verification loop.
//
// It resolves exactly once; Done is closed at that point and Result returns
// the terminal outcome.
type Verification struct {
	cancel    context.CancelFunc
	expiresAt time.Time
	attempts  *atomic.Int32

	once   sync.Once
	done   chan struct{}
	result Result
}

func newVerification(cancel context.CancelFunc, expiresAt time.Time) *Verification {
	return &Verification{
		cancel:    cancel,
		expiresAt: expiresAt,
		attempts:  atomic.NewInt32(0),
		done:      make(chan struct{}),
	}
}

// Done is closed when the loop resolves.
func (v *Verification) Done() <-chan struct{} {
	return v.done
}

// Result returns the terminal outcome and true, or a polling snapshot and
// false while the loop is still running.
func (v *Verification) Result() (Result, bool) {
	select {
	case <-v.done:
		return v.result, true
	default:
		return Result{Status: StatusPolling, Attempts: v.Attempts()}, false
	}
}

// Wait blocks until the loop resolves or ctx is done.
func (v *Verification) Wait(ctx context.Context) (Result, error) {
	select {
	case <-v.done:
		return v.result, nil
	case <-ctx.Done():
		return Result{Status: StatusPolling, Attempts: v.Attempts()}, ctx.Err()
	}
}

// Attempts returns the number of wrong candidates compared so far.
func (v *Verification) Attempts() int {
	return int(v.attempts.Load())
}

// ExpiresAt returns the end of the validity window of the code under verification.
func (v *Verification) ExpiresAt() time.Time {
	return v.expiresAt
}

// Cancel stops the loop and resolves it as StatusCancelled unless it has
// already resolved. A tick still reading from the Input cannot resolve it again.
func (v *Verification) Cancel() {
	v.resolve(Result{Status: StatusCancelled, Attempts: v.Attempts()})
	v.cancel()
}

func (v *Verification) resolve(r Result) bool {
	resolved := false
	v.once.Do(func() {
		v.result = r
		resolved = true
		close(v.done)
	})
	return resolved
}

func (v *Verification) resolved() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}
