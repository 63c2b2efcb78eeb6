package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrDestinationRequired is returned when the destination is empty.
var ErrDestinationRequired = errors.New("messaging: destination is required")

// Published is a message recorded by Memory.
type Published struct {
	Destination string
	Message     OutgoingMessage
}

// Memory is a Publisher that keeps messages in process. Nothing leaves the
// process; it serves local runs and tests.
type Memory struct {
	mu       sync.Mutex
	messages []Published
	closed   bool
}

// NewMemory returns an empty Memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records msg under destination.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return PublishResult{}, io.ErrClosedPipe
	}

	m.messages = append(m.messages, Published{Destination: destination, Message: msg})

	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Messages returns a copy of everything published so far.
func (m *Memory) Messages() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Published(nil), m.messages...)
}

// Close rejects further publishes.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
