package service

import (
	"sync"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

// EventSink receives the events of one streamed turn. A non-nil error from
// Emit means the client is gone and the turn is aborted.
type EventSink interface {
	Emit(event domain.EventType, data any) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event domain.EventType, data any) error

func (f EventSinkFunc) Emit(event domain.EventType, data any) error {
	return f(event, data)
}

// terminalSink tracks whether a terminal event went out and drops anything
// emitted after it.
type terminalSink struct {
	mu     sync.Mutex
	next   EventSink
	closed bool
}

func (t *terminalSink) Emit(event domain.EventType, data any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	if event.Terminal() {
		t.closed = true
	}
	return t.next.Emit(event, data)
}

func (t *terminalSink) done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
