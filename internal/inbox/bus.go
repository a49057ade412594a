// Package inbox carries the process-wide "inbox changed" signal. Any
// component that may have changed the read state of messages or
// notifications emits it; unread counters and notification previews
// subscribe to it and refetch.
package inbox

import (
	"sync/atomic"

	"github.com/nhle/boletin/internal/signal"
)

// EventName identifies the inbox-changed signal in logs and diagnostics.
const EventName = "boletin.inbox-changed"

// Bus is a zero-payload publish/subscribe signal. The zero value is
// ready to use; most callers share one Bus created at startup.
type Bus struct {
	b       signal.Broadcaster[struct{}]
	emitted atomic.Int64
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Emit notifies every subscriber registered at the time of the call.
func (b *Bus) Emit() {
	b.emitted.Add(1)
	b.b.Emit(struct{}{})
}

// Subscribe registers handler and returns its unsubscribe function.
func (b *Bus) Subscribe(handler func()) (unsubscribe func()) {
	return b.b.Subscribe(func(struct{}) { handler() })
}

// Emitted returns the number of emissions since the bus was created.
func (b *Bus) Emitted() int64 {
	return b.emitted.Load()
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	return b.b.Len()
}
