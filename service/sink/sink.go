// Package sink mirrors gateway broadcast events to external consumers.
// The gateway itself is the source of truth for live session state; any
// durable storage of messages or read receipts is the responsibility of a
// listener on one of these sinks. Publishing is fire-and-forget: sink
// errors are logged and never surfaced to clients.
package sink

import (
	"context"
)

type EventSink interface {
	// Publish mirrors one event. key is the routing key (ticket id or
	// identity id), payload the same JSON the clients received.
	Publish(ctx context.Context, event, key string, payload []byte) error
	Close() error
}

// Noop drops everything; the default when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, []byte) error { return nil }
func (Noop) Close() error                                          { return nil }
