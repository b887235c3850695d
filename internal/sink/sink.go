// Package sink abstracts delivery of flushed event batches. A sink makes
// exactly one delivery attempt — retry policy belongs to the queue that
// owns the pending buffer, never to the sink.
package sink

import (
	"context"

	"github.com/pagepulse/pagepulse/internal/record"
)

// Session describes the emitting session for a batch payload.
type Session struct {
	ID         string `json:"id"`
	DurationMs int64  `json:"duration_ms"`
}

// Batch is the unit of delivery: a snapshot of pending events plus the
// session envelope, matching the wire contract of the collector.
type Batch struct {
	Events  []record.Event `json:"events"`
	Session Session        `json:"session"`
}

// Sink delivers one batch. When synchronous is true the caller is tearing
// down and the sink must use a bounded, best-effort primitive instead of
// an ordinary request; in that mode delivery failures are not observable.
type Sink interface {
	Deliver(ctx context.Context, batch Batch, synchronous bool) error
}
