// Package queue implements the batching engine that owns the
// pending-event buffer. Events accumulate in memory and flush when the
// batch-size threshold is reached or the periodic timer fires. A failed
// batch is re-prepended ahead of newer events so older data keeps
// temporal priority; after too many consecutive failures the whole buffer
// spills to the durable store instead of growing without bound.
package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/record"
	"github.com/pagepulse/pagepulse/internal/schedule"
	"github.com/pagepulse/pagepulse/internal/sink"
)

// SessionFunc supplies the session envelope stamped on each batch.
type SessionFunc func() sink.Session

// Options configures an Engine.
type Options struct {
	// BatchSize is the threshold that triggers an immediate flush.
	BatchSize int

	// MaxRetries is the number of consecutive failed flushes tolerated
	// before the pending buffer spills to Spill. Zero disables spilling.
	MaxRetries int

	// Spill receives the pending buffer after MaxRetries consecutive
	// failures. Typically a *sink.Local.
	Spill sink.Sink

	// Session supplies the batch session envelope. Nil yields an empty
	// session.
	Session SessionFunc

	Logger *zap.Logger
}

// Engine is the batching queue. Safe for concurrent emitters. The
// pending buffer is snapshotted and cleared synchronously on flush;
// delivery runs in the background so emitters never wait on the network.
type Engine struct {
	sink    sink.Sink
	opts    Options
	log     *zap.Logger
	started time.Time

	mu       sync.Mutex
	pending  []record.Event
	failures int

	wg sync.WaitGroup
}

// New creates an Engine delivering to the given sink.
func New(s sink.Sink, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		sink:    s,
		opts:    opts,
		log:     log,
		started: time.Now(),
	}
}

// Enqueue appends an event to the pending buffer. Reaching the batch-size
// threshold triggers an immediate flush; the buffer is cleared before
// Enqueue returns while delivery proceeds in the background.
func (e *Engine) Enqueue(ev record.Event) {
	e.mu.Lock()
	e.pending = append(e.pending, ev)
	trigger := len(e.pending) >= e.opts.BatchSize
	e.mu.Unlock()

	if trigger {
		e.Flush(context.Background(), false)
	}
}

// StartPeriodicFlush arms a recurring flush so low-traffic periods still
// drain. The returned handle stops future ticks; an in-flight delivery is
// not interrupted.
func (e *Engine) StartPeriodicFlush(interval time.Duration) *schedule.Handle {
	return schedule.Every(interval, func() {
		e.Flush(context.Background(), false)
	})
}

// Flush atomically snapshots and clears the pending buffer, then hands
// the snapshot to the sink. When synchronous, delivery completes before
// Flush returns using the sink's best-effort teardown path; otherwise
// delivery runs in the background. Returns the snapshot size.
func (e *Engine) Flush(ctx context.Context, synchronous bool) int {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return 0
	}
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	if synchronous {
		e.deliver(ctx, batch, true)
		return len(batch)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(ctx, batch, false)
	}()
	return len(batch)
}

// deliver makes one delivery attempt and applies the retry/spill policy.
func (e *Engine) deliver(ctx context.Context, batch []record.Event, synchronous bool) {
	payload := sink.Batch{Events: batch, Session: e.session()}

	err := e.sink.Deliver(ctx, payload, synchronous)
	if err == nil {
		e.mu.Lock()
		e.failures = 0
		e.mu.Unlock()
		return
	}

	e.log.Warn("flush delivery failed",
		zap.Int("events", len(batch)),
		zap.Error(err))

	e.mu.Lock()
	// Failed batch goes back to the front: older data retries before
	// anything enqueued while the delivery was in flight.
	e.pending = append(batch, e.pending...)
	e.failures++
	spill := e.opts.MaxRetries > 0 && e.failures >= e.opts.MaxRetries && e.opts.Spill != nil
	var spillBatch []record.Event
	if spill {
		spillBatch = e.pending
		e.pending = nil
		e.failures = 0
	}
	e.mu.Unlock()

	if !spill {
		return
	}

	spillPayload := sink.Batch{Events: spillBatch, Session: e.session()}
	if serr := e.opts.Spill.Deliver(ctx, spillPayload, synchronous); serr != nil {
		e.log.Warn("spill to durable store failed",
			zap.Int("events", len(spillBatch)),
			zap.Error(serr))
		// Both paths are down; keep the data in memory.
		e.mu.Lock()
		e.pending = append(spillBatch, e.pending...)
		e.mu.Unlock()
		return
	}
	e.log.Info("spilled pending events to durable store",
		zap.Int("events", len(spillBatch)))
}

// Len reports the current pending buffer size.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Wait blocks until background deliveries started so far have settled.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close waits out in-flight deliveries and performs the final synchronous
// best-effort flush. Callers cancel their periodic handle first.
func (e *Engine) Close(ctx context.Context) {
	e.wg.Wait()
	e.Flush(ctx, true)
}

// session resolves the batch session envelope.
func (e *Engine) session() sink.Session {
	if e.opts.Session != nil {
		return e.opts.Session()
	}
	return sink.Session{DurationMs: time.Since(e.started).Milliseconds()}
}
