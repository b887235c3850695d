// Package schedule wraps timers in explicit cancellable handles. Each
// handle is owned by the component that created it; Cancel stops future
// runs but does not interrupt a run already in progress.
package schedule

import (
	"sync"
	"time"
)

// Handle is a cancellable scheduled task.
type Handle struct {
	mu     sync.Mutex
	stop   chan struct{}
	done   bool
	timer  *time.Timer
	ticker *time.Ticker
}

// After runs fn once after d. The returned handle cancels the pending run.
func After(d time.Duration, fn func()) *Handle {
	h := &Handle{stop: make(chan struct{})}
	h.timer = time.AfterFunc(d, func() {
		select {
		case <-h.stop:
			return
		default:
		}
		fn()
	})
	return h
}

// Every runs fn every interval until the handle is cancelled.
func Every(interval time.Duration, fn func()) *Handle {
	h := &Handle{stop: make(chan struct{})}
	h.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.ticker.C:
				fn()
			}
		}
	}()
	return h
}

// Cancel stops the task. Idempotent.
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return
	}
	h.done = true
	close(h.stop)
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.ticker != nil {
		h.ticker.Stop()
	}
}
