package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFires(t *testing.T) {
	fired := make(chan struct{})
	h := After(10*time.Millisecond, func() { close(fired) })
	defer h.Cancel()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("After never fired")
	}
}

func TestAfterCancelPreventsRun(t *testing.T) {
	var ran atomic.Bool
	h := After(30*time.Millisecond, func() { ran.Store(true) })
	h.Cancel()

	time.Sleep(100 * time.Millisecond)
	if ran.Load() {
		t.Fatal("cancelled After still ran")
	}
}

func TestEveryTicksUntilCancelled(t *testing.T) {
	var ticks atomic.Int32
	h := Every(10*time.Millisecond, func() { ticks.Add(1) })

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks before deadline", ticks.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.Cancel()
	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	// One tick may already be in flight at cancellation.
	if got := ticks.Load(); got > settled+1 {
		t.Fatalf("ticks continued after Cancel: %d > %d", got, settled+1)
	}
}

func TestCancelIdempotent(t *testing.T) {
	h := After(time.Hour, func() {})
	h.Cancel()
	h.Cancel()

	h2 := Every(time.Hour, func() {})
	h2.Cancel()
	h2.Cancel()
}
