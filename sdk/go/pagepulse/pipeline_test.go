package pagepulse

import (
	"context"
	"testing"
	"time"

	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/notify"
	"github.com/pagepulse/pagepulse/internal/record"
	"github.com/pagepulse/pagepulse/internal/sink"
	"github.com/pagepulse/pagepulse/internal/store"
)

type captureSink struct {
	batches chan sink.Batch
}

func newCaptureSink() *captureSink {
	return &captureSink{batches: make(chan sink.Batch, 16)}
}

func (c *captureSink) Deliver(_ context.Context, batch sink.Batch, _ bool) error {
	c.batches <- batch
	return nil
}

func (c *captureSink) next(t *testing.T) sink.Batch {
	t.Helper()
	select {
	case b := <-c.batches:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
		return sink.Batch{}
	}
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *captureSink) {
	t.Helper()
	cs := newCaptureSink()
	cfg := config.Default()
	cfg.BatchSize = 3
	cfg.FlushInterval = time.Hour // only explicit flushes in tests
	base := []Option{WithConfig(cfg), WithStore(store.NewMemory()), WithSink(cs)}
	p, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Close)
	return p, cs
}

func TestEmitBatchesAtThreshold(t *testing.T) {
	p, cs := newTestPipeline(t)

	p.Emit(record.TypeClick, record.ClickPayload{Element: "a"})
	p.Emit(record.TypeClick, record.ClickPayload{Element: "b"})
	if p.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", p.Pending())
	}

	p.Emit(record.TypeScrollMilestone, record.ScrollPayload{Percent: 75})
	if p.Pending() != 0 {
		t.Fatalf("pending = %d after threshold, want 0", p.Pending())
	}

	batch := cs.next(t)
	if len(batch.Events) != 3 {
		t.Fatalf("delivered %d events, want 3", len(batch.Events))
	}
	if batch.Session.ID == "" {
		t.Error("batch missing session envelope")
	}
	for _, ev := range batch.Events {
		if ev.SessionID != batch.Session.ID {
			t.Errorf("event session %q != envelope %q", ev.SessionID, batch.Session.ID)
		}
		if ev.UserID == "" || ev.Timestamp == 0 {
			t.Errorf("event missing identity stamp: %+v", ev)
		}
	}
}

func TestEmitIgnoresEmptyType(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Emit("", nil)
	if p.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", p.Pending())
	}
}

func TestFlushDrainsPartialBatch(t *testing.T) {
	p, cs := newTestPipeline(t)

	p.Emit(record.TypePageLoad, record.PageLoadPayload{LoadTimeMs: 120})
	if n := p.Flush(context.Background()); n != 1 {
		t.Fatalf("Flush = %d, want 1", n)
	}
	if got := len(cs.next(t).Events); got != 1 {
		t.Fatalf("delivered %d events, want 1", got)
	}
}

func TestCloseFlushesRemaining(t *testing.T) {
	cs := newCaptureSink()
	cfg := config.Default()
	cfg.BatchSize = 100
	cfg.FlushInterval = time.Hour
	p, err := New(WithConfig(cfg), WithStore(store.NewMemory()), WithSink(cs))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p.Emit(record.TypeClick, nil)
	p.Emit(record.TypeClick, nil)
	p.Close()

	if got := len(cs.next(t).Events); got != 2 {
		t.Fatalf("final flush delivered %d events, want 2", got)
	}

	// Second Close is a no-op.
	p.Close()
}

func TestPageProviderStampsEvents(t *testing.T) {
	page := record.Page{URL: "https://example.com/docs", Path: "/docs", Title: "Docs"}
	p, cs := newTestPipeline(t, WithPageProvider(func() record.Page { return page }))

	p.Emit(record.TypeClick, nil)
	p.Flush(context.Background())

	ev := cs.next(t).Events[0]
	if ev.Page != page {
		t.Fatalf("page = %+v, want %+v", ev.Page, page)
	}
}

func TestNotifyLifecycle(t *testing.T) {
	p, _ := newTestPipeline(t)

	a := p.Notify(notify.ShowOptions{Title: "Deploy finished", Kind: record.KindSuccess, Persistent: true})
	b := p.Notify(notify.ShowOptions{Title: "Disk almost full", Kind: record.KindWarning, Persistent: true})
	if p.Unread() != 2 {
		t.Fatalf("unread = %d, want 2", p.Unread())
	}

	list := p.Notifications()
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("history not newest-first: %+v", list)
	}

	p.MarkAsRead(a.ID)
	if p.Unread() != 1 {
		t.Fatalf("unread = %d after read, want 1", p.Unread())
	}

	p.Dismiss(b.ID)
	stats := p.Statistics()
	if stats.Total != 2 || stats.Unread != 0 || stats.Dismissed != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	p.ClearAll()
	if p.Unread() != 0 || len(p.Notifications()) != 0 {
		t.Fatal("history not cleared")
	}
}

func TestNotificationsSurviveRestart(t *testing.T) {
	s := store.NewMemory()
	cs := newCaptureSink()
	cfg := config.Default()
	cfg.FlushInterval = time.Hour

	p, err := New(WithConfig(cfg), WithStore(s), WithSink(cs))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := p.Notify(notify.ShowOptions{Title: "Payment received", Kind: record.KindPayment, Persistent: true})
	p.Close()

	p2, err := New(WithConfig(cfg), WithStore(s), WithSink(cs))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p2.Close()

	list := p2.Notifications()
	if len(list) != 1 || list[0].ID != n.ID {
		t.Fatalf("restored history = %+v, want [%s]", list, n.ID)
	}
	if p2.Unread() != 1 {
		t.Fatalf("unread after restart = %d, want 1", p2.Unread())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Gzip = true // gzip requires an endpoint
	if _, err := New(WithConfig(cfg), WithStore(store.NewMemory())); err == nil {
		t.Fatal("New accepted invalid config")
	}
}

func TestNewRejectsMissingConfigFile(t *testing.T) {
	if _, err := New(WithConfigFile("/nonexistent/pagepulse.yaml")); err == nil {
		t.Fatal("New accepted missing config file")
	}
}
