package pagepulse

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/identity"
	"github.com/pagepulse/pagepulse/internal/notify"
	"github.com/pagepulse/pagepulse/internal/queue"
	"github.com/pagepulse/pagepulse/internal/record"
	"github.com/pagepulse/pagepulse/internal/schedule"
	"github.com/pagepulse/pagepulse/internal/sink"
	"github.com/pagepulse/pagepulse/internal/store"
)

// Pipeline is one process-wide event & notification pipeline instance.
type Pipeline struct {
	cfg      config.Config
	log      *zap.Logger
	store    store.Store
	identity *identity.Provider
	engine   *queue.Engine
	center   *notify.Center

	pageFn func() record.Page
	env    record.Context

	flusher     *schedule.Handle
	watchCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New creates a Pipeline. The configuration is fixed for the pipeline's
// lifetime.
func New(opts ...Option) (*Pipeline, error) {
	pc := pipelineConfig{cfg: config.Default()}
	for _, o := range opts {
		o(&pc)
	}

	if pc.cfgPath != "" {
		cfg, err := config.Load(pc.cfgPath)
		if err != nil {
			return nil, fmt.Errorf("pagepulse: load config: %w", err)
		}
		pc.cfg = cfg
	}
	pc.cfg.ApplyDefaults()
	if err := pc.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pagepulse: invalid config: %w", err)
	}

	log := pc.logger
	if log == nil {
		log = zap.NewNop()
	}

	st := pc.store
	var fileStore *store.File
	if st == nil {
		if pc.cfg.StoreDir != "" {
			fs, err := store.NewFile(pc.cfg.StoreDir)
			if err != nil {
				return nil, fmt.Errorf("pagepulse: open store: %w", err)
			}
			st = fs
			fileStore = fs
		} else {
			st = store.NewMemory()
		}
	} else if fs, ok := st.(*store.File); ok {
		fileStore = fs
	}

	provider := identity.NewProvider(st, pc.cfg.SessionTimeout, log)
	local := sink.NewLocal(st, pc.cfg.LocalHistoryCap)

	deliverTo := pc.sink
	if deliverTo == nil {
		if pc.cfg.LocalMode {
			deliverTo = local
		} else {
			deliverTo = sink.NewHTTP(pc.cfg.Endpoint, pc.cfg.Gzip, log)
		}
	}

	started := time.Now()
	engine := queue.New(deliverTo, queue.Options{
		BatchSize:  pc.cfg.BatchSize,
		MaxRetries: pc.cfg.MaxRetries,
		Spill:      local,
		Session: func() sink.Session {
			return sink.Session{
				ID:         provider.SessionID(),
				DurationMs: time.Since(started).Milliseconds(),
			}
		},
		Logger: log,
	})

	var renderer notify.Renderer
	if pc.cfg.Channels.InApp {
		renderer = pc.renderer
	}
	var desktop notify.Desktop
	if pc.cfg.Channels.Desktop {
		desktop = pc.desktop
	}
	var sound notify.Sound
	if pc.cfg.Channels.Sound {
		sound = pc.sound
	}
	center := notify.NewCenter(st, notify.Options{
		Capacity: pc.cfg.MaxNotifications,
		Renderer: renderer,
		Desktop:  desktop,
		Sound:    sound,
		Logger:   log,
	})

	env := defaultEnvContext()
	if pc.envContext != nil {
		env = *pc.envContext
	}
	pageFn := pc.pageFn
	if pageFn == nil {
		pageFn = func() record.Page { return record.Page{} }
	}

	p := &Pipeline{
		cfg:      pc.cfg,
		log:      log,
		store:    st,
		identity: provider,
		engine:   engine,
		center:   center,
		pageFn:   pageFn,
		env:      env,
	}

	p.flusher = engine.StartPeriodicFlush(pc.cfg.FlushInterval)

	// Reconcile notification state when another process writes the
	// shared store. Only applies to file-backed stores.
	if fileStore != nil {
		watchCtx, cancel := context.WithCancel(context.Background())
		p.watchCancel = cancel
		go func() {
			err := store.Watch(watchCtx, fileStore, store.KeyNotifications, center.Reconcile)
			if err != nil {
				log.Warn("store watch unavailable", zap.Error(err))
			}
		}()
	}

	return p, nil
}

// Emit captures one telemetry event. Fire-and-forget: never returns an
// error, never blocks on delivery.
func (p *Pipeline) Emit(eventType string, payload record.Payload) {
	if eventType == "" {
		return
	}
	ev := record.Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		SessionID: p.identity.SessionID(),
		UserID:    p.identity.UserID(),
		Page:      p.pageFn(),
		Data:      payload,
		Context:   p.env,
	}
	p.engine.Enqueue(ev)
}

// Notify shows a user-facing notification and returns a copy of the
// stored record. Fire-and-forget.
func (p *Pipeline) Notify(opts notify.ShowOptions) record.Notification {
	return p.center.Show(opts)
}

// MarkAsRead marks one notification read. Idempotent.
func (p *Pipeline) MarkAsRead(id string) { p.center.MarkAsRead(id) }

// MarkAllAsRead marks every retained notification read.
func (p *Pipeline) MarkAllAsRead() { p.center.MarkAllAsRead() }

// Dismiss removes a notification from display, keeping it in history.
func (p *Pipeline) Dismiss(id string) { p.center.Dismiss(id) }

// ClearAll empties the notification history.
func (p *Pipeline) ClearAll() { p.center.ClearAll() }

// Unread returns the unread notification count.
func (p *Pipeline) Unread() int { return p.center.Unread() }

// Notifications returns a newest-first copy of the notification history.
func (p *Pipeline) Notifications() []record.Notification { return p.center.Notifications() }

// Statistics summarizes the notification history.
func (p *Pipeline) Statistics() notify.Statistics { return p.center.Statistics() }

// Pending reports the number of events awaiting flush.
func (p *Pipeline) Pending() int { return p.engine.Len() }

// Flush forces a flush of the pending buffer. Delivery proceeds in the
// background; returns the number of events snapshotted.
func (p *Pipeline) Flush(ctx context.Context) int {
	return p.engine.Flush(ctx, false)
}

// Close stops the periodic flusher and the store watcher, then performs
// the final synchronous best-effort flush. Safe to call once.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.flusher.Cancel()
	if p.watchCancel != nil {
		p.watchCancel()
	}
	p.engine.Close(context.Background())
}

// defaultEnvContext snapshots the process environment once.
func defaultEnvContext() record.Context {
	zone, _ := time.Now().Zone()
	return record.Context{
		UserAgent: "pagepulse-go/" + runtime.Version(),
		Locale:    os.Getenv("LANG"),
		Platform:  runtime.GOOS,
		Timezone:  zone,
		Online:    true,
	}
}
