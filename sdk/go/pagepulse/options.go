package pagepulse

import (
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/notify"
	"github.com/pagepulse/pagepulse/internal/record"
	"github.com/pagepulse/pagepulse/internal/sink"
	"github.com/pagepulse/pagepulse/internal/store"
)

// Option configures a Pipeline at creation time.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	cfg        config.Config
	cfgPath    string
	logger     *zap.Logger
	store      store.Store
	sink       sink.Sink
	renderer   notify.Renderer
	desktop    notify.Desktop
	sound      notify.Sound
	pageFn     func() record.Page
	envContext *record.Context
}

// WithConfig supplies the full configuration directly.
func WithConfig(cfg config.Config) Option {
	return func(p *pipelineConfig) { p.cfg = cfg }
}

// WithConfigFile loads configuration from a yaml file.
func WithConfigFile(path string) Option {
	return func(p *pipelineConfig) { p.cfgPath = path }
}

// WithLogger sets the structured logger. Default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *pipelineConfig) { p.logger = log }
}

// WithStore overrides the durable store. Default is a file store under
// the configured store_dir, or an in-memory store when none is set.
func WithStore(s store.Store) Option {
	return func(p *pipelineConfig) { p.store = s }
}

// WithSink overrides the delivery sink. Default follows the config:
// durable-local in local_mode, HTTP otherwise.
func WithSink(s sink.Sink) Option {
	return func(p *pipelineConfig) { p.sink = s }
}

// WithRenderer sets the in-app notification renderer.
func WithRenderer(r notify.Renderer) Option {
	return func(p *pipelineConfig) { p.renderer = r }
}

// WithDesktop sets the desktop notification channel.
func WithDesktop(d notify.Desktop) Option {
	return func(p *pipelineConfig) { p.desktop = d }
}

// WithSound sets the sound cue channel.
func WithSound(s notify.Sound) Option {
	return func(p *pipelineConfig) { p.sound = s }
}

// WithPageProvider sets the callback snapshotting the active page for
// each emitted event.
func WithPageProvider(fn func() record.Page) Option {
	return func(p *pipelineConfig) { p.pageFn = fn }
}

// WithEnvContext overrides the environment snapshot stamped on events.
func WithEnvContext(ctx record.Context) Option {
	return func(p *pipelineConfig) { p.envContext = &ctx }
}
