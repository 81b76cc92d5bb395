package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"scoped/internal/registry"
	"scoped/pkg/types"
)

// Manager owns the lifecycle of the current pipeline. Writers (Load, Unload,
// Close and load-task commits) serialize on mu; readers use atomic loads.
type Manager struct {
	mu sync.Mutex

	reg       *registry.Registry
	log       zerolog.Logger
	publisher EventPublisher
	timeout   time.Duration

	// guarded by mu
	gen    uint64
	task   *loadTask
	closed bool

	snap  atomic.Pointer[Snapshot]
	cur   atomic.Pointer[handle]
	loads atomic.Uint64

	baseCtx context.Context
	cancel  context.CancelFunc
	tasks   sync.WaitGroup

	accelErr  error
	startedAt time.Time
}

// New constructs a Manager with the provided configuration. The accelerator
// probe runs once; a missing device is logged and reported but not fatal.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		reg:       cfg.Registry,
		log:       log,
		publisher: cfg.Publisher,
		timeout:   cfg.LoadTimeout,
		baseCtx:   ctx,
		cancel:    cancel,
		startedAt: time.Now(),
	}
	m.publishLocked(&Snapshot{State: StateUnloaded})
	if err := cfg.Accelerator(); err != nil {
		m.accelErr = err
		m.log.Warn().Err(err).Msg("manager event=accelerator_unavailable")
	}
	return m
}

// Acquire pins the current pipeline for the duration of one frame. ok is
// false when nothing is loaded. The caller must Release the lease.
func (m *Manager) Acquire() (*Lease, bool) {
	// A retired handle can only be observed while it is being swapped out,
	// so a couple of retries always settle.
	for i := 0; i < 4; i++ {
		h := m.cur.Load()
		if h == nil {
			return nil, false
		}
		if h.tryRef() {
			return &Lease{h: h}, true
		}
	}
	return nil, false
}

// Ready reports whether a pipeline is loaded and usable.
func (m *Manager) Ready() bool {
	return m.snap.Load().State == StateLoaded && m.cur.Load() != nil
}

// Generation returns the latest load generation.
func (m *Manager) Generation() uint64 { return m.snap.Load().Generation }

// Pipelines lists the registry's loadable pipelines.
func (m *Manager) Pipelines() []types.PipelineInfo {
	entries := m.reg.List()
	out := make([]types.PipelineInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Info())
	}
	return out
}

// Accelerator reports the startup probe result.
func (m *Manager) Accelerator() (available bool, reason string) {
	if m.accelErr != nil {
		return false, m.accelErr.Error()
	}
	return true, ""
}

// LoadsTotal returns the number of Load calls since construction.
func (m *Manager) LoadsTotal() uint64 { return m.loads.Load() }

// Uptime returns the time since construction.
func (m *Manager) Uptime() time.Duration { return time.Since(m.startedAt) }

// publishLocked installs s as the visible snapshot. Callers hold mu, except
// New before the manager escapes.
func (m *Manager) publishLocked(s *Snapshot) {
	m.snap.Store(s)
	observeState(s)
}

func (m *Manager) emit(name, id string, gen uint64, fields map[string]any) {
	m.publisher.Publish(Event{Name: name, PipelineID: id, Generation: gen, Fields: fields})
}
