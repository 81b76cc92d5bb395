package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"scoped/internal/pipeline"
)

// State represents the lifecycle state of the current pipeline slot.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateFailed   State = "error"
)

// Snapshot is an immutable, point-in-time view of the lifecycle state.
type Snapshot struct {
	State      State
	PipelineID string
	Params     pipeline.Params
	Generation uint64
	StartedAt  time.Time // load attempt start
	FinishedAt time.Time // reached Loaded or Failed
	Err        string
	ErrKind    ErrorKind
}

// LoadElapsed reports how long the attempt took, or has taken so far while
// loading. ok is false when no attempt is associated with the snapshot.
func (s Snapshot) LoadElapsed(now time.Time) (d time.Duration, ok bool) {
	if s.StartedAt.IsZero() {
		return 0, false
	}
	if s.State == StateLoading || s.FinishedAt.IsZero() {
		return now.Sub(s.StartedAt), true
	}
	return s.FinishedAt.Sub(s.StartedAt), true
}

// handle wraps a constructed pipeline with a reference count. Close runs once
// the handle has been retired and the last lease is released.
type handle struct {
	p        pipeline.Pipeline
	id       string
	gen      uint64
	loadedAt time.Time
	log      zerolog.Logger

	refs     atomic.Int64
	retired  atomic.Bool
	once     sync.Once
	released chan struct{}
}

func newHandle(p pipeline.Pipeline, id string, gen uint64, log zerolog.Logger) *handle {
	return &handle{p: p, id: id, gen: gen, loadedAt: time.Now(), log: log, released: make(chan struct{})}
}

// tryRef pins the handle. It fails once the handle has been retired.
func (h *handle) tryRef() bool {
	h.refs.Add(1)
	if h.retired.Load() {
		h.unref()
		return false
	}
	return true
}

func (h *handle) unref() {
	if h.refs.Add(-1) == 0 && h.retired.Load() {
		h.release()
	}
}

// retire stops new leases; the pipeline is closed when in-flight ones finish.
func (h *handle) retire() {
	if h == nil {
		return
	}
	h.retired.Store(true)
	if h.refs.Load() == 0 {
		h.release()
	}
}

func (h *handle) release() {
	h.once.Do(func() {
		closePipeline(h.p, h.id, h.gen, h.log)
		close(h.released)
	})
}

func closePipeline(p pipeline.Pipeline, id string, gen uint64, log zerolog.Logger) {
	if p == nil {
		return
	}
	if err := p.Close(); err != nil {
		log.Warn().Str("pipeline", id).Uint64("generation", gen).Err(err).Msg("manager event=release_error")
		return
	}
	pipelinesReleased.Inc()
	log.Debug().Str("pipeline", id).Uint64("generation", gen).Msg("manager event=released")
}
