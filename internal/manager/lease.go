package manager

import (
	"sync"

	"scoped/internal/pipeline"
)

// Lease is a non-owning reference to the pipeline that was current when it
// was acquired. Holders must call Release exactly once when the frame they
// submitted has finished; releasing a retired pipeline's last lease closes it.
type Lease struct {
	h    *handle
	once sync.Once
}

// Pipeline returns the leased pipeline.
func (l *Lease) Pipeline() pipeline.Pipeline { return l.h.p }

// Generation returns the load generation that produced the pipeline.
func (l *Lease) Generation() uint64 { return l.h.gen }

// PipelineID returns the registry id of the leased pipeline.
func (l *Lease) PipelineID() string { return l.h.id }

// Release unpins the pipeline. Extra calls are no-ops.
func (l *Lease) Release() { l.once.Do(l.h.unref) }
