package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scoped/internal/pipeline"
	"scoped/internal/registry"
)

// loadTask is one supervised construction attempt.
type loadTask struct {
	gen     uint64
	id      string
	entry   registry.Entry
	params  pipeline.Params
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	prev   *loadTask
}

type constructResult struct {
	p   pipeline.Pipeline
	err error
}

// Load starts loading pipeline id and returns immediately with the attempt's
// generation. Any in-flight load is superseded and canceled; the previously
// loaded pipeline keeps serving until the new one commits.
//
// An unknown id is recorded as a failed attempt and returned as a NotFound
// error. All other failures are only observable through GetStatus.
func (m *Manager) Load(id string, params pipeline.Params) (uint64, error) {
	entry, found := m.reg.Lookup(id)
	params = params.Clone()
	now := time.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	m.gen++
	gen := m.gen
	m.loads.Add(1)
	prev := m.task
	if prev != nil {
		prev.cancel()
	}
	if !found {
		err := ErrNotFound(id)
		old := m.cur.Swap(nil)
		m.publishLocked(&Snapshot{
			State:      StateFailed,
			PipelineID: id,
			Params:     params,
			Generation: gen,
			StartedAt:  now,
			FinishedAt: now,
			Err:        err.Error(),
			ErrKind:    KindNotFound,
		})
		m.mu.Unlock()
		old.retire()
		loadsTotal.WithLabelValues(string(KindNotFound)).Inc()
		m.log.Warn().Str("pipeline", id).Uint64("generation", gen).Msg("manager event=load_not_found")
		m.emit(EventLoadFailed, id, gen, map[string]any{"kind": KindNotFound})
		return gen, err
	}

	ctx, cancel := context.WithTimeout(m.baseCtx, m.timeout)
	t := &loadTask{
		gen:     gen,
		id:      id,
		entry:   entry,
		params:  params,
		started: now,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		prev:    prev,
	}
	m.task = t
	m.publishLocked(&Snapshot{State: StateLoading, PipelineID: id, Params: params, Generation: gen, StartedAt: now})
	m.tasks.Add(1)
	m.mu.Unlock()

	if entry.Capabilities.RequiresAccelerator && m.accelErr != nil {
		m.log.Warn().Str("pipeline", id).Err(m.accelErr).Msg("manager event=load_without_accelerator")
	}
	m.log.Info().Str("pipeline", id).Uint64("generation", gen).Str("params", params.Encode()).Msg("manager event=load_start")
	m.emit(EventLoadStart, id, gen, nil)
	go m.run(t)
	return gen, nil
}

// Prewarm loads id in the background at startup. Failures are recorded in
// status and logged; they never abort startup.
func (m *Manager) Prewarm(id string, params pipeline.Params) {
	if id == "" {
		return
	}
	if _, err := m.Load(id, params); err != nil {
		m.log.Error().Str("pipeline", id).Err(err).Msg("manager event=prewarm_failed")
	}
}

func (m *Manager) run(t *loadTask) {
	prev := t.prev
	t.prev = nil
	defer m.tasks.Done()
	defer func() {
		// done is ordered after the predecessor's so waiting on the latest
		// task covers every construction still running.
		if prev != nil {
			<-prev.done
		}
		close(t.done)
	}()
	defer t.cancel()

	// The predecessor was canceled when this task was created.
	if prev != nil {
		select {
		case <-prev.done:
		case <-t.ctx.Done():
		}
	}
	if t.ctx.Err() != nil {
		m.commit(t, nil, m.classify(t, t.ctx.Err()))
		return
	}
	if !m.isLatest(t.gen) {
		m.commit(t, nil, nil)
		return
	}

	ch := make(chan constructResult, 1)
	go construct(t, ch)

	select {
	case r := <-ch:
		if r.err == nil && r.p == nil {
			r.err = errors.New("constructor returned no pipeline")
		}
		if r.err != nil {
			r.err = m.classify(t, r.err)
		}
		m.commit(t, r.p, r.err)
	case <-t.ctx.Done():
		m.commit(t, nil, m.classify(t, t.ctx.Err()))
		// Hold the slot until the constructor returns so constructions never
		// overlap, then release whatever it built.
		if r := <-ch; r.p != nil {
			m.log.Warn().Str("pipeline", t.id).Uint64("generation", t.gen).Msg("manager event=late_construction")
			closePipeline(r.p, t.id, t.gen, m.log)
		}
	}
}

func construct(t *loadTask, ch chan<- constructResult) {
	var r constructResult
	defer func() {
		if rec := recover(); rec != nil {
			r = constructResult{err: fmt.Errorf("constructor panic: %v", rec)}
		}
		ch <- r
	}()
	r.p, r.err = t.entry.New(t.ctx, t.params)
}

func (m *Manager) classify(t *loadTask, err error) error {
	if errors.Is(t.ctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout(t.id, m.timeout)
	}
	return ErrConstruction(t.id, err)
}

func (m *Manager) isLatest(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && !m.closed
}

// commit applies the outcome of t if t is still the latest attempt; otherwise
// the result is discarded and any constructed pipeline is released.
func (m *Manager) commit(t *loadTask, p pipeline.Pipeline, err error) {
	now := time.Now()
	m.mu.Lock()
	if t.gen != m.gen || m.closed {
		m.mu.Unlock()
		closePipeline(p, t.id, t.gen, m.log)
		loadsTotal.WithLabelValues("discarded").Inc()
		m.log.Debug().Str("pipeline", t.id).Uint64("generation", t.gen).Msg("manager event=load_discarded")
		m.emit(EventLoadDiscarded, t.id, t.gen, nil)
		return
	}
	if err != nil {
		kind := KindOf(err)
		old := m.cur.Swap(nil)
		m.publishLocked(&Snapshot{
			State:      StateFailed,
			PipelineID: t.id,
			Params:     t.params,
			Generation: t.gen,
			StartedAt:  t.started,
			FinishedAt: now,
			Err:        err.Error(),
			ErrKind:    kind,
		})
		m.mu.Unlock()
		old.retire()
		loadsTotal.WithLabelValues(string(kind)).Inc()
		m.log.Error().Str("pipeline", t.id).Uint64("generation", t.gen).Str("kind", string(kind)).Err(err).Msg("manager event=load_failed")
		m.emit(EventLoadFailed, t.id, t.gen, map[string]any{"kind": kind, "error": err.Error()})
		return
	}
	h := newHandle(p, t.id, t.gen, m.log)
	old := m.cur.Swap(h)
	m.publishLocked(&Snapshot{
		State:      StateLoaded,
		PipelineID: t.id,
		Params:     t.params,
		Generation: t.gen,
		StartedAt:  t.started,
		FinishedAt: now,
	})
	m.mu.Unlock()
	old.retire()
	elapsed := now.Sub(t.started)
	loadsTotal.WithLabelValues("loaded").Inc()
	loadDuration.Observe(elapsed.Seconds())
	m.log.Info().Str("pipeline", t.id).Uint64("generation", t.gen).Dur("elapsed", elapsed).Msg("manager event=loaded")
	m.emit(EventLoaded, t.id, t.gen, map[string]any{"elapsed_ms": elapsed.Milliseconds()})
}
