package manager

import (
	"context"
)

// Unload releases the current pipeline and moves to Unloaded. It is a no-op
// when nothing is loaded. An in-flight load is left to finish on its own; its
// generation is stale after Unload so its result is discarded.
func (m *Manager) Unload() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if m.snap.Load().State == StateUnloaded && m.cur.Load() == nil {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	gen := m.gen
	old := m.cur.Swap(nil)
	m.publishLocked(&Snapshot{State: StateUnloaded, Generation: gen})
	m.mu.Unlock()

	id := ""
	if old != nil {
		id = old.id
	}
	old.retire()
	m.log.Info().Str("pipeline", id).Uint64("generation", gen).Msg("manager event=unloaded")
	m.emit(EventUnloaded, id, gen, nil)
	return nil
}

// Close cancels in-flight loads, retires the current pipeline and waits for
// load tasks to exit or ctx to be done. Subsequent Loads return ErrClosed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.gen++
	m.cancel()
	old := m.cur.Swap(nil)
	m.publishLocked(&Snapshot{State: StateUnloaded, Generation: m.gen})
	m.mu.Unlock()
	old.retire()

	done := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info().Msg("manager event=closed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
