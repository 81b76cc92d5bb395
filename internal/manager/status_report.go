package manager

import (
	"time"

	"scoped/pkg/types"
)

// GetStatus returns the current lifecycle snapshot. It is lock-free and never
// blocks on an in-flight load.
func (m *Manager) GetStatus() Snapshot {
	s := *m.snap.Load()
	s.Params = s.Params.Clone()
	return s
}

// Status projects GetStatus into the wire representation.
func (m *Manager) Status() types.PipelineStatusResponse {
	return StatusResponse(m.GetStatus(), time.Now())
}

// StatusResponse converts a snapshot into its wire representation as of now.
func StatusResponse(s Snapshot, now time.Time) types.PipelineStatusResponse {
	out := types.PipelineStatusResponse{
		Status:     string(s.State),
		PipelineID: s.PipelineID,
		LoadParams: s.Params,
		Generation: s.Generation,
	}
	if d, ok := s.LoadElapsed(now); ok {
		ms := d.Milliseconds()
		out.ElapsedMS = &ms
	}
	switch s.State {
	case StateLoaded:
		out.LoadedAt = s.FinishedAt.Unix()
	case StateFailed:
		out.ErrorMessage = s.Err
		out.ErrorKind = string(s.ErrKind)
	}
	return out
}
