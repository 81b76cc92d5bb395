package session

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"scoped/internal/bridge"
	"scoped/pkg/types"
)

// State is the connection state of a session.
type State string

const (
	StateNew          State = "new"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateClosed       State = "closed"
)

func stateFromPeer(s webrtc.PeerConnectionState) State {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return StateConnecting
	case webrtc.PeerConnectionStateConnected:
		return StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return StateDisconnected
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		return StateClosed
	default:
		return StateNew
	}
}

// Session is one negotiated peer connection and its bridges.
type Session struct {
	id        string
	pc        *webrtc.PeerConnection
	log       zerolog.Logger
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	closing bool
	bridges []*bridge.Bridge
	running sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(id string, pc *webrtc.PeerConnection, log zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		pc:        pc,
		log:       log.With().Str("session", id).Logger(),
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateNew,
		closed:    make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.log.Info().Str("from", string(prev)).Str("to", string(st)).Msg("session state changed")
	}
}

// startBridge runs b until the session closes. It is a no-op once teardown
// has begun.
func (s *Session) startBridge(b *bridge.Bridge) bool {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return false
	}
	s.bridges = append(s.bridges, b)
	s.running.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.running.Done()
		if err := b.Run(s.ctx); err != nil {
			s.log.Debug().Err(err).Str("mid", b.Stats().Mid).Msg("bridge exited")
		}
	}()
	return true
}

// close cancels the bridges, waits up to grace for them to stop and then
// closes the peer connection. Safe to call more than once.
func (s *Session) close(grace time.Duration, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		s.cancel()

		drained := make(chan struct{})
		go func() {
			s.running.Wait()
			close(drained)
		}()
		timer := time.NewTimer(grace)
		select {
		case <-drained:
		case <-timer.C:
			s.log.Warn().Dur("grace", grace).Msg("session bridges did not stop in time; force closing")
		}
		timer.Stop()

		if err := s.pc.Close(); err != nil {
			s.log.Debug().Err(err).Msg("peer connection close")
		}
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		close(s.closed)
		s.log.Info().Str("reason", reason).Msg("session closed")
	})
}

// Info summarizes the session for listing.
func (s *Session) Info() types.SessionInfo {
	s.mu.Lock()
	state := s.state
	bridges := append([]*bridge.Bridge(nil), s.bridges...)
	s.mu.Unlock()

	last := s.createdAt
	out := types.SessionInfo{
		ID:        s.id,
		State:     string(state),
		CreatedAt: s.createdAt.Unix(),
		Bridges:   make([]types.BridgeStats, 0, len(bridges)),
	}
	for _, b := range bridges {
		st := b.Stats()
		if st.LastActivity.After(last) {
			last = st.LastActivity
		}
		out.Bridges = append(out.Bridges, st.Info())
	}
	out.LastActivity = last.Unix()
	return out
}
