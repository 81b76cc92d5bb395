// Package session negotiates peer connections and wires each negotiated
// video media line to a bridge that runs frames through the current pipeline.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"scoped/internal/bridge"
	"scoped/pkg/types"
)

const (
	DefaultGatherTimeout = 5 * time.Second
	DefaultShutdownGrace = 2 * time.Second
)

// Config configures a Manager.
type Config struct {
	// Resolver hands bridges the current pipeline. Required.
	Resolver      bridge.Resolver
	ICEServers    []webrtc.ICEServer
	GatherTimeout time.Duration
	ShutdownGrace time.Duration
	FrameTimeout  time.Duration
	QueueCapacity int
	// UDPPortMin/UDPPortMax restrict ICE host candidates when both are set.
	UDPPortMin uint16
	UDPPortMax uint16
	// IncludeLoopback gathers loopback candidates (local testing).
	IncludeLoopback bool
	Logger          *zerolog.Logger
}

// Manager owns every open Session. Sessions negotiate independently; the
// mutex only guards the session map.
type Manager struct {
	api *webrtc.API
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// Answer is the result of a successful negotiation.
type Answer struct {
	SessionID   string
	Description webrtc.SessionDescription
}

// New builds the pion API (default codecs and interceptors, zerolog-backed
// pion logging) and returns an empty Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("session: resolver is required")
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = DefaultGatherTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "session").Logger()
	}
	api, err := newAPI(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Manager{api: api, cfg: cfg, log: log, sessions: make(map[string]*Session)}, nil
}

func newAPI(cfg Config, log zerolog.Logger) (*webrtc.API, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, err
	}
	se := webrtc.SettingEngine{}
	se.LoggerFactory = NewLoggerFactory(log)
	if cfg.UDPPortMin > 0 && cfg.UDPPortMax >= cfg.UDPPortMin {
		if err := se.SetEphemeralUDPPortRange(cfg.UDPPortMin, cfg.UDPPortMax); err != nil {
			return nil, err
		}
	}
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	return webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}

// HandleOffer creates a session for offer and returns its answer. Callers
// are expected to have checked that a pipeline is loaded; bridges drop
// frames while none is.
func (m *Manager) HandleOffer(ctx context.Context, offer webrtc.SessionDescription) (Answer, error) {
	if offer.Type != webrtc.SDPTypeOffer {
		return Answer{}, ErrNegotiation("expected description of type offer, got "+offer.Type.String(), nil)
	}
	info, err := inspectOffer(offer.SDP)
	if err != nil {
		return Answer{}, err
	}

	pc, err := m.api.NewPeerConnection(webrtc.Configuration{ICEServers: m.cfg.ICEServers})
	if err != nil {
		return Answer{}, ErrNegotiation("create peer connection", err)
	}
	s := newSession(uuid.NewString(), pc, m.log)
	if err := m.add(s); err != nil {
		_ = pc.Close()
		return Answer{}, err
	}
	fail := func(msg string, err error) (Answer, error) {
		m.remove(s, "negotiation failed")
		return Answer{}, ErrNegotiation(msg, err)
	}

	// One outbound track per inbound video line; pion pairs them with the
	// offer's m-lines on SetRemoteDescription.
	for i := range info.videoMids {
		track, err := webrtc.NewTrackLocalStaticSample(info.codec, fmt.Sprintf("video%d", i), "scope-"+s.id)
		if err != nil {
			return fail("create outbound track", err)
		}
		sender, err := pc.AddTrack(track)
		if err != nil {
			return fail("add outbound track", err)
		}
		go drainRTCP(sender)
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		m.attach(s, remote, receiver)
	})
	pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		s.log.Debug().Str("ice_state", st.String()).Msg("ice state changed")
	})
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.setState(stateFromPeer(st))
		if st == webrtc.PeerConnectionStateFailed || st == webrtc.PeerConnectionStateClosed {
			go m.remove(s, "connection "+st.String())
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail("apply offer", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail("create answer", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail("apply answer", err)
	}
	timer := time.NewTimer(m.cfg.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		err := errTransient("ice gathering incomplete after %s", m.cfg.GatherTimeout)
		s.log.Debug().Bool("noise", true).Err(err).Msg("returning partial answer")
	case <-ctx.Done():
		return fail("negotiation canceled", ctx.Err())
	}

	local := pc.LocalDescription()
	if local == nil {
		return fail("no local description", nil)
	}
	sessionsTotal.Inc()
	s.log.Info().Int("video_lines", len(info.videoMids)).Str("codec", info.codec.MimeType).Msg("session negotiated")
	return Answer{SessionID: s.id, Description: *local}, nil
}

// attach wires an inbound track to the outbound track of the same
// transceiver through a new bridge.
func (m *Manager) attach(s *Session, remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	if remote.Kind() != webrtc.RTPCodecTypeVideo {
		s.log.Debug().Str("kind", remote.Kind().String()).Msg("ignoring non-video track")
		return
	}
	var (
		mid   string
		local *webrtc.TrackLocalStaticSample
	)
	for _, tr := range s.pc.GetTransceivers() {
		if tr.Receiver() != receiver {
			continue
		}
		mid = tr.Mid()
		if snd := tr.Sender(); snd != nil {
			local, _ = snd.Track().(*webrtc.TrackLocalStaticSample)
		}
		break
	}
	if local == nil {
		s.log.Warn().Str("mid", mid).Msg("no outbound track for inbound video; not bridging")
		return
	}
	src, err := bridge.NewTrackSource(remote, remote.Codec())
	if err != nil {
		s.log.Warn().Str("mid", mid).Err(err).Msg("cannot bridge track")
		return
	}
	ssrc := uint32(remote.SSRC())
	log := s.log
	b := bridge.New(bridge.Config{
		Mid:           mid,
		Resolver:      m.cfg.Resolver,
		Source:        src,
		Sink:          bridge.NewTrackSink(local),
		QueueCapacity: m.cfg.QueueCapacity,
		FrameTimeout:  m.cfg.FrameTimeout,
		Logger:        &log,
		OnPipelineChange: func(gen uint64) {
			if err := bridge.RequestKeyframe(s.pc, ssrc); err != nil {
				s.log.Debug().Err(err).Msg("keyframe request failed")
			}
		},
	})
	if s.startBridge(b) {
		s.log.Info().Str("mid", mid).Str("codec", remote.Codec().MimeType).Msg("bridge attached")
	}
}

// drainRTCP reads RTCP for an outbound track so interceptors keep running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (m *Manager) add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrShuttingDown
	}
	m.sessions[s.id] = s
	sessionsActive.Set(float64(len(m.sessions)))
	return nil
}

// remove unregisters s and tears it down.
func (m *Manager) remove(s *Session, reason string) {
	m.mu.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
		sessionsActive.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()
	s.close(m.cfg.ShutdownGrace, reason)
}

// Close stops the session with id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound(id)
	}
	m.remove(s, "stopped")
	return nil
}

// Shutdown closes every session concurrently. Each session gets the
// configured grace period before its peer connection is force-closed.
// Offers received afterwards are rejected.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	sessionsActive.Set(0)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.close(m.cfg.ShutdownGrace, "shutdown")
		}(s)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info().Int("sessions", len(all)).Msg("session manager shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sessions lists open sessions ordered by creation time.
func (m *Manager) Sessions() []types.SessionInfo {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })
	out := make([]types.SessionInfo, 0, len(all))
	for _, s := range all {
		out = append(out, s.Info())
	}
	return out
}
