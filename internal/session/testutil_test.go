package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	"scoped/internal/bridge"
)

// nopResolver never has a pipeline; bridges drop every frame.
var nopResolver = bridge.ResolverFunc(func() (bridge.Lease, bool) { return nil, false })

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(Config{
		Resolver:        nopResolver,
		GatherTimeout:   2 * time.Second,
		ShutdownGrace:   200 * time.Millisecond,
		IncludeLoopback: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

// newClientOffer builds a real pion peer connection offering videoLines
// sendrecv video lines (and one audio line when withAudio is set).
func newClientOffer(t *testing.T, videoLines int, withAudio bool) (*webrtc.PeerConnection, webrtc.SessionDescription) {
	t.Helper()
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		t.Fatalf("codecs: %v", err)
	}
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("client pc: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	for i := 0; i < videoLines; i++ {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, fmt.Sprintf("video%d", i), "client")
		if err != nil {
			t.Fatalf("track: %v", err)
		}
		if _, err := pc.AddTrack(track); err != nil {
			t.Fatalf("add track: %v", err)
		}
	}
	if withAudio {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
			t.Fatalf("audio transceiver: %v", err)
		}
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local: %v", err)
	}
	select {
	case <-gathered:
	case <-time.After(3 * time.Second):
	}
	return pc, *pc.LocalDescription()
}

func countVideoLines(t *testing.T, raw string) int {
	t.Helper()
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		t.Fatalf("parse sdp: %v", err)
	}
	n := 0
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media == "video" {
			n++
		}
	}
	return n
}

// videoMsids returns the msid attribute of each video line in raw.
func videoMsids(t *testing.T, raw string) []string {
	t.Helper()
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		t.Fatalf("parse sdp: %v", err)
	}
	var out []string
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "video" {
			continue
		}
		if v, ok := md.Attribute("msid"); ok {
			out = append(out, v)
		}
	}
	return out
}
