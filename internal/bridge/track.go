package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const (
	// maxLate is how many packets the sample builder holds while waiting
	// for a frame to complete.
	maxLate = 128
	// defaultFrameDuration is used when a frame carries no duration (30 fps).
	defaultFrameDuration = time.Second / 30
)

// RTPReader is satisfied by *webrtc.TrackRemote.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// SampleWriter is satisfied by *webrtc.TrackLocalStaticSample.
type SampleWriter interface {
	WriteSample(s media.Sample) error
}

// RTCPWriter is satisfied by *webrtc.PeerConnection.
type RTCPWriter interface {
	WriteRTCP(pkts []rtcp.Packet) error
}

// Depacketizer returns an RTP depacketizer for a negotiated video codec.
func Depacketizer(mimeType string) (rtp.Depacketizer, error) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8):
		return &codecs.VP8Packet{}, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP9):
		return &codecs.VP9Packet{}, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		return &codecs.H264Packet{}, nil
	default:
		return nil, fmt.Errorf("unsupported video codec %q", mimeType)
	}
}

// TrackSource assembles RTP packets from an inbound track into frames.
type TrackSource struct {
	r  RTPReader
	sb *samplebuilder.SampleBuilder
}

// NewTrackSource builds a source for a track negotiated with codec.
func NewTrackSource(r RTPReader, codec webrtc.RTPCodecParameters) (*TrackSource, error) {
	d, err := Depacketizer(codec.MimeType)
	if err != nil {
		return nil, err
	}
	clock := codec.ClockRate
	if clock == 0 {
		clock = 90000
	}
	return &TrackSource{r: r, sb: samplebuilder.New(maxLate, d, clock)}, nil
}

// ReadFrame returns the next complete frame. It returns the reader's error
// (io.EOF once the track is closed).
func (s *TrackSource) ReadFrame(ctx context.Context) (Frame, error) {
	for {
		if smp := s.sb.Pop(); smp != nil {
			return Frame{
				Data:      smp.Data,
				Duration:  smp.Duration,
				Timestamp: smp.PacketTimestamp,
				Received:  time.Now(),
			}, nil
		}
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		pkt, _, err := s.r.ReadRTP()
		if err != nil {
			return Frame{}, err
		}
		s.sb.Push(pkt)
	}
}

// TrackSink writes processed frames to an outbound sample track.
type TrackSink struct {
	w SampleWriter
}

func NewTrackSink(w SampleWriter) *TrackSink { return &TrackSink{w: w} }

// WriteFrame writes f preserving its duration.
func (s *TrackSink) WriteFrame(f Frame) error {
	d := f.Duration
	if d <= 0 {
		d = defaultFrameDuration
	}
	return s.w.WriteSample(media.Sample{Data: f.Data, Duration: d, PacketTimestamp: f.Timestamp})
}

// RequestKeyframe sends a Picture Loss Indication for ssrc.
func RequestKeyframe(w RTCPWriter, ssrc uint32) error {
	return w.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}})
}
