package session

import (
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// codecPreference orders the video codecs an answer may use.
var codecPreference = []webrtc.RTPCodecCapability{
	{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
	{MimeType: webrtc.MimeTypeH264, ClockRate: 90000, SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"},
	{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000, SDPFmtpLine: "profile-id=0"},
}

// offerInfo is what the manager needs to know about an offer before
// creating the peer connection.
type offerInfo struct {
	videoMids []string
	codec     webrtc.RTPCodecCapability
}

// inspectOffer validates raw and picks the outbound video codec.
func inspectOffer(raw string) (offerInfo, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		return offerInfo{}, ErrNegotiation("invalid session description", err)
	}
	var info offerInfo
	offered := map[string]bool{}
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "video" {
			continue
		}
		mid, _ := md.Attribute(sdp.AttrKeyMID)
		info.videoMids = append(info.videoMids, mid)
		for _, f := range md.MediaName.Formats {
			pt, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				continue
			}
			c, err := sd.GetCodecForPayloadType(uint8(pt))
			if err != nil {
				continue
			}
			offered[strings.ToUpper(c.Name)] = true
		}
	}
	if len(info.videoMids) == 0 {
		return offerInfo{}, ErrNegotiation("offer has no video media line", nil)
	}
	for _, c := range codecPreference {
		if offered[strings.ToUpper(strings.TrimPrefix(c.MimeType, "video/"))] {
			info.codec = c
			return info, nil
		}
	}
	return offerInfo{}, ErrNegotiation("offer has no supported video codec (VP8, H264, VP9)", nil)
}
