// Package peer negotiates WebRTC data channels that carry frames without
// ordering or retransmission, the WebRTC rendition of a datagram channel.
package peer

import (
	"github.com/cnotch/xlog"
	"github.com/pion/webrtc/v4"

	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// FramesLabel names the data channel carrying encoded frames.
const FramesLabel = "frames"

// Options tune peer connections.
type Options struct {
	// ICEServers lists STUN/TURN URLs. LAN streaming needs none.
	ICEServers []string
	// Loopback allows 127.0.0.1 candidates (same-host streaming, tests).
	Loopback bool
}

// NewPeerConnection creates a configured PeerConnection on the stack's network.
func NewPeerConnection(stack *transport.Stack, opts Options, logger *xlog.Logger) (*webrtc.PeerConnection, error) {
	se := webrtc.SettingEngine{}
	se.SetNet(stack.Net())
	se.SetIncludeLoopbackCandidate(opts.Loopback)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	cfg := webrtc.Configuration{}
	if len(opts.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: opts.ICEServers}}
	}
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debugf("peer connection state: %s", state.String())
	})
	return pc, nil
}

// gather applies desc locally and waits until every ICE candidate is in the
// local description, so one offer/answer round trip is enough.
func gather(pc *webrtc.PeerConnection, desc webrtc.SessionDescription, done <-chan struct{}) error {
	complete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return err
	}
	select {
	case <-complete:
		return nil
	case <-done:
		return errGatherAborted
	}
}
