package session

import (
	"net"

	"github.com/cnotch/xlog"

	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/peer"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// StackNetwork opens UDP channels on a stack, or WebRTC data channels for
// streams configured with the webrtc transport.
type StackNetwork struct {
	Stack *transport.Stack
}

func (n StackNetwork) Bind(stream config.Stream, logger *xlog.Logger) (transport.Channel, error) {
	if transport.Kind(stream.Transport) == transport.KindWebRTC {
		ch, err := peer.Listen(n.Stack, stream.LocalPort, peerOptions(stream), logger)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	return n.Stack.Bind(stream.LocalPort)
}

func (n StackNetwork) Connect(stream config.Stream, logger *xlog.Logger) (transport.Channel, error) {
	if transport.Kind(stream.Transport) == transport.KindWebRTC {
		ch, err := peer.Dial(n.Stack, stream.Name, stream.RemoteHost, stream.RemotePort, peerOptions(stream), logger)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	return n.Stack.Connect(stream.RemoteHost, stream.RemotePort)
}

func peerOptions(stream config.Stream) peer.Options {
	return peer.Options{
		ICEServers: stream.ICEServers,
		Loopback:   stream.ICELoopback || isLoopbackHost(stream.RemoteHost),
	}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
