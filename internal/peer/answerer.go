package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cnotch/xlog"
	"github.com/pion/webrtc/v4"

	"github.com/blgpb/streaming-udp-video/internal/signaling"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// Answerer is the receiving side. It serves signaling on a TCP port and
// accepts one sender at a time; a new offer replaces the previous peer.
type Answerer struct {
	stack     *transport.Stack
	opts      Options
	logger    *xlog.Logger
	server    *http.Server
	transport *transport.DataChannelTransport

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	closed bool
	done   chan struct{}
}

// Listen binds localPort for signaling and returns the receive channel.
func Listen(stack *transport.Stack, localPort int, opts Options, logger *xlog.Logger) (*transport.DataChannelTransport, error) {
	a, err := listen(stack, localPort, opts, logger)
	if err != nil {
		return nil, err
	}
	return a.transport, nil
}

func listen(stack *transport.Stack, localPort int, opts Options, logger *xlog.Logger) (*Answerer, error) {
	addr := &net.TCPAddr{IP: net.IPv4zero, Port: localPort}
	ln, err := stack.Net().ListenTCP("tcp", addr)
	if err != nil {
		return nil, &transport.BindError{Addr: addr.String(), Err: err}
	}

	a := &Answerer{
		stack:  stack,
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}
	a.transport = transport.NewDataChannelTransport(nil, ln.Addr(), a.close)
	if err := stack.Track(a.transport); err != nil {
		ln.Close()
		return nil, &transport.BindError{Addr: addr.String(), Err: err}
	}

	sig := signaling.NewServer(a.handleOffer, logger)
	a.server = &http.Server{Handler: sig.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("signaling server: %v", err)
		}
	}()
	return a, nil
}

func (a *Answerer) handleOffer(stream string, payload json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return nil, fmt.Errorf("bad offer: %w", err)
	}

	pc, err := NewPeerConnection(a.stack, a.opts, a.logger)
	if err != nil {
		return nil, err
	}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != FramesLabel {
			a.logger.Warnf("ignoring data channel %q", dc.Label())
			return
		}
		dc.OnOpen(func() {
			a.logger.Infof("frames data channel open (stream %q)", stream)
		})
		a.transport.SetFramesChannel(dc)
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, err
	}
	if err := gather(pc, answer, a.done); err != nil {
		pc.Close()
		return nil, err
	}

	if err := a.adopt(pc); err != nil {
		return nil, err
	}
	return json.Marshal(pc.LocalDescription())
}

// adopt makes pc the current peer, closing the one it replaces. A peer that
// finished negotiating after the answerer closed is closed instead.
func (a *Answerer) adopt(pc *webrtc.PeerConnection) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		pc.Close()
		return errAnswererClosed
	}
	prev := a.pc
	a.pc = pc
	a.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

func (a *Answerer) close() error {
	close(a.done)
	err := a.server.Close()
	a.mu.Lock()
	a.closed = true
	pc := a.pc
	a.pc = nil
	a.mu.Unlock()
	if pc != nil {
		pc.Close()
	}
	a.stack.Untrack(a.transport)
	return err
}
