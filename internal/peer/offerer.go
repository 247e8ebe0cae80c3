package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cnotch/xlog"
	"github.com/pion/webrtc/v4"

	"github.com/blgpb/streaming-udp-video/internal/signaling"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// retryDelay paces renegotiation after a failed or lost peer.
const retryDelay = time.Second

// Offerer is the sending side. It negotiates in the background and keeps
// renegotiating whenever the peer is lost; frames sent meanwhile are dropped.
type Offerer struct {
	stack     *transport.Stack
	opts      Options
	logger    *xlog.Logger
	client    *signaling.Client
	transport *transport.DataChannelTransport

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Dial returns a send channel towards the receiver at host:port. Like a UDP
// connect it does not wait for the remote side.
func Dial(stack *transport.Stack, stream, host string, port int, opts Options, logger *xlog.Logger) (*transport.DataChannelTransport, error) {
	target := net.JoinHostPort(host, strconv.Itoa(port))
	if host == "" || port <= 0 || port > 65535 {
		return nil, &transport.BindError{Addr: target, Err: fmt.Errorf("invalid remote address")}
	}

	dialer := stack.Net().CreateDialer(&net.Dialer{Timeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	o := &Offerer{
		stack:  stack,
		opts:   opts,
		logger: logger,
		client: signaling.NewClient("ws://"+target+signaling.Path, stream, dialer.Dial),
		cancel: cancel,
	}
	o.transport = transport.NewDataChannelTransport(nil, nil, o.close)
	if err := stack.Track(o.transport); err != nil {
		cancel()
		return nil, &transport.BindError{Addr: target, Err: err}
	}

	o.wg.Add(1)
	go o.run(ctx)
	return o.transport, nil
}

func (o *Offerer) run(ctx context.Context) {
	defer o.wg.Done()
	for {
		err := o.negotiate(ctx)
		if ctx.Err() != nil {
			return
		}
		o.logger.Debugf("webrtc negotiation: %v; retrying", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// negotiate runs one peer connection until it is lost or ctx ends.
func (o *Offerer) negotiate(ctx context.Context) error {
	pc, err := NewPeerConnection(o.stack, o.opts, o.logger)
	if err != nil {
		return err
	}
	defer pc.Close()

	lost := make(chan struct{})
	var once sync.Once
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			once.Do(func() { close(lost) })
		}
	})

	dc, err := pc.CreateDataChannel(FramesLabel, transport.FramesDataChannelInit())
	if err != nil {
		return err
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := gather(pc, offer, ctx.Done()); err != nil {
		return err
	}
	offerJSON, err := json.Marshal(pc.LocalDescription())
	if err != nil {
		return err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	answerJSON, err := o.client.Exchange(exchangeCtx, offerJSON)
	cancel()
	if err != nil {
		return err
	}
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(answerJSON, &answer); err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return err
	}
	dc.OnOpen(func() {
		o.logger.Infof("frames data channel open")
	})
	o.transport.SetFramesChannel(dc)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-lost:
		return errPeerLost
	}
}

func (o *Offerer) close() error {
	o.cancel()
	o.wg.Wait()
	o.stack.Untrack(o.transport)
	return nil
}
