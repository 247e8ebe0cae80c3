package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/blgpb/streaming-udp-video/internal/protocol"
)

// inboxSize bounds the receive backlog; the oldest message is dropped first.
const inboxSize = 4

// DataChannelTransport implements Channel over a WebRTC DataChannel opened
// with Ordered=false and MaxRetransmits=0.
type DataChannelTransport struct {
	mu       sync.Mutex
	framesDC *webrtc.DataChannel

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	onClose   func() error
	dropped   atomic.Uint64
	local     net.Addr
}

// NewDataChannelTransport wraps framesDC, which may be nil until the remote
// side opens one (see SetFramesChannel).
func NewDataChannelTransport(framesDC *webrtc.DataChannel, local net.Addr, onClose func() error) *DataChannelTransport {
	t := &DataChannelTransport{
		inbox:   make(chan []byte, inboxSize),
		done:    make(chan struct{}),
		onClose: onClose,
		local:   local,
	}
	if framesDC != nil {
		t.SetFramesChannel(framesDC)
	}
	return t
}

// FramesDataChannelInit is the unreliable configuration every frames channel uses.
func FramesDataChannelInit() *webrtc.DataChannelInit {
	ordered := false
	maxRetransmits := uint16(0)
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	}
}

// SetFramesChannel sets or replaces the frames DataChannel (used when a new
// remote peer negotiates one).
func (t *DataChannelTransport) SetFramesChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.framesDC = dc
	t.mu.Unlock()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.deliver(msg.Data)
	})
}

func (t *DataChannelTransport) deliver(data []byte) {
	for {
		select {
		case <-t.done:
			return
		case t.inbox <- data:
			return
		default:
		}
		// Full: drop the oldest and retry.
		select {
		case <-t.inbox:
			t.dropped.Add(1)
		default:
		}
	}
}

func (t *DataChannelTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return closedError("send")
	default:
	}
	if err := checkSize(data, protocol.MaxMessageSize); err != nil {
		return err
	}
	t.mu.Lock()
	dc := t.framesDC
	t.mu.Unlock()
	// A channel that is not negotiated yet, or is being renegotiated, loses
	// the frame like any other datagram.
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		t.dropped.Add(1)
		return nil
	}
	if err := dc.Send(data); err != nil {
		t.dropped.Add(1)
	}
	return nil
}

func (t *DataChannelTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case <-t.done:
		return nil, closedError("receive")
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-t.inbox:
		return msg, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, closedError("receive")
	}
}

func (t *DataChannelTransport) LocalAddr() net.Addr {
	return t.local
}

// Dropped returns messages lost to a full inbox or an unopened channel.
func (t *DataChannelTransport) Dropped() uint64 {
	return t.dropped.Load()
}

func (t *DataChannelTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		dc := t.framesDC
		t.mu.Unlock()
		if dc != nil {
			dc.Close()
		}
		if t.onClose != nil {
			err = t.onClose()
		}
	})
	return err
}
