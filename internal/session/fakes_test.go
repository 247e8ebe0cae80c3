package session

import (
	"context"
	"fmt"
	"image"
	"net"
	"sync"
	"time"

	"github.com/cnotch/xlog"

	"github.com/blgpb/streaming-udp-video/internal/capture"
	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/protocol"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// memChannel delivers queued messages, then times out like an idle socket.
type memChannel struct {
	inbox chan []byte
	// limit rejects larger sends as oversize when set.
	limit int

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newMemChannel(msgs ...[]byte) *memChannel {
	ch := &memChannel{inbox: make(chan []byte, len(msgs)+16)}
	for _, m := range msgs {
		ch.inbox <- m
	}
	return ch
}

func (c *memChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if c.limit > 0 && len(data) > c.limit {
		return fmt.Errorf("%w: %d bytes", protocol.ErrOversize, len(data))
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *memChannel) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-c.inbox:
		return m, nil
	case <-timer.C:
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memChannel) LocalAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (c *memChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *memChannel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *memChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// memNetwork hands out ch, or fails with err.
type memNetwork struct {
	ch  transport.Channel
	err error
}

func (n memNetwork) Bind(config.Stream, *xlog.Logger) (transport.Channel, error) {
	if n.err != nil {
		return nil, n.err
	}
	return n.ch, nil
}

func (n memNetwork) Connect(config.Stream, *xlog.Logger) (transport.Channel, error) {
	return n.Bind(config.Stream{}, nil)
}

// stillSource yields img as fast as it is asked for.
type stillSource struct {
	img *image.RGBA
	err error
}

func (s stillSource) Next(ctx context.Context) (*capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		time.Sleep(time.Millisecond)
		return nil, s.err
	}
	return &capture.Frame{Image: s.img, Timestamp: time.Now()}, nil
}

func (s stillSource) Close() error { return nil }

func receiverStream(timeout time.Duration) config.Stream {
	s := config.Stream{Name: "rx", Role: config.RoleReceiver, LocalPort: 4000, Timeout: timeout}
	s.ApplyDefaults(0)
	return s
}

func senderStream(scale float64, quality int) config.Stream {
	s := config.Stream{Name: "tx", Role: config.RoleSender, RemoteHost: "127.0.0.1", RemotePort: 4000, Scale: scale, Quality: quality}
	s.ApplyDefaults(0)
	return s
}
