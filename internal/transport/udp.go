package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/blgpb/streaming-udp-video/internal/protocol"
)

// udpChannel sends to a fixed remote (if any) and receives on its local
// port. Receive is used from a single goroutine and reuses one buffer.
type udpChannel struct {
	conn   net.PacketConn
	remote net.Addr
	buf    []byte

	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
	onClose   func()
}

func newUDPChannel(conn net.PacketConn, remote net.Addr) *udpChannel {
	return &udpChannel{
		conn:   conn,
		remote: remote,
		buf:    make([]byte, protocol.MaxMessageSize),
	}
}

func (c *udpChannel) Send(data []byte) error {
	if c.closed.Load() {
		return closedError("send")
	}
	if c.remote == nil {
		return fmt.Errorf("transport: send on a listen-only channel")
	}
	if err := checkSize(data, MaxDatagramSize); err != nil {
		return err
	}
	if _, err := c.conn.WriteTo(data, c.remote); err != nil {
		if c.closed.Load() || errors.Is(err, net.ErrClosed) {
			return closedError("send")
		}
		if errors.Is(err, syscall.EMSGSIZE) {
			return oversizeError(len(data), MaxDatagramSize)
		}
		// Refused, unreachable, buffer full: the datagram is simply lost.
		c.dropped.Add(1)
	}
	return nil
}

func (c *udpChannel) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if c.closed.Load() {
		return nil, closedError("receive")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("transport: set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, _, err := c.conn.ReadFrom(c.buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if c.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, closedError("receive")
		}
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transport: receive: %w", err)
	}
	msg := make([]byte, n)
	copy(msg, c.buf[:n])
	return msg, nil
}

func (c *udpChannel) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Dropped returns how many sends the network refused.
func (c *udpChannel) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *udpChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}
