// Package transport provides unreliable, message-oriented channels for
// encoded frames: plain UDP datagrams and WebRTC data channels configured
// without ordering or retransmission.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/blgpb/streaming-udp-video/internal/protocol"
)

// Kind selects the channel implementation for a stream.
type Kind string

const (
	KindUDP    Kind = "udp"
	KindWebRTC Kind = "webrtc"
)

// ErrTimeout is returned by Receive when no message arrived in time. It is
// the steady-state "no frame this interval" signal, not a failure.
var ErrTimeout = errors.New("transport: receive timeout")

// BindError reports that a local endpoint could not be created. It is fatal
// for the session that requested the endpoint.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("transport: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Channel is one unreliable datagram binding owned by a single session.
type Channel interface {
	// Send transmits one message. Delivery is best effort; transient network
	// drops are not reported. An error means the channel is unusable or the
	// payload is too large.
	Send(data []byte) error
	// Receive waits up to timeout for exactly one message. It returns
	// ErrTimeout if none arrived and ctx.Err() if ctx ended first.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	LocalAddr() net.Addr
	Close() error
}

// MaxDatagramSize is the largest UDP payload over IPv4 (65535 minus the IP
// and UDP headers). UDP channels reject anything larger.
const MaxDatagramSize = 65507

func checkSize(data []byte, limit int) error {
	if len(data) > limit {
		return oversizeError(len(data), limit)
	}
	return nil
}

func oversizeError(size, limit int) error {
	return fmt.Errorf("transport: %w (%d > %d bytes)", protocol.ErrOversize, size, limit)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func closedError(op string) error {
	return fmt.Errorf("transport: %s: %w", op, net.ErrClosed)
}
