package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/cnotch/xlog"

	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/decoder"
	"github.com/blgpb/streaming-udp-video/internal/display"
	"github.com/blgpb/streaming-udp-video/internal/protocol"
	"github.com/blgpb/streaming-udp-video/internal/stats"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// Receiver shows the most recently received frame, or the fallback picture
// when no frame arrived within the stream timeout.
type Receiver struct {
	base
	network Network
	proto   protocol.Protocol
	decoder decoder.Decoder
	surface display.Surface
	now     func() time.Time

	fallback *image.RGBA

	mu   sync.Mutex
	last *image.RGBA
}

// NewReceiver creates a receiver drawing on board's surface for
// stream.Display; parent aggregates counters and may be nil.
func NewReceiver(stream config.Stream, network Network, board display.Board, logger *xlog.Logger, parent *stats.Counters) *Receiver {
	if board == nil {
		board = display.Discard
	}
	r := &Receiver{
		network: network,
		proto:   protocol.Raw,
		decoder: decoder.NewJPEGDecoder(),
		surface: board.Surface(stream.Display),
		now:     time.Now,
	}
	r.init(stream, logger, parent)
	return r
}

// LastFrame returns the last successfully decoded frame, or nil.
func (r *Receiver) LastFrame() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Receiver) Run(ctx context.Context) error {
	ch, err := r.network.Bind(r.stream, r.logger)
	if err != nil {
		r.logger.Errorf("bind port %d: %v", r.stream.LocalPort, err)
		return r.terminate(ctx, nil, err)
	}
	defer ch.Close()
	r.setState(StateBound)
	r.logger.Infof("listening on %v", ch.LocalAddr())

	r.fallback = r.loadFallback()
	r.setState(StateRunning)
	err = r.loop(ctx, ch)
	if d, ok := r.decoder.(interface{ Failures() uint64 }); ok && d.Failures() > 0 {
		r.logger.Warnf("%d payloads could not be decoded", d.Failures())
	}
	return r.terminate(ctx, ch, err)
}

func (r *Receiver) loadFallback() *image.RGBA {
	img, err := display.Fallback(r.stream.Fallback, 0, 0)
	if err != nil {
		r.logger.Warnf("fallback picture: %v; using generated card", err)
		return display.NoSignal(0, 0)
	}
	return img
}

func (r *Receiver) loop(ctx context.Context, ch transport.Channel) error {
	for {
		msg, err := ch.Receive(ctx, r.stream.Timeout)
		switch {
		case err == nil:
			r.counters.AddIn(len(msg))
			r.handle(msg)
		case errors.Is(err, transport.ErrTimeout):
			r.counters.AddTimeout()
			r.surface.Show(r.fallback)
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("receive: %w", err)
		}
	}
}

// handle decodes one message and displays it. An empty message means the
// sender had no frame and shows the fallback; an undecodable one changes
// nothing on screen.
func (r *Receiver) handle(msg []byte) {
	encoded := r.proto.Unpackage(msg)
	if len(encoded) == 0 {
		r.counters.AddEmpty()
		r.surface.Show(r.fallback)
		return
	}
	img := r.decoder.Decode(encoded)
	if decoder.IsEmpty(img) {
		r.counters.AddBadFrame()
		if r.logger.LevelEnabled(xlog.DebugLevel) {
			r.logger.Debugf("undecodable frame of %d bytes", len(encoded))
		}
		return
	}

	r.mu.Lock()
	r.last = img
	r.mu.Unlock()

	if r.stream.Overlay {
		img = display.Overlay(img, display.Timestamp(r.now()))
	}
	r.surface.Show(img)
}
