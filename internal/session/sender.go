package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cnotch/xlog"
	"github.com/kelindar/rate"

	"github.com/blgpb/streaming-udp-video/internal/capture"
	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/display"
	"github.com/blgpb/streaming-udp-video/internal/encoder"
	"github.com/blgpb/streaming-udp-video/internal/protocol"
	"github.com/blgpb/streaming-udp-video/internal/stats"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// Sender captures, encodes and sends one frame per message.
type Sender struct {
	base
	network Network
	proto   protocol.Protocol
	encoder encoder.Encoder
	preview display.Surface
	limiter *rate.Limiter
	source  capture.Source
}

// NewSender creates a sender for stream. board receives the local preview
// when stream.Preview is set; parent aggregates counters and may be nil.
func NewSender(stream config.Stream, network Network, board display.Board, logger *xlog.Logger, parent *stats.Counters) *Sender {
	s := &Sender{
		network: network,
		proto:   protocol.Raw,
		encoder: encoder.NewJPEGEncoder(stream.Quality),
	}
	s.init(stream, logger, parent)
	if stream.Preview && board != nil {
		s.preview = board.Surface(stream.Display)
	}
	if stream.MaxFPS > 0 {
		s.limiter = rate.New(stream.MaxFPS, time.Second)
	}
	return s
}

// UseSource replaces the source named by stream.Source. Call before Run.
func (s *Sender) UseSource(src capture.Source) {
	s.source = src
}

func (s *Sender) Run(ctx context.Context) error {
	ch, err := s.network.Connect(s.stream, s.logger)
	if err != nil {
		s.logger.Errorf("connect %s:%d: %v", s.stream.RemoteHost, s.stream.RemotePort, err)
		return s.terminate(ctx, nil, err)
	}
	defer ch.Close()
	s.setState(StateConnected)

	src := s.openSource()
	defer src.Close()

	s.setState(StateRunning)
	err = s.loop(ctx, src, ch)
	return s.terminate(ctx, ch, err)
}

func (s *Sender) openSource() capture.Source {
	if s.source != nil {
		return s.source
	}
	opts := capture.Options{FPS: s.stream.FPS}
	src, err := capture.Open(s.stream.Source, opts)
	if err != nil {
		// The session keeps its channel and idles: a dead camera shows as a
		// missing stream on the receiver.
		s.logger.Errorf("capture %s: %v", s.stream.Source, err)
		return capture.Unavailable(err, opts)
	}
	return src
}

func (s *Sender) loop(ctx context.Context, src capture.Source, out transport.Channel) error {
	// The first frame that reaches the channel checks the size budget: the
	// protocol ceiling first, then the channel's own.
	fitted := false
	for {
		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, capture.ErrUnavailable) {
				s.logger.Debugf("capture: %v", err)
			}
			s.counters.AddCaptureMiss()
			continue
		}
		if s.limiter != nil && s.limiter.Limit() {
			s.counters.AddDropped()
			continue
		}

		msg, err := s.prepare(frame)
		if err != nil && !errors.Is(err, protocol.ErrOversize) {
			s.counters.AddBadFrame()
			s.logger.Warnf("encode: %v", err)
			continue
		}
		if err == nil && len(msg) == 0 {
			s.counters.AddEmpty()
			continue
		}
		if err == nil {
			err = out.Send(msg)
			if err != nil && ctx.Err() != nil {
				return nil
			}
		}

		switch {
		case err == nil:
			fitted = true
			s.counters.AddOut(len(msg))
		case errors.Is(err, protocol.ErrOversize):
			s.counters.AddOversize()
			if !fitted {
				return fmt.Errorf("%w: %v (scale %g, quality %d)", ErrFrameBudget, err, s.stream.Scale, s.stream.Quality)
			}
		default:
			return fmt.Errorf("send: %w", err)
		}
	}
}

// prepare turns a raw frame into the message to send.
func (s *Sender) prepare(frame *capture.Frame) ([]byte, error) {
	img := capture.Scale(frame.Image, s.stream.Scale)
	if s.stream.Overlay {
		img = display.Overlay(img, display.Timestamp(frame.Timestamp.Add(s.stream.ClockOffset)))
	}
	if s.preview != nil {
		s.preview.Show(img)
	}
	data, err := s.encoder.Encode(img)
	if err != nil {
		return nil, err
	}
	return s.proto.Package(data)
}
