// Package capture produces raw frames for sender sessions.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable is returned when a source cannot produce a frame right now.
// Senders treat it as an empty frame for that cycle and keep running.
var ErrUnavailable = errors.New("capture: source unavailable")

// Frame represents a captured camera frame.
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time
}

// Source yields raw frames. Next blocks until a frame is ready or ctx is done.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// Options describe the geometry and pacing requested from a source.
type Options struct {
	Width  int
	Height int
	FPS    int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	return o
}

// Open builds a source from its description:
//
//	pattern          synthetic test card
//	file:<path>      still image repeated at the configured rate
//	camera:<index>   video device (requires the gst build tag)
func Open(desc string, opts Options) (Source, error) {
	opts = opts.withDefaults()
	kind, arg, _ := strings.Cut(desc, ":")
	switch kind {
	case "", "pattern":
		return NewPatternSource(opts), nil
	case "file":
		if arg == "" {
			return nil, fmt.Errorf("capture: file source needs a path")
		}
		return NewFileSource(arg, opts)
	case "camera":
		index := 0
		if arg != "" {
			var err error
			if index, err = strconv.Atoi(arg); err != nil || index < 0 {
				return nil, fmt.Errorf("capture: bad camera index %q", arg)
			}
		}
		return OpenCamera(index, opts)
	default:
		return nil, fmt.Errorf("capture: unknown source %q", desc)
	}
}

// pacer releases one tick per frame interval and honours cancellation.
type pacer struct {
	ticker *time.Ticker
}

func newPacer(fps int) *pacer {
	return &pacer{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

func (p *pacer) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

func (p *pacer) stop() {
	p.ticker.Stop()
}

// Unavailable returns a source that never produces frames. It keeps the
// sender's cadence so a session with a dead camera idles instead of spinning.
func Unavailable(cause error, opts Options) Source {
	return &unavailable{cause: cause, pacer: newPacer(opts.withDefaults().FPS)}
}

type unavailable struct {
	cause error
	pacer *pacer
}

func (u *unavailable) Next(ctx context.Context) (*Frame, error) {
	if err := u.pacer.wait(ctx); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, u.cause)
}

func (u *unavailable) Close() error {
	u.pacer.stop()
	return nil
}
