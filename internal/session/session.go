// Package session runs one stream: a capture-encode-send loop for senders or
// a receive-decode-display loop for receivers. Each session owns its channel,
// codec and display surface; nothing is shared between sessions.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cnotch/xlog"

	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/stats"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// ErrFrameBudget reports that the first encoded frame did not fit in one
// message. The scale or quality of the stream must be lowered.
var ErrFrameBudget = errors.New("session: encoded frame exceeds message size budget")

// State is the lifecycle position of a session.
type State int32

const (
	StateIdle State = iota
	StateBound
	StateConnected
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBound:
		return "bound"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is a sender or receiver loop.
type Session interface {
	// Run blocks until ctx is cancelled (nil) or the session fails.
	Run(ctx context.Context) error
	Stream() config.Stream
	State() State
	// Err is the failure that terminated the session, nil for a normal stop.
	Err() error
	Stats() *stats.Counters
}

// Network opens the channel a session runs on.
type Network interface {
	Bind(stream config.Stream, logger *xlog.Logger) (transport.Channel, error)
	Connect(stream config.Stream, logger *xlog.Logger) (transport.Channel, error)
}

// base carries the state machine and bookkeeping common to both roles.
type base struct {
	stream   config.Stream
	logger   *xlog.Logger
	counters *stats.Counters

	state atomic.Int32
	mu    sync.Mutex
	err   error
}

func (b *base) init(stream config.Stream, logger *xlog.Logger, parent *stats.Counters) {
	if logger == nil {
		logger = xlog.L()
	}
	b.stream = stream
	b.logger = logger
	b.counters = stats.NewChild(parent)
}

func (b *base) Stream() config.Stream { return b.stream }

func (b *base) State() State { return State(b.state.Load()) }

func (b *base) Stats() *stats.Counters { return b.counters }

func (b *base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *base) setState(next State) {
	prev := State(b.state.Swap(int32(next)))
	if prev != next {
		b.logger.Infof("state %s -> %s", prev, next)
	}
}

// terminate records the outcome and logs the final counters. ctx
// cancellation is a normal stop.
func (b *base) terminate(ctx context.Context, ch transport.Channel, err error) error {
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}
	if d, ok := ch.(interface{ Dropped() uint64 }); ok && d.Dropped() > 0 {
		b.logger.Infof("channel dropped %d messages", d.Dropped())
	}

	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.setState(StateTerminated)

	if err != nil {
		b.logger.Errorf("terminated with error: %v (%s)", err, b.counters.Snapshot())
	} else {
		b.logger.Infof("terminated normally (%s)", b.counters.Snapshot())
	}
	return err
}
