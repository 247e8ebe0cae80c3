package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cnotch/xlog"

	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/display"
	"github.com/blgpb/streaming-udp-video/internal/manager"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// shutdownGrace bounds how long Close waits for sessions after cancel.
const shutdownGrace = 5 * time.Second

// Runner owns the network stack and the sessions running on it.
type Runner struct {
	stack   *transport.Stack
	manager *manager.Manager
	logger  *xlog.Logger
	done    chan struct{}
}

// Start initialises the network stack and launches streams.
func Start(ctx context.Context, streams []config.Stream, board display.Board, logger *xlog.Logger) (*Runner, error) {
	if logger == nil {
		logger = xlog.L()
	}
	stack, err := transport.Init()
	if err != nil {
		return nil, err
	}
	m := manager.New(stack, board, logger)
	if err := m.StartSessions(ctx, streams); err != nil {
		stack.Close()
		return nil, err
	}

	r := &Runner{stack: stack, manager: m, logger: logger, done: make(chan struct{})}
	go func() {
		m.Wait()
		close(r.done)
	}()
	return r, nil
}

// Done is closed once every session has terminated.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until every session has terminated.
func (r *Runner) Wait() {
	<-r.done
}

// Close waits for the sessions (their context must be cancelled first),
// tears the stack down and reports failed sessions.
func (r *Runner) Close() error {
	select {
	case <-r.done:
	case <-time.After(shutdownGrace):
		r.logger.Warnf("sessions still running after %s; closing the network stack", shutdownGrace)
	}
	var errs []error
	if err := r.stack.Close(); err != nil {
		errs = append(errs, err)
	}

	r.logger.Infof("totals: %s", r.manager.Stats())
	for _, res := range r.manager.Failed() {
		errs = append(errs, fmt.Errorf("%s %s: %w", res.Role, res.Stream, res.Err))
	}
	return errors.Join(errs...)
}
