// Package manager launches one independent session per configured stream
// and tracks how each of them ends.
package manager

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cnotch/xlog"
	"github.com/google/uuid"

	"github.com/blgpb/streaming-udp-video/internal/config"
	"github.com/blgpb/streaming-udp-video/internal/display"
	"github.com/blgpb/streaming-udp-video/internal/session"
	"github.com/blgpb/streaming-udp-video/internal/stats"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

// ErrPanic wraps a panic recovered from a session goroutine.
var ErrPanic = errors.New("session panicked")

// Result is how a session ended, or where it is now.
type Result struct {
	ID     string
	Stream string
	Role   config.Role
	State  session.State
	Err    error
}

// Manager runs sessions. Sessions are fixed once started.
type Manager struct {
	network session.Network
	board   display.Board
	logger  *xlog.Logger
	total   *stats.Counters

	mu      sync.Mutex
	started bool
	entries []*entry
	wg      sync.WaitGroup
}

type entry struct {
	id      string
	session session.Session

	mu  sync.Mutex
	err error
}

// New creates a manager that opens channels on stack and draws on board.
func New(stack *transport.Stack, board display.Board, logger *xlog.Logger) *Manager {
	return NewWithNetwork(session.StackNetwork{Stack: stack}, board, logger)
}

// NewWithNetwork creates a manager over any channel provider.
func NewWithNetwork(network session.Network, board display.Board, logger *xlog.Logger) *Manager {
	if logger == nil {
		logger = xlog.L()
	}
	if board == nil {
		board = display.Discard
	}
	return &Manager{
		network: network,
		board:   board,
		logger:  logger,
		total:   &stats.Counters{},
	}
}

// StartSessions validates streams and launches one goroutine per entry.
// Cancelling ctx stops every session; Wait blocks until they have ended.
func (m *Manager) StartSessions(ctx context.Context, streams []config.Stream) error {
	if err := config.ValidateStreams(streams); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("manager: sessions already started")
	}
	m.started = true

	for _, stream := range streams {
		e := &entry{id: uuid.NewString()}
		logger := m.logger.With(xlog.Fields(
			xlog.F("session", stream.Name),
			xlog.F("role", string(stream.Role)),
			xlog.F("id", e.id)))

		switch stream.Role {
		case config.RoleSender:
			e.session = session.NewSender(stream, m.network, m.board, logger, m.total)
		default:
			e.session = session.NewReceiver(stream, m.network, m.board, logger, m.total)
		}
		m.entries = append(m.entries, e)

		m.wg.Add(1)
		go m.run(ctx, e, logger)
	}
	m.logger.Infof("started %d sessions", len(streams))
	return nil
}

// run executes one session. A panic is contained to this session.
func (m *Manager) run(ctx context.Context, e *entry, logger *xlog.Logger) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("session panic: %v \n%s", r, debug.Stack())
			e.setErr(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	if err := e.session.Run(ctx); err != nil {
		e.setErr(err)
	}
}

func (e *entry) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *entry) result() Result {
	e.mu.Lock()
	err := e.err
	e.mu.Unlock()
	stream := e.session.Stream()
	state := e.session.State()
	if err != nil {
		// A panicking session never reached its own terminal state.
		state = session.StateTerminated
	}
	return Result{ID: e.id, Stream: stream.Name, Role: stream.Role, State: state, Err: err}
}

// Wait blocks until every session has terminated.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Results returns one entry per session in configuration order.
func (m *Manager) Results() []Result {
	m.mu.Lock()
	entries := append([]*entry(nil), m.entries...)
	m.mu.Unlock()

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.result())
	}
	return results
}

// States maps stream names to their current state.
func (m *Manager) States() map[string]session.State {
	states := make(map[string]session.State)
	for _, r := range m.Results() {
		states[r.Stream] = r.State
	}
	return states
}

// Stats returns counters summed over all sessions.
func (m *Manager) Stats() stats.Sample {
	return m.total.Snapshot()
}

// Failed returns the results of sessions that ended with an error.
func (m *Manager) Failed() []Result {
	var failed []Result
	for _, r := range m.Results() {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
