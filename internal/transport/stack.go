package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	ptransport "github.com/pion/transport/v4"
	"github.com/pion/transport/v4/stdnet"
)

var errStackClosed = errors.New("network stack closed")

// Stack is the process-wide network stack. Init it once before any channel
// is created and Close it after every session has ended.
type Stack struct {
	net ptransport.Net

	mu     sync.Mutex
	closed bool
	open   map[Channel]struct{}
}

// Init creates a stack over the host network.
func Init() (*Stack, error) {
	n, err := stdnet.NewNet()
	if err != nil {
		return nil, fmt.Errorf("transport: init network: %w", err)
	}
	return NewStack(n), nil
}

// NewStack creates a stack over n, e.g. a virtual network in tests.
func NewStack(n ptransport.Net) *Stack {
	return &Stack{net: n, open: make(map[Channel]struct{})}
}

// Net exposes the underlying network for components that open their own
// sockets (WebRTC ICE, signaling).
func (s *Stack) Net() ptransport.Net {
	return s.net
}

// Bind allocates a receive-capable UDP endpoint on localPort (0 picks one).
func (s *Stack) Bind(localPort int) (Channel, error) {
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(localPort))
	if localPort < 0 || localPort > 65535 {
		return nil, &BindError{Addr: addr, Err: fmt.Errorf("port out of range")}
	}
	conn, err := s.listen(addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return s.track(newUDPChannel(conn, nil))
}

// Connect allocates a send-capable UDP endpoint aimed at host:port. No
// packet is exchanged, so an unreachable peer is not detected here.
func (s *Stack) Connect(host string, port int) (Channel, error) {
	target := net.JoinHostPort(host, strconv.Itoa(port))
	if port <= 0 || port > 65535 {
		return nil, &BindError{Addr: target, Err: fmt.Errorf("port out of range")}
	}
	raddr, err := s.net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, &BindError{Addr: target, Err: err}
	}
	conn, err := s.listen("0.0.0.0:0")
	if err != nil {
		return nil, &BindError{Addr: target, Err: err}
	}
	return s.track(newUDPChannel(conn, raddr))
}

func (s *Stack) listen(addr string) (net.PacketConn, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errStackClosed
	}
	return s.net.ListenPacket("udp", addr)
}

// Track registers a channel created outside the stack so Close releases it.
func (s *Stack) Track(ch Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStackClosed
	}
	s.open[ch] = struct{}{}
	return nil
}

// Untrack forgets a channel that has been closed by its owner.
func (s *Stack) Untrack(ch Channel) {
	s.mu.Lock()
	delete(s.open, ch)
	s.mu.Unlock()
}

func (s *Stack) track(ch *udpChannel) (Channel, error) {
	ch.onClose = func() { s.Untrack(ch) }
	if err := s.Track(ch); err != nil {
		ch.conn.Close()
		return nil, &BindError{Addr: ch.conn.LocalAddr().String(), Err: err}
	}
	return ch, nil
}

// Open reports how many channels are still registered.
func (s *Stack) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Close tears the stack down, closing any channel still open.
func (s *Stack) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	open := make([]Channel, 0, len(s.open))
	for ch := range s.open {
		open = append(open, ch)
	}
	s.open = make(map[Channel]struct{})
	s.mu.Unlock()

	var errs []error
	for _, ch := range open {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
