package session

import (
	"context"
	"errors"
	"image"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blgpb/streaming-udp-video/internal/capture"
	"github.com/blgpb/streaming-udp-video/internal/decoder"
	"github.com/blgpb/streaming-udp-video/internal/display"
	"github.com/blgpb/streaming-udp-video/internal/encoder"
	"github.com/blgpb/streaming-udp-video/internal/protocol"
	"github.com/blgpb/streaming-udp-video/internal/stats"
	"github.com/blgpb/streaming-udp-video/internal/transport"
)

func runFor(t *testing.T, s Session, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(d + 2*time.Second):
		t.Fatal("session did not stop after cancellation")
		return nil
	}
}

func encodeCard(t *testing.T, w, h int) []byte {
	data, err := encoder.NewJPEGEncoder(60).Encode(capture.TestCard(w, h, 1))
	require.NoError(t, err)
	return data
}

func TestReceiverShowsFallbackOnTimeout(t *testing.T) {
	board := display.NewMemoryBoard()
	timeout := 40 * time.Millisecond
	r := NewReceiver(receiverStream(timeout), memNetwork{ch: newMemChannel()}, board, nil, nil)

	start := time.Now()
	err := runFor(t, r, 400*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, StateTerminated, r.State())
	assert.NoError(t, r.Err())

	surface := board.Get("rx")
	// At least one fallback per interval, allowing for scheduling slack.
	minimum := int(elapsed/timeout) / 2
	assert.GreaterOrEqual(t, surface.Shown(), minimum)
	assert.Equal(t, display.NoSignal(0, 0).Bounds(), surface.Last().Bounds())
	assert.EqualValues(t, surface.Shown(), r.Stats().Snapshot().Timeouts)
	assert.Nil(t, r.LastFrame())
}

func TestReceiverEmptyPayloadKeepsLastFrame(t *testing.T) {
	frame := encodeCard(t, 64, 48)
	ch := newMemChannel(frame, []byte{}, []byte("not a jpeg"))
	board := display.NewMemoryBoard()
	r := NewReceiver(receiverStream(time.Second), memNetwork{ch: ch}, board, nil, nil)

	require.NoError(t, runFor(t, r, 200*time.Millisecond))

	last := r.LastFrame()
	require.NotNil(t, last)
	assert.Equal(t, image.Rect(0, 0, 64, 48), last.Bounds())

	snap := r.Stats().Snapshot()
	assert.EqualValues(t, 3, snap.FramesIn)
	assert.EqualValues(t, 1, snap.Empty)
	assert.EqualValues(t, 1, snap.BadFrames)
	assert.EqualValues(t, 1, r.decoder.(*decoder.JPEGDecoder).Failures())

	// frame, then fallback for the empty payload; the bad frame draws nothing.
	surface := board.Get("rx")
	assert.Equal(t, 2, surface.Shown())
	assert.Equal(t, 0, surface.Ignored())
	assert.True(t, ch.Closed())
}

func TestEmptyMessageDecodesToSentinel(t *testing.T) {
	img := decoder.NewJPEGDecoder().Decode(protocol.Unpackage([]byte{}))
	assert.Same(t, decoder.Empty, img)

	s := display.NewMemoryBoard().Get("x")
	s.Show(img)
	assert.Nil(t, s.Last())
}

func TestReceiverBindFailure(t *testing.T) {
	bindErr := &transport.BindError{Addr: "0.0.0.0:4000", Err: errors.New("address in use")}
	r := NewReceiver(receiverStream(time.Second), memNetwork{err: bindErr}, nil, nil, nil)

	err := r.Run(context.Background())
	var be *transport.BindError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, StateTerminated, r.State())
	assert.Equal(t, err, r.Err())
}

func TestReceiverChannelFailure(t *testing.T) {
	ch := newMemChannel()
	failing := failingChannel{memChannel: ch}
	r := NewReceiver(receiverStream(time.Second), memNetwork{ch: failing}, nil, nil, nil)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, net.ErrClosed))
	assert.Equal(t, StateTerminated, r.State())
}

type failingChannel struct {
	*memChannel
}

func (failingChannel) Receive(context.Context, time.Duration) ([]byte, error) {
	return nil, net.ErrClosed
}

func TestScaledFrameFitsAndKeepsAspect(t *testing.T) {
	tx := newMemChannel()
	s := NewSender(senderStream(0.6, 60), memNetwork{ch: tx}, nil, nil, nil)
	s.UseSource(stillSource{img: capture.TestCard(1920, 1080, 7)})

	require.NoError(t, runFor(t, s, 500*time.Millisecond))
	sent := tx.Sent()
	require.NotEmpty(t, sent)
	payload := sent[0]
	assert.Less(t, len(payload), protocol.MaxMessageSize)

	rx := newMemChannel(payload)
	board := display.NewMemoryBoard()
	r := NewReceiver(receiverStream(time.Second), memNetwork{ch: rx}, board, nil, nil)
	require.NoError(t, runFor(t, r, 100*time.Millisecond))

	shown := board.Get("rx").Last()
	require.NotNil(t, shown)
	assert.Equal(t, image.Rect(0, 0, 1152, 648), shown.Bounds())
	b := shown.Bounds()
	assert.InDelta(t, 1920.0/1080.0, float64(b.Dx())/float64(b.Dy()), 0.01)
}

func noise(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(1))
	rng.Read(img.Pix)
	return img
}

func TestSenderFailsFastOnFrameBudget(t *testing.T) {
	tx := newMemChannel()
	s := NewSender(senderStream(1, 100), memNetwork{ch: tx}, nil, nil, nil)
	s.UseSource(stillSource{img: noise(1920, 1080)})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameBudget))
	assert.Equal(t, StateTerminated, s.State())
	assert.Empty(t, tx.Sent(), "oversized frames are never truncated and sent")
	assert.EqualValues(t, 1, s.Stats().Snapshot().Oversize)
}

func TestSenderFailsFastAboveDatagramCeiling(t *testing.T) {
	stack, err := transport.Init()
	require.NoError(t, err)
	defer stack.Close()

	sink, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer sink.Close()

	stream := senderStream(1, 60)
	stream.RemotePort = sink.LocalAddr().(*net.UDPAddr).Port
	s := NewSender(stream, StackNetwork{Stack: stack}, nil, nil, nil)
	s.UseSource(stillSource{img: capture.TestCard(16, 16, 0)})
	// Within the protocol ceiling, above what one IPv4 datagram carries.
	size := transport.MaxDatagramSize + 13
	require.Less(t, size, protocol.MaxMessageSize)
	s.encoder = encoder.Func(func(*image.RGBA) ([]byte, error) {
		return make([]byte, size), nil
	})

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameBudget))
	assert.True(t, errors.Is(err, protocol.ErrOversize))
	assert.Equal(t, StateTerminated, s.State())
	assert.EqualValues(t, 0, s.Stats().Snapshot().FramesOut)
	assert.Equal(t, 0, stack.Open())
}

func TestSenderSkipsOversizeAfterFirstFrame(t *testing.T) {
	tx := newMemChannel()
	tx.limit = 100
	s := NewSender(senderStream(1, 60), memNetwork{ch: tx}, nil, nil, nil)
	s.UseSource(stillSource{img: capture.TestCard(16, 16, 0)})
	calls := 0
	s.encoder = encoder.Func(func(*image.RGBA) ([]byte, error) {
		calls++
		if calls%2 == 0 {
			return make([]byte, 200), nil
		}
		return make([]byte, 50), nil
	})

	require.NoError(t, runFor(t, s, 50*time.Millisecond))
	snap := s.Stats().Snapshot()
	assert.Greater(t, snap.Oversize, uint64(0))
	assert.Greater(t, snap.FramesOut, uint64(0))
	assert.NoError(t, s.Err())
}

func TestSenderAbsorbsCaptureFailures(t *testing.T) {
	tx := newMemChannel()
	s := NewSender(senderStream(1, 60), memNetwork{ch: tx}, nil, nil, nil)
	s.UseSource(stillSource{err: capture.ErrUnavailable})

	require.NoError(t, runFor(t, s, 100*time.Millisecond))
	assert.Empty(t, tx.Sent())
	assert.Greater(t, s.Stats().Snapshot().CaptureMiss, uint64(0))
	assert.NoError(t, s.Err())
}

func TestSenderSkipsEmptyFrames(t *testing.T) {
	tx := newMemChannel()
	s := NewSender(senderStream(1, 60), memNetwork{ch: tx}, nil, nil, nil)
	s.UseSource(stillSource{img: decoder.Empty})

	require.NoError(t, runFor(t, s, 50*time.Millisecond))
	assert.Empty(t, tx.Sent())
	assert.Greater(t, s.Stats().Snapshot().Empty, uint64(0))
}

func TestSenderMaxFPS(t *testing.T) {
	tx := newMemChannel()
	stream := senderStream(1, 60)
	stream.MaxFPS = 5
	s := NewSender(stream, memNetwork{ch: tx}, nil, nil, nil)
	s.UseSource(stillSource{img: capture.TestCard(32, 24, 0)})

	require.NoError(t, runFor(t, s, 300*time.Millisecond))
	sent := len(tx.Sent())
	assert.Greater(t, sent, 0)
	assert.LessOrEqual(t, sent, 6)
	assert.Greater(t, s.Stats().Snapshot().Dropped, uint64(0))
}

func TestSenderPreviewAndOverlay(t *testing.T) {
	tx := newMemChannel()
	stream := senderStream(0.5, 60)
	stream.Preview = true
	stream.Overlay = true
	board := display.NewMemoryBoard()
	s := NewSender(stream, memNetwork{ch: tx}, board, nil, nil)
	src := capture.TestCard(320, 240, 0)
	s.UseSource(stillSource{img: src})

	require.NoError(t, runFor(t, s, 50*time.Millisecond))
	preview := board.Get("tx").Last()
	require.NotNil(t, preview)
	assert.Equal(t, image.Rect(0, 0, 160, 120), preview.Bounds())
}

func TestSenderConnectFailure(t *testing.T) {
	s := NewSender(senderStream(1, 60), memNetwork{err: &transport.BindError{Addr: "x", Err: errors.New("no route")}}, nil, nil, nil)
	err := s.Run(context.Background())
	var be *transport.BindError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, StateTerminated, s.State())
}

func TestCountersRollUp(t *testing.T) {
	total := &stats.Counters{}
	frame := encodeCard(t, 16, 16)
	r := NewReceiver(receiverStream(time.Second), memNetwork{ch: newMemChannel(frame)}, nil, nil, total)
	require.NoError(t, runFor(t, r, 50*time.Millisecond))
	assert.EqualValues(t, 1, total.Snapshot().FramesIn)
}

func TestUDPLoopback(t *testing.T) {
	stack, err := transport.Init()
	require.NoError(t, err)
	defer stack.Close()

	sink, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := sink.LocalAddr().(*net.UDPAddr).Port
	sink.Close()

	rxStream := receiverStream(100 * time.Millisecond)
	rxStream.LocalPort = port
	txStream := senderStream(0.5, 60)
	txStream.RemotePort = port

	board := display.NewMemoryBoard()
	network := StackNetwork{Stack: stack}
	r := NewReceiver(rxStream, network, board, nil, nil)
	s := NewSender(txStream, network, nil, nil, nil)
	s.UseSource(capture.NewPatternSource(capture.Options{Width: 320, Height: 240, FPS: 30}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rxDone := make(chan error, 1)
	go func() { rxDone <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return r.State() == StateRunning }, 2*time.Second, 10*time.Millisecond)
	txDone := make(chan error, 1)
	go func() { txDone <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return r.LastFrame() != nil }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, image.Rect(0, 0, 160, 120), r.LastFrame().Bounds())

	cancel()
	assert.NoError(t, <-rxDone)
	assert.NoError(t, <-txDone)
	assert.Equal(t, 0, stack.Open())
}
