package capture

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternSourceHonoursCancel(t *testing.T) {
	src := NewPatternSource(Options{Width: 64, Height: 36, FPS: 100})
	defer src.Close()

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 36), f.Image.Bounds())
	assert.False(t, f.Timestamp.IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestScale(t *testing.T) {
	img := TestCard(1920, 1080, 0)
	out := Scale(img, 0.6)
	assert.Equal(t, 1152, out.Bounds().Dx())
	assert.Equal(t, 648, out.Bounds().Dy())

	assert.Same(t, img, Scale(img, 1))
	assert.Same(t, img, Scale(img, 0))

	w, h := ScaledSize(3, 3, 0.01)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestOpenSources(t *testing.T) {
	src, err := Open("pattern", Options{Width: 8, Height: 8, FPS: 50})
	require.NoError(t, err)
	src.Close()

	_, err = Open("file:", Options{})
	assert.Error(t, err)

	_, err = Open("camera:x", Options{})
	assert.Error(t, err)

	_, err = Open("smoke-signals", Options{})
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, TestCard(40, 30, 1)))
	require.NoError(t, f.Close())

	src, err := Open("file:"+path, Options{FPS: 100})
	require.NoError(t, err)
	defer src.Close()

	a, err := src.Next(context.Background())
	require.NoError(t, err)
	b, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), a.Image.Bounds())
	assert.NotSame(t, a.Image, b.Image, "each frame is an independent copy")
}

func TestUnavailableSource(t *testing.T) {
	src := Unavailable(errors.New("unplugged"), Options{FPS: 100})
	defer src.Close()

	start := time.Now()
	_, err := src.Next(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
