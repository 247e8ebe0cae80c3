package encoder

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync/atomic"
)

// DefaultQuality matches the sender's historical JPEG setting.
const DefaultQuality = 60

// JPEGEncoder encodes frames as JPEG.
type JPEGEncoder struct {
	quality atomic.Int32
}

// NewJPEGEncoder creates a JPEG encoder with the given quality (1-100).
func NewJPEGEncoder(quality int) *JPEGEncoder {
	e := &JPEGEncoder{}
	e.SetQuality(quality)
	return e
}

// SetQuality changes the quality used by subsequent Encode calls.
func (e *JPEGEncoder) SetQuality(quality int) {
	e.quality.Store(int32(clampQuality(quality)))
}

// Quality returns the current JPEG quality.
func (e *JPEGEncoder) Quality() int {
	return int(e.quality.Load())
}

// Encode compresses img. A nil or zero-sized image is not an error: it
// yields an empty slice, meaning there is nothing to send this cycle.
func (e *JPEGEncoder) Encode(img *image.RGBA) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Grow(64 * 1024) // one datagram worth
	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality()})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clampQuality(quality int) int {
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}
