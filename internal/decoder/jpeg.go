package decoder

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"sync/atomic"
)

// JPEGDecoder decodes JPEG bytes into *image.RGBA.
type JPEGDecoder struct {
	failures atomic.Uint64
}

func NewJPEGDecoder() *JPEGDecoder {
	return &JPEGDecoder{}
}

// Decode returns Empty for empty or malformed input.
func (d *JPEGDecoder) Decode(data []byte) *image.RGBA {
	if len(data) == 0 {
		return Empty
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		d.failures.Add(1)
		return Empty
	}
	// Convert to RGBA if needed.
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}

// Failures returns how many payloads could not be decoded.
func (d *JPEGDecoder) Failures() uint64 {
	return d.failures.Load()
}
