// Package encoder compresses raw frames into the payload of one message.
package encoder

import "image"

// Encoder compresses one frame. An empty result with a nil error means
// there is nothing to send for this frame.
type Encoder interface {
	Encode(img *image.RGBA) ([]byte, error)
}

// Func adapts a plain function to Encoder.
type Func func(img *image.RGBA) ([]byte, error)

func (f Func) Encode(img *image.RGBA) ([]byte, error) { return f(img) }
