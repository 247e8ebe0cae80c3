package decoder

import "image"

// Decoder decodes bytes into an image. Implementations never fail: input
// that cannot be decoded yields Empty.
type Decoder interface {
	Decode(data []byte) *image.RGBA
}

// Empty is the "no image" sentinel. Displays treat it as a no-op.
var Empty = &image.RGBA{}

// IsEmpty reports whether img carries no pixels.
func IsEmpty(img image.Image) bool {
	if img == nil {
		return true
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba == nil {
		return true
	}
	return img.Bounds().Empty()
}
