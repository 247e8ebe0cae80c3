// Package display is the rendering side of a session: one Surface per
// display ID, plus the overlay and fallback pictures sessions draw with.
package display

import (
	"image"

	"github.com/blgpb/streaming-udp-video/internal/decoder"
)

// Surface shows frames for one display ID. Show is called from the owning
// session goroutine only; an empty or nil image must be a no-op.
type Surface interface {
	Show(img *image.RGBA)
}

// Board hands out one Surface per display ID.
type Board interface {
	Surface(id string) Surface
}

// Discard is a Board whose surfaces drop every frame (headless receivers).
var Discard Board = discardBoard{}

type discardBoard struct{}

func (discardBoard) Surface(string) Surface { return discardSurface{} }

type discardSurface struct{}

func (discardSurface) Show(*image.RGBA) {}

// Visible reports whether img carries anything to draw.
func Visible(img *image.RGBA) bool {
	return !decoder.IsEmpty(img)
}
