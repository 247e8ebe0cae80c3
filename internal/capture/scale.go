package capture

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Scale downsamples img by factor in (0, 1]. A factor of 1 (or out of range)
// returns img unchanged.
func Scale(img *image.RGBA, factor float64) *image.RGBA {
	if img == nil || factor <= 0 || factor >= 1 {
		return img
	}
	b := img.Bounds()
	if b.Empty() {
		return img
	}
	w, h := ScaledSize(b.Dx(), b.Dy(), factor)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// ScaledSize returns the dimensions Scale produces for a w x h source.
func ScaledSize(w, h int, factor float64) (int, int) {
	if factor <= 0 || factor >= 1 {
		return w, h
	}
	sw := int(math.Round(float64(w) * factor))
	sh := int(math.Round(float64(h) * factor))
	return max(sw, 1), max(sh, 1)
}
