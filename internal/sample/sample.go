// Package sample provides texture sampling over raw RGBA pixel buffers.
package sample

import "math"

// Mode defines how source sampling is performed.
type Mode uint8

const (
	// Nearest selects the closest pixel (no interpolation).
	// Fast but produces blocky results when scaling.
	Nearest Mode = iota

	// Bilinear performs linear interpolation between 4 neighboring pixels.
	// Good balance between quality and performance.
	Bilinear
)

// String returns a string representation of the sampling mode.
func (m Mode) String() string {
	switch m {
	case Nearest:
		return "Nearest"
	case Bilinear:
		return "Bilinear"
	default:
		return "Unknown"
	}
}

// At samples the buffer at normalized coordinates (u, v) using the given mode.
// pix is RGBA, 4 bytes per pixel, row-major with width w and height h.
// u and v are in [0, 1] with (0,0) the top-left corner. Coordinates outside
// [0, 1] return a fully transparent sample rather than clamping: the warp
// contract maps out-of-bounds samples to empty pixels.
func At(pix []byte, w, h int, u, v float64, mode Mode) (r, g, b, a byte) {
	if u < 0 || u > 1 || v < 0 || v > 1 || w <= 0 || h <= 0 {
		return 0, 0, 0, 0
	}
	switch mode {
	case Nearest:
		return nearest(pix, w, h, u, v)
	case Bilinear:
		return bilinear(pix, w, h, u, v)
	default:
		return 0, 0, 0, 0
	}
}

// nearest performs nearest-neighbor sampling at normalized coordinates.
func nearest(pix []byte, w, h int, u, v float64) (r, g, b, a byte) {
	x := clamp(int(math.Floor(u*float64(w))), 0, w-1)
	y := clamp(int(math.Floor(v*float64(h))), 0, h-1)
	i := (y*w + x) * 4
	return pix[i], pix[i+1], pix[i+2], pix[i+3]
}

// bilinear interpolates between the 4 pixels surrounding the sample point.
func bilinear(pix []byte, w, h int, u, v float64) (r, g, b, a byte) {
	// Convert normalized coords to continuous pixel coords.
	fx := u*float64(w) - 0.5
	fy := v*float64(h) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := clamp(x0+1, 0, w-1)
	y1 := clamp(y0+1, 0, h-1)
	x0 = clamp(x0, 0, w-1)
	y0 = clamp(y0, 0, h-1)

	i00 := (y0*w + x0) * 4
	i10 := (y0*w + x1) * 4
	i01 := (y1*w + x0) * 4
	i11 := (y1*w + x1) * 4

	r = byte(lerp2D(float64(pix[i00]), float64(pix[i10]), float64(pix[i01]), float64(pix[i11]), tx, ty))
	g = byte(lerp2D(float64(pix[i00+1]), float64(pix[i10+1]), float64(pix[i01+1]), float64(pix[i11+1]), tx, ty))
	b = byte(lerp2D(float64(pix[i00+2]), float64(pix[i10+2]), float64(pix[i01+2]), float64(pix[i11+2]), tx, ty))
	a = byte(lerp2D(float64(pix[i00+3]), float64(pix[i10+3]), float64(pix[i01+3]), float64(pix[i11+3]), tx, ty))
	return r, g, b, a
}

// clamp clamps an integer value to [minVal, maxVal].
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// lerp performs linear interpolation between a and b.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// lerp2D performs bilinear interpolation on a 2x2 grid.
func lerp2D(v00, v10, v01, v11, tx, ty float64) float64 {
	v0 := lerp(v00, v10, tx)
	v1 := lerp(v01, v11, tx)
	return lerp(v0, v1, ty)
}
