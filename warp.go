package cone

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/Rockonmichi/CEN3907C-Pepper-s-Cone/internal/sample"
)

// Interpolation selects how WedgeMapping.Apply samples the source frame.
type Interpolation uint8

const (
	// InterpBilinear interpolates between the 4 neighboring source pixels.
	InterpBilinear Interpolation = iota

	// InterpNearest picks the closest source pixel. Faster, blockier.
	InterpNearest
)

func (i Interpolation) mode() sample.Mode {
	if i == InterpNearest {
		return sample.Nearest
	}
	return sample.Bilinear
}

// WedgeMapping is the cached warp artifact for one (profile version,
// viewpoint) pair: a dense per-destination-pixel lookup from polar canvas
// coordinates to normalized source coordinates, plus a blend weight for the
// seam overlap. It is immutable once built and shared read-only by all
// renders until a profile change swaps in a newer version.
type WedgeMapping struct {
	// Viewpoint is the index i in [0, N).
	Viewpoint int

	// Version is the profile version the mapping was built for.
	Version uint64

	// Side is the square canvas side in pixels (2*DisplayRadius rounded up).
	Side int

	// Passthrough marks a no-warp fallback mapping produced when malformed
	// geometry reached the mapper.
	Passthrough bool

	// Dense tables, len Side*Side, indexed y*Side+x. A weight of 0 means the
	// pixel is outside this wedge and untouched by Apply.
	u, v, w []float32
}

// RadialRemap is the physical correction at the heart of the warp: the radial
// coordinate remap rho' = f(rho) derived from the reflection off the cone
// surface. The mirror's slant compresses radial distance toward the apex;
// modelling the eye ray (elevation set by eyeHeightRatio) reflecting off a
// surface of gradient tan(alpha) yields a projective remap that preserves the
// endpoints:
//
//	f(rho) = (1+k)*rho / (1 + k*rho),  k = tan(alpha) / eyeHeightRatio
//
// f is strictly increasing and bijective on [0,1] with f(0)=0 and f(1)=1 for
// every valid profile, and reduces to the identity as alpha approaches 0.
// The exact relationship between eye height and reflection must ultimately be
// calibrated against the physical cone; alpha and eyeHeightRatio are the
// exposed tuning knobs.
func RadialRemap(rho, alpha, eyeHeightRatio float64) float64 {
	k := math.Tan(alpha) / eyeHeightRatio
	return (1 + k) * rho / (1 + k*rho)
}

// distortionCorrect applies the secondary curvature correction
// rho'' = rho' * (1 + d*(1-rho')^2), clamped to [0, 1].
func distortionCorrect(rho, d float64) float64 {
	out := rho * (1 + d*(1-rho)*(1-rho))
	if out < 0 {
		return 0
	}
	if out > 1 {
		return 1
	}
	return out
}

// BuildWedgeMapping computes the warp lookup table for viewpoint i of the
// given profile. It is deterministic and pure: the same profile and viewpoint
// always produce bit-for-bit identical tables.
//
// It returns an error wrapping ErrInvalidProfile when the geometry would make
// the radial remap non-monotonic or undefined (half-angle outside (0, Pi/2),
// eye height ratio <= 0). A profile accepted by Validate never fails here.
func BuildWedgeMapping(profile CalibrationProfile, i int, version uint64) (*WedgeMapping, error) {
	if profile.ConeHalfAngle <= 0 || profile.ConeHalfAngle >= math.Pi/2 {
		return nil, fmt.Errorf("%w: cone half-angle %g outside (0, Pi/2)", ErrInvalidProfile, profile.ConeHalfAngle)
	}
	if profile.EyeHeightRatio <= 0 {
		return nil, fmt.Errorf("%w: eye height ratio %g <= 0", ErrInvalidProfile, profile.EyeHeightRatio)
	}
	if profile.DisplayRadius <= 0 {
		return nil, fmt.Errorf("%w: display radius %g <= 0", ErrInvalidProfile, profile.DisplayRadius)
	}
	if profile.Viewpoints < 1 || i < 0 || i >= profile.Viewpoints {
		return nil, fmt.Errorf("%w: viewpoint %d of %d", ErrInvalidProfile, i, profile.Viewpoints)
	}

	alpha := profile.ConeHalfAngle
	eye := profile.EyeHeightRatio
	d := profile.Distortion
	m := buildTable(profile, i, version, func(rho float64) float64 {
		return distortionCorrect(RadialRemap(rho, alpha, eye), d)
	})
	return m, nil
}

// NewPassthroughMapping builds an identity (no-warp) mapping for viewpoint i:
// the wedge samples the source without any radial remap or distortion. It is
// the degraded-mode fallback when malformed geometry reaches the mapper, so
// one bad wedge never aborts the cycle.
func NewPassthroughMapping(profile CalibrationProfile, i int, version uint64) *WedgeMapping {
	m := buildTable(profile, i, version, func(rho float64) float64 { return rho })
	m.Passthrough = true
	return m
}

// buildTable rasterizes the wedge's dense lookup table using the supplied
// radial remap. Destination pixels are sampled at their centers.
func buildTable(profile CalibrationProfile, i int, version uint64, remap func(float64) float64) *WedgeMapping {
	side := profile.CanvasSide()
	n := profile.Viewpoints

	start, width := profile.WedgeSpan(i)
	eps := profile.OverlapMargin
	if n == 1 {
		// A single viewpoint owns the full circle; there is no neighbor to
		// blend with.
		eps = 0
	}
	extStart := start - eps
	extWidth := width + 2*eps

	m := &WedgeMapping{
		Viewpoint: i,
		Version:   version,
		Side:      side,
		u:         make([]float32, side*side),
		v:         make([]float32, side*side),
		w:         make([]float32, side*side),
	}

	center := float32(side) / 2
	radius := profile.DisplayRadius

	for y := 0; y < side; y++ {
		dy := float32(y) + 0.5 - center
		for x := 0; x < side; x++ {
			dx := float32(x) + 0.5 - center

			r := float64(math32.Hypot(dx, dy))
			if r > radius {
				continue
			}

			theta := float64(math32.Atan2(dy, dx))
			delta := normAngle(theta - extStart)
			if delta > extWidth {
				continue
			}

			rho := r / radius
			rpp := remap(rho)

			idx := y*side + x
			m.u[idx] = float32(delta / extWidth)
			m.v[idx] = float32(1 - rpp)
			m.w[idx] = float32(blendWeight(delta, extWidth, eps))
		}
	}
	return m
}

// blendWeight returns the linear cross-fade weight at angular offset delta
// within an extended span of the given width and margin eps. Weights of
// adjacent wedges sum to 1 across the shared overlap.
func blendWeight(delta, width, eps float64) float64 {
	if eps <= 0 {
		return 1
	}
	ramp := 2 * eps
	switch {
	case delta < ramp:
		return delta / ramp
	case delta > width-ramp:
		return (width - delta) / ramp
	default:
		return 1
	}
}

// normAngle normalizes an angle to [0, 2*Pi).
func normAngle(t float64) float64 {
	t = math.Mod(t, 2*math.Pi)
	if t < 0 {
		t += 2 * math.Pi
	}
	return t
}

// Covers reports whether the mapping touches the destination pixel (x, y).
func (m *WedgeMapping) Covers(x, y int) bool {
	if x < 0 || x >= m.Side || y < 0 || y >= m.Side {
		return false
	}
	return m.w[y*m.Side+x] > 0
}

// Weight returns the blend weight at destination pixel (x, y).
func (m *WedgeMapping) Weight(x, y int) float64 {
	if x < 0 || x >= m.Side || y < 0 || y >= m.Side {
		return 0
	}
	return float64(m.w[y*m.Side+x])
}

// Lookup returns the normalized source coordinates for destination pixel
// (x, y). ok is false when the pixel is outside the wedge.
func (m *WedgeMapping) Lookup(x, y int) (u, v float64, ok bool) {
	if !m.Covers(x, y) {
		return 0, 0, false
	}
	idx := y*m.Side + x
	return float64(m.u[idx]), float64(m.v[idx]), true
}

// Apply warps a source frame through the mapping into a wedge-shaped image of
// canvas size, sampling bilinearly. Pixels outside the wedge stay transparent.
func (m *WedgeMapping) Apply(src *Pixmap) *Pixmap {
	return m.ApplyInterp(src, InterpBilinear)
}

// ApplyInterp is Apply with an explicit sampling mode.
func (m *WedgeMapping) ApplyInterp(src *Pixmap, interp Interpolation) *Pixmap {
	out := NewPixmap(m.Side, m.Side)
	if src == nil {
		return out
	}
	pix := src.Data()
	sw, sh := src.Width(), src.Height()
	mode := interp.mode()

	for y := 0; y < m.Side; y++ {
		row := y * m.Side
		for x := 0; x < m.Side; x++ {
			idx := row + x
			if m.w[idx] <= 0 {
				continue
			}
			r, g, b, a := sample.At(pix, sw, sh, float64(m.u[idx]), float64(m.v[idx]), mode)
			out.SetRGBA8(x, y, r, g, b, a)
		}
	}
	return out
}
