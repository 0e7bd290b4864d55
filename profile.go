package cone

import (
	"fmt"
	"math"
)

// CalibrationProfile is an immutable snapshot of the physical and geometric
// parameters a warp is derived from. Profiles are plain values: copy them
// freely, never mutate one that has been applied. The Controller is the only
// component that decides which profile is active.
type CalibrationProfile struct {
	// ConeHalfAngle is the angle between the cone's axis and its slanted
	// reflective surface, in radians. Must be in (0, Pi/2) exclusive.
	ConeHalfAngle float64

	// DisplayRadius is the radius of the output disk in canvas units (pixels).
	// The composited canvas is square with side 2*DisplayRadius. Must be > 0.
	DisplayRadius float64

	// EyeHeightRatio describes the virtual viewer's height relative to the
	// subject. It scales the reflection remap. Must be > 0.
	EyeHeightRatio float64

	// Distortion is a secondary multiplicative correction for non-ideal
	// mirror curvature. 0 means no correction. Must be >= 0.
	Distortion float64

	// CenterOffset rotates all wedge spans by the given angle in radians.
	CenterOffset float64

	// Viewpoints is the number of discrete views N around the subject.
	// Must be >= 1.
	Viewpoints int

	// OverlapMargin is the angular margin epsilon, in radians, shared by
	// adjacent wedges for seam blending. Must be >= 0 and at most half the
	// wedge span 2*Pi/N. Ignored when Viewpoints is 1.
	OverlapMargin float64
}

// DefaultProfile returns a profile matched to the reference cone: four
// viewpoints, a 300-pixel display radius and a mild curvature correction.
func DefaultProfile() CalibrationProfile {
	return CalibrationProfile{
		ConeHalfAngle:  0.4,
		DisplayRadius:  300,
		EyeHeightRatio: 1.2,
		Distortion:     0.1,
		CenterOffset:   0,
		Viewpoints:     4,
		OverlapMargin:  math.Pi / 36, // 5 degrees
	}
}

// Validate checks every field against its documented range and returns a
// *ValidationError listing all offending fields, or nil when the profile is
// usable. A profile that fails Validate must never reach the warp mapper.
func (p CalibrationProfile) Validate() error {
	verr := &ValidationError{}

	switch {
	case math.IsNaN(p.ConeHalfAngle):
		verr.add("ConeHalfAngle", "must not be NaN")
	case p.ConeHalfAngle <= 0:
		verr.add("ConeHalfAngle", fmt.Sprintf("must be > 0, got %g", p.ConeHalfAngle))
	case p.ConeHalfAngle >= math.Pi/2:
		verr.add("ConeHalfAngle", fmt.Sprintf("must be < Pi/2, got %g", p.ConeHalfAngle))
	}

	if !(p.DisplayRadius > 0) || math.IsInf(p.DisplayRadius, 1) {
		verr.add("DisplayRadius", fmt.Sprintf("must be a positive finite number, got %g", p.DisplayRadius))
	}
	if !(p.EyeHeightRatio > 0) || math.IsInf(p.EyeHeightRatio, 1) {
		verr.add("EyeHeightRatio", fmt.Sprintf("must be a positive finite number, got %g", p.EyeHeightRatio))
	}
	if p.Distortion < 0 || math.IsNaN(p.Distortion) {
		verr.add("Distortion", fmt.Sprintf("must be >= 0, got %g", p.Distortion))
	}
	if math.IsNaN(p.CenterOffset) || math.IsInf(p.CenterOffset, 0) {
		verr.add("CenterOffset", "must be finite")
	}
	if p.Viewpoints < 1 {
		verr.add("Viewpoints", fmt.Sprintf("must be >= 1, got %d", p.Viewpoints))
	}
	if p.OverlapMargin < 0 || math.IsNaN(p.OverlapMargin) {
		verr.add("OverlapMargin", fmt.Sprintf("must be >= 0, got %g", p.OverlapMargin))
	} else if p.Viewpoints >= 1 && p.OverlapMargin > math.Pi/float64(max(p.Viewpoints, 1)) {
		verr.add("OverlapMargin", "must not exceed half the wedge span")
	}

	return verr.orNil()
}

// CanvasSide returns the side length in pixels of the square output canvas
// derived from the display radius.
func (p CalibrationProfile) CanvasSide() int {
	return int(math.Ceil(2 * p.DisplayRadius))
}

// WedgeSpan returns the core angular span of viewpoint i: its start angle
// 2*Pi*i/N + CenterOffset and its width 2*Pi/N.
func (p CalibrationProfile) WedgeSpan(i int) (start, width float64) {
	width = 2 * math.Pi / float64(p.Viewpoints)
	start = width*float64(i) + p.CenterOffset
	return start, width
}
