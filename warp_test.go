package cone

import (
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallProfile keeps table builds fast in tests.
func smallProfile() CalibrationProfile {
	p := DefaultProfile()
	p.DisplayRadius = 40
	return p
}

func TestRadialRemapEndpoints(t *testing.T) {
	for _, alpha := range []float64{0.05, 0.4, 1.0, 1.5} {
		for _, eye := range []float64{0.3, 1, 1.2, 5} {
			assert.Equal(t, 0.0, RadialRemap(0, alpha, eye), "f(0) must be 0")
			assert.InDelta(t, 1.0, RadialRemap(1, alpha, eye), 1e-12, "f(1) must be 1")
		}
	}
}

func TestRadialRemapStrictlyMonotonic(t *testing.T) {
	const steps = 1000
	for _, alpha := range []float64{0.01, 0.4, 0.9, 1.4, 1.55} {
		for _, eye := range []float64{0.2, 1, 1.2, 3} {
			prev := RadialRemap(0, alpha, eye)
			for s := 1; s <= steps; s++ {
				rho := float64(s) / steps
				cur := RadialRemap(rho, alpha, eye)
				require.Greater(t, cur, prev,
					"f not strictly increasing at rho=%g alpha=%g eye=%g", rho, alpha, eye)
				prev = cur
			}
		}
	}
}

func TestRadialRemapFlatConeIsIdentity(t *testing.T) {
	// Degenerate flat cone: alpha = 0 must reduce the remap to identity.
	for s := 0; s <= 100; s++ {
		rho := float64(s) / 100
		assert.InDelta(t, rho, RadialRemap(rho, 0, 1.2), 1e-12)
	}
}

func TestDistortionCorrectClampsAndPreservesEndpoints(t *testing.T) {
	assert.Equal(t, 0.0, distortionCorrect(0, 0.5))
	assert.Equal(t, 1.0, distortionCorrect(1, 0.5))
	// Large distortion values must clamp rather than overshoot.
	for s := 0; s <= 100; s++ {
		rho := float64(s) / 100
		out := distortionCorrect(rho, 10)
		assert.GreaterOrEqual(t, out, 0.0)
		assert.LessOrEqual(t, out, 1.0)
	}
	// Zero distortion is a no-op.
	assert.Equal(t, 0.42, distortionCorrect(0.42, 0))
}

func TestBuildWedgeMappingRejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CalibrationProfile)
	}{
		{"alpha zero", func(p *CalibrationProfile) { p.ConeHalfAngle = 0 }},
		{"alpha pi/2", func(p *CalibrationProfile) { p.ConeHalfAngle = math.Pi / 2 }},
		{"eye height zero", func(p *CalibrationProfile) { p.EyeHeightRatio = 0 }},
		{"radius zero", func(p *CalibrationProfile) { p.DisplayRadius = 0 }},
		{"no viewpoints", func(p *CalibrationProfile) { p.Viewpoints = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := smallProfile()
			tc.mutate(&p)
			_, err := BuildWedgeMapping(p, 0, 1)
			require.ErrorIs(t, err, ErrInvalidProfile)
		})
	}

	t.Run("viewpoint out of range", func(t *testing.T) {
		_, err := BuildWedgeMapping(smallProfile(), 7, 1)
		require.ErrorIs(t, err, ErrInvalidProfile)
	})
}

// TestWedgeCoverageUnion rasterizes every wedge's coverage mask and checks
// the union equals the full display disk: no canvas holes for any N.
func TestWedgeCoverageUnion(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8} {
		p := smallProfile()
		p.Viewpoints = n
		p.OverlapMargin = math.Pi / float64(4*n)
		require.NoError(t, p.Validate())

		mappings := make([]*WedgeMapping, n)
		for i := 0; i < n; i++ {
			m, err := BuildWedgeMapping(p, i, 1)
			require.NoError(t, err)
			mappings[i] = m
		}

		side := p.CanvasSide()
		center := float32(side) / 2
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				// Same pixel-center radius computation as the builder.
				dx := float32(x) + 0.5 - center
				dy := float32(y) + 0.5 - center
				inside := float64(math32.Hypot(dx, dy)) <= p.DisplayRadius

				covered := false
				for _, m := range mappings {
					if m.Covers(x, y) {
						covered = true
						break
					}
				}
				if inside && !covered {
					t.Fatalf("N=%d: uncovered pixel inside disk at (%d,%d)", n, x, y)
				}
				if !inside && covered {
					t.Fatalf("N=%d: pixel outside disk covered at (%d,%d)", n, x, y)
				}
			}
		}
	}
}

// TestWedgeWeightsSumToOne checks the blend invariant: wherever the disk is
// covered, the weights of all covering wedges sum to 1.
func TestWedgeWeightsSumToOne(t *testing.T) {
	p := smallProfile()
	p.Viewpoints = 4
	p.OverlapMargin = math.Pi / 24

	mappings := make([]*WedgeMapping, p.Viewpoints)
	for i := range mappings {
		m, err := BuildWedgeMapping(p, i, 1)
		require.NoError(t, err)
		mappings[i] = m
	}

	side := p.CanvasSide()
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			total := 0.0
			covered := false
			for _, m := range mappings {
				if m.Covers(x, y) {
					covered = true
					total += m.Weight(x, y)
				}
			}
			if covered {
				require.InDelta(t, 1.0, total, 1e-3,
					"weights at (%d,%d) sum to %g", x, y, total)
			}
		}
	}
}

func TestBuildWedgeMappingDeterministic(t *testing.T) {
	p := smallProfile()
	src := NewPixmap(30, 30)
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			src.SetPixel(x, y, RGBA{R: float64(x) / 30, G: float64(y) / 30, B: 0.5, A: 1})
		}
	}

	a, err := BuildWedgeMapping(p, 1, 7)
	require.NoError(t, err)
	b, err := BuildWedgeMapping(p, 1, 7)
	require.NoError(t, err)

	assert.True(t, a.Apply(src).Equal(b.Apply(src)),
		"two builds of the same (profile, viewpoint) must warp identically")
}

func TestWedgeMappingLookupConventions(t *testing.T) {
	p := smallProfile()
	p.Viewpoints = 1
	p.Distortion = 0
	m, err := BuildWedgeMapping(p, 0, 1)
	require.NoError(t, err)

	side := m.Side
	cx, cy := side/2, side/2

	// Near the apex (canvas center) the remapped radius approaches 0, so the
	// wedge samples the bottom of the source frame (v near 1).
	_, v, ok := m.Lookup(cx+1, cy)
	require.True(t, ok)
	assert.Greater(t, v, 0.9)

	// At the rim the remapped radius is 1, sampling the top (v near 0).
	_, v, ok = m.Lookup(side-1, cy)
	require.True(t, ok)
	assert.Less(t, v, 0.1)
}

func TestApplyOutsideWedgeStaysTransparent(t *testing.T) {
	p := smallProfile()
	p.Viewpoints = 4
	m, err := BuildWedgeMapping(p, 0, 1)
	require.NoError(t, err)

	src := NewPixmap(20, 20)
	src.Clear(White)
	out := m.Apply(src)

	for y := 0; y < m.Side; y++ {
		for x := 0; x < m.Side; x++ {
			if !m.Covers(x, y) {
				_, _, _, a := out.RGBA8At(x, y)
				require.Zero(t, a, "pixel (%d,%d) outside wedge must stay transparent", x, y)
			}
		}
	}
}

func TestApplyNilSourceYieldsEmptyWedge(t *testing.T) {
	m, err := BuildWedgeMapping(smallProfile(), 0, 1)
	require.NoError(t, err)
	out := m.Apply(nil)
	assert.Equal(t, m.Side, out.Width())
	assert.True(t, out.Equal(NewPixmap(m.Side, m.Side)))
}

func TestPassthroughMapping(t *testing.T) {
	p := smallProfile()
	m := NewPassthroughMapping(p, 0, 3)
	assert.True(t, m.Passthrough)
	assert.Equal(t, uint64(3), m.Version)

	// The passthrough still covers its span so the cycle can composite it.
	covered := 0
	for y := 0; y < m.Side; y++ {
		for x := 0; x < m.Side; x++ {
			if m.Covers(x, y) {
				covered++
			}
		}
	}
	assert.Greater(t, covered, 0)
}

func BenchmarkBuildWedgeMapping(b *testing.B) {
	p := DefaultProfile() // full 600px canvas
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildWedgeMapping(p, 0, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWedgeApply(b *testing.B) {
	p := DefaultProfile()
	m, err := BuildWedgeMapping(p, 0, 1)
	if err != nil {
		b.Fatal(err)
	}
	src := NewPixmap(300, 300)
	src.Clear(Red)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Apply(src)
	}
}
