package cone

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodePNG renders a solid test frame to PNG bytes.
func encodePNG(t *testing.T, c color.NRGBA, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testAdapter(opts ...AdapterOption) *VideoAdapter {
	base := []AdapterOption{WithWorkingSize(32)}
	return NewVideoAdapter(append(base, opts...)...)
}

func TestAdaptProducesWorkingSizeFrame(t *testing.T) {
	a := testAdapter()
	raw := encodePNG(t, color.NRGBA{R: 200, A: 255}, 64, 48)

	frame, err := a.Adapt(raw, smallProfile())
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Viewpoint)
	assert.Equal(t, 32, frame.Image.Width())
	assert.Equal(t, 32, frame.Image.Height())
	assert.False(t, frame.Stale)
	assert.False(t, frame.CapturedAt.IsZero())

	// The subject is centered and scaled down, so the frame border is
	// transparent padding while the center keeps the subject.
	center := frame.Image.GetPixel(16, 16)
	assert.Greater(t, center.A, 0.9)
	corner := frame.Image.GetPixel(0, 0)
	assert.Zero(t, corner.A)
}

func TestAdaptDecodeFailureWithNoHistory(t *testing.T) {
	a := testAdapter()
	_, err := a.Adapt([]byte("not an image"), smallProfile())
	require.ErrorIs(t, err, ErrDecodeFailure)
}

// TestAdaptStaleFrameGracePeriod is the feed-failure ladder: a decode failure
// on cycle k reuses cycle k-1's adapted frame; a failure on cycle k+1 too
// escalates to ErrStaleFeed.
func TestAdaptStaleFrameGracePeriod(t *testing.T) {
	a := testAdapter()
	p := smallProfile()
	good := encodePNG(t, color.NRGBA{G: 255, A: 255}, 20, 20)

	fresh, err := a.Adapt(good, p)
	require.NoError(t, err)

	// Cycle k: decode fails, previous frame reused once, marked stale.
	stale, err := a.Adapt([]byte("garbage"), p)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Equal(t, fresh.TraceID, stale.TraceID)
	assert.True(t, stale.Image.Equal(fresh.Image))

	// Cycle k+1: still failing, the grace period is spent.
	_, err = a.Adapt([]byte("garbage"), p)
	require.ErrorIs(t, err, ErrStaleFeed)

	// A good frame resets the ladder.
	_, err = a.Adapt(good, p)
	require.NoError(t, err)
	reused, err := a.Adapt([]byte("garbage"), p)
	require.NoError(t, err)
	assert.True(t, reused.Stale)
}

func TestAdaptInvokesIsolator(t *testing.T) {
	called := false
	iso := IsolatorFunc(func(img *image.NRGBA) *image.NRGBA {
		called = true
		// Blank the frame entirely: the result must flow through.
		return image.NewNRGBA(img.Bounds())
	})
	a := testAdapter(WithIsolator(iso), WithSubjectScale(0))

	frame, err := a.Adapt(encodePNG(t, color.NRGBA{B: 255, A: 255}, 16, 16), smallProfile())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Zero(t, frame.Image.GetPixel(16, 16).A, "isolated output must be used")
}

func TestAdaptSkipsMismatchedIsolator(t *testing.T) {
	iso := IsolatorFunc(func(img *image.NRGBA) *image.NRGBA {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1)) // wrong dimensions
	})
	a := testAdapter(WithIsolator(iso), WithSubjectScale(0))

	frame, err := a.Adapt(encodePNG(t, color.NRGBA{B: 255, A: 255}, 16, 16), smallProfile())
	require.NoError(t, err)
	assert.Greater(t, frame.Image.GetPixel(16, 16).A, 0.9,
		"mismatched isolator output is discarded, original frame kept")
}

func TestReplicateSharesPixelsAcrossViewpoints(t *testing.T) {
	a := testAdapter()
	frame, err := a.Adapt(encodePNG(t, color.NRGBA{R: 255, A: 255}, 16, 16), smallProfile())
	require.NoError(t, err)

	frames := a.Replicate(frame, 4)
	require.Len(t, frames, 4)
	for i, f := range frames {
		assert.Equal(t, i, f.Viewpoint)
		assert.Same(t, frame.Image, f.Image, "replication shares, not copies")
		assert.Equal(t, frame.TraceID, f.TraceID)
	}
}

func TestKeystoneInset(t *testing.T) {
	// A viewer at subject height needs no correction.
	assert.Zero(t, keystoneInset(1))
	// Above the subject pinches the top edge inward, below widens it.
	assert.Greater(t, keystoneInset(1.5), 0.0)
	assert.Less(t, keystoneInset(0.5), 0.0)
	// Extreme ratios clamp instead of folding the frame over itself.
	assert.LessOrEqual(t, keystoneInset(1e9), 0.3)
	assert.GreaterOrEqual(t, keystoneInset(1e-9), -0.3)
}

func TestPerspectiveCorrectionIdentityAtEyeLevel(t *testing.T) {
	a := testAdapter(WithSubjectScale(0))
	p := smallProfile()
	p.EyeHeightRatio = 1 // no keystone

	raw := encodePNG(t, color.NRGBA{R: 10, G: 200, B: 30, A: 255}, 32, 32)
	frame, err := a.Adapt(raw, p)
	require.NoError(t, err)

	want := NewPixmap(32, 32)
	want.Clear(RGBA{R: 10.0 / 255, G: 200.0 / 255, B: 30.0 / 255, A: 1})
	assert.True(t, frame.Image.Equal(want), "eye-level feed must pass through unwarped")
}
