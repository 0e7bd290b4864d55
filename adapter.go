package cone

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/transform"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"github.com/Rockonmichi/CEN3907C-Pepper-s-Cone/internal/sample"

	// Frame decoders for the formats live feeds deliver.
	_ "image/jpeg"
	_ "image/png"
)

// Isolator is the opaque background-isolation collaborator: a frame -> frame
// transform producing a subject-isolated image of identical dimensions. The
// model internals are external to this core.
type Isolator interface {
	Isolate(img *image.NRGBA) *image.NRGBA
}

// IsolatorFunc adapts a function to the Isolator interface.
type IsolatorFunc func(img *image.NRGBA) *image.NRGBA

// Isolate implements Isolator.
func (f IsolatorFunc) Isolate(img *image.NRGBA) *image.NRGBA { return f(img) }

// VideoAdapter corrects a single incoming camera frame for perspective before
// it enters the warp stage — the live-video variant of the capture rig.
//
// Processing order per frame: decode, resize to the working resolution,
// optional background isolation, subject center+scale, projective correction
// aligning the subject's vertical axis with the cone-space reference axis.
//
// On a decode failure the last successfully adapted frame is reused once
// (marked Stale); a second consecutive failure escalates to ErrStaleFeed.
type VideoAdapter struct {
	mu           sync.Mutex
	workingSize  int
	subjectScale float64
	isolator     Isolator

	last   *ViewFrame
	misses int

	// Cached dst->src homography, keyed by the eye-height ratio it was
	// derived from.
	homogEye float64
	homog    [9]float64
	homogOK  bool
}

// AdapterOption configures a VideoAdapter during creation.
type AdapterOption func(*VideoAdapter)

// WithWorkingSize sets the square working resolution frames are normalized
// to before warping. Default 300.
func WithWorkingSize(px int) AdapterOption {
	return func(a *VideoAdapter) { a.workingSize = px }
}

// WithSubjectScale sets the center+scale factor applied to the isolated
// subject so it sits inside the frame with headroom. Default 0.6.
func WithSubjectScale(s float64) AdapterOption {
	return func(a *VideoAdapter) { a.subjectScale = s }
}

// WithIsolator sets the background-isolation collaborator. Nil means
// pass-through (no isolation).
func WithIsolator(iso Isolator) AdapterOption {
	return func(a *VideoAdapter) { a.isolator = iso }
}

// NewVideoAdapter creates an adapter with the given options.
func NewVideoAdapter(opts ...AdapterOption) *VideoAdapter {
	a := &VideoAdapter{
		workingSize:  300,
		subjectScale: 0.6,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Last returns the most recently adapted frame, or nil.
func (a *VideoAdapter) Last() *ViewFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Adapt converts one encoded raw frame (JPEG or PNG) into a ViewFrame for
// viewpoint 0.
//
// Failure ladder: if decoding fails and a previous frame exists, that frame
// is returned once with Stale set and a nil error; a second consecutive
// failure returns ErrStaleFeed. When no previous frame exists the decode
// failure surfaces directly as ErrDecodeFailure.
func (a *VideoAdapter) Adapt(raw []byte, profile CalibrationProfile) (ViewFrame, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return a.adaptFailure(err)
	}

	work := a.normalize(img)
	if a.isolator != nil {
		isolated := a.isolator.Isolate(work)
		if isolated != nil && isolated.Bounds() == work.Bounds() {
			work = isolated
		} else {
			Logger().Warn("cone: isolator returned mismatched frame, skipping isolation")
		}
	}
	work = a.centerScale(work)
	work = a.perspectiveCorrect(work, profile.EyeHeightRatio)

	frame := ViewFrame{
		Image:      FromImage(work),
		Viewpoint:  0,
		CapturedAt: time.Now(),
		TraceID:    uuid.New(),
	}

	a.mu.Lock()
	a.last = &frame
	a.misses = 0
	a.mu.Unlock()
	return frame, nil
}

// adaptFailure applies the one-stale-frame grace period.
func (a *VideoAdapter) adaptFailure(cause error) (ViewFrame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.misses++
	if a.last == nil {
		return ViewFrame{}, fmt.Errorf("%w: %v", ErrDecodeFailure, cause)
	}
	if a.misses > 1 {
		return ViewFrame{}, fmt.Errorf("%w after %d consecutive decode failures: %v", ErrStaleFeed, a.misses, cause)
	}

	Logger().Warn("cone: decode failed, reusing previous frame once",
		slog.Any("error", cause))
	stale := *a.last
	stale.Stale = true
	return stale, nil
}

// Replicate re-slices a single live frame into N angular copies so the
// single-viewpoint feed can drive an N-wedge warp when no physical
// multi-camera rig exists. The pixel data is shared, not copied.
func (a *VideoAdapter) Replicate(frame ViewFrame, n int) []ViewFrame {
	frames := make([]ViewFrame, n)
	for i := 0; i < n; i++ {
		f := frame
		f.Viewpoint = i
		frames[i] = f
	}
	return frames
}

// normalize converts a decoded frame to NRGBA at the working resolution.
func (a *VideoAdapter) normalize(img image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, a.workingSize, a.workingSize))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// centerScale shrinks the subject by the configured factor and pads it back
// to the working resolution, centered, with a transparent border.
func (a *VideoAdapter) centerScale(img *image.NRGBA) *image.NRGBA {
	if a.subjectScale <= 0 || a.subjectScale >= 1 {
		return img
	}
	size := img.Bounds().Dx()
	scaled := transform.Resize(img, int(float64(size)*a.subjectScale), int(float64(size)*a.subjectScale), transform.Linear)

	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	offX := (size - scaled.Bounds().Dx()) / 2
	offY := (size - scaled.Bounds().Dy()) / 2
	xdraw.Draw(out, scaled.Bounds().Add(image.Pt(offX, offY)), scaled, scaled.Bounds().Min, xdraw.Over)
	return out
}

// perspectiveCorrect applies the projective correction derived from the
// profile: a camera above or below the subject's center foreshortens the
// frame into a keystone; the inverse homography maps the subject's vertical
// axis back onto the cone-space reference axis.
func (a *VideoAdapter) perspectiveCorrect(img *image.NRGBA, eyeHeightRatio float64) *image.NRGBA {
	s := keystoneInset(eyeHeightRatio)
	if math.Abs(s) < 1e-9 {
		return img
	}

	h, ok := a.homographyFor(eyeHeightRatio, s, img.Bounds().Dx(), img.Bounds().Dy())
	if !ok {
		return img
	}

	w := img.Bounds().Dx()
	ht := img.Bounds().Dy()
	out := image.NewNRGBA(img.Bounds())
	fw, fh := float64(w), float64(ht)

	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			sx, sy := applyHomography(h, float64(x)+0.5, float64(y)+0.5)
			r, g, b, al := sample.At(img.Pix, w, ht, sx/fw, sy/fh, sample.Bilinear)
			i := y*out.Stride + x*4
			out.Pix[i+0] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = al
		}
	}
	return out
}

// homographyFor returns the cached dst->src homography for the given eye
// height, deriving it when the ratio changed.
func (a *VideoAdapter) homographyFor(eye, inset float64, w, h int) ([9]float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.homogOK && a.homogEye == eye {
		return a.homog, true
	}

	fw, fh := float64(w), float64(h)
	// Destination rectangle corners, clockwise from top-left.
	dst := [4][2]float64{{0, 0}, {fw, 0}, {fw, fh}, {0, fh}}
	// Source keystone: the top edge is pinched inward by the inset.
	src := [4][2]float64{{inset * fw, 0}, {(1 - inset) * fw, 0}, {fw, fh}, {0, fh}}

	homog, err := solveHomography(dst, src)
	if err != nil {
		Logger().Error("cone: homography solve failed", slog.Any("error", err))
		return [9]float64{}, false
	}
	a.homogEye = eye
	a.homog = homog
	a.homogOK = true
	return homog, true
}

// keystoneInset converts the eye-height ratio into the relative horizontal
// inset of the frame's top edge. A viewer at subject height (ratio 1) needs
// no correction. Like the radial remap constants, the exact proportionality
// is a calibration knob, not physics carved in stone.
func keystoneInset(eyeHeightRatio float64) float64 {
	s := (eyeHeightRatio - 1) / (2 * (eyeHeightRatio + 1))
	if s > 0.3 {
		return 0.3
	}
	if s < -0.3 {
		return -0.3
	}
	return s
}
