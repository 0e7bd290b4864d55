package cone

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
)

// ViewGeometry describes one synthetic camera of the capture rig: positioned
// at the given yaw around the subject, elevated by the eye-height ratio
// relative to the subject's bounding volume, looking at the subject's center.
type ViewGeometry struct {
	// Yaw is the camera's angle around the subject in radians.
	Yaw float64

	// EyeHeightRatio is the camera elevation relative to the subject.
	EyeHeightRatio float64

	// Width and Height are the requested frame dimensions in pixels.
	Width, Height int
}

// Subject is the renderable content the rig captures. The content-selection
// layer binds one; the rig reads it each cycle. Implementations must be safe
// for concurrent RenderView calls — the rig may fan captures out to workers.
type Subject interface {
	// RenderView draws the subject as seen from the given camera geometry.
	RenderView(view ViewGeometry) (*Pixmap, error)
}

// Rig owns the N synthetic viewpoints arranged around the subject and
// produces one rectangular frame per viewpoint per capture.
type Rig struct {
	mu      sync.RWMutex
	subject Subject

	frameWidth  int
	frameHeight int
}

// NewRig creates a capture rig producing frames of the given dimensions.
func NewRig(frameWidth, frameHeight int) *Rig {
	return &Rig{frameWidth: frameWidth, frameHeight: frameHeight}
}

// Bind makes s the current subject. Passing nil unbinds.
func (r *Rig) Bind(s Subject) {
	r.mu.Lock()
	r.subject = s
	r.mu.Unlock()
}

// Unbind removes the current subject; subsequent captures fail with
// ErrNoSubject until a new subject is bound.
func (r *Rig) Unbind() { r.Bind(nil) }

// Subject returns the currently bound subject, or nil.
func (r *Rig) Subject() Subject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subject
}

// Capture produces exactly N frames, one per viewpoint, evenly spaced at
// angle 2*Pi*i/N + CenterOffset and elevated by the profile's eye-height
// ratio. It fails with ErrNoSubject when no renderable content is bound; the
// content-selection layer must bind a subject and retry.
//
// A per-viewpoint render error fails only that frame: the returned slice
// holds a nil-image frame at that index and the first error is returned
// alongside the frames, so the caller can isolate the bad wedge.
func (r *Rig) Capture(profile CalibrationProfile) ([]ViewFrame, error) {
	subject := r.Subject()
	if subject == nil {
		return nil, ErrNoSubject
	}

	n := profile.Viewpoints
	trace := uuid.New()
	now := time.Now()
	frames := make([]ViewFrame, n)
	var firstErr error

	for i := 0; i < n; i++ {
		yaw, _ := profile.WedgeSpan(i)
		pm, err := subject.RenderView(ViewGeometry{
			Yaw:            yaw,
			EyeHeightRatio: profile.EyeHeightRatio,
			Width:          r.frameWidth,
			Height:         r.frameHeight,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("cone: render viewpoint %d: %w", i, err)
			}
			Logger().Warn("cone: viewpoint render failed",
				slog.Int("viewpoint", i), slog.Any("error", err))
			pm = nil
		}
		frames[i] = ViewFrame{
			Image:      pm,
			Viewpoint:  i,
			CapturedAt: now,
			TraceID:    trace,
		}
	}
	return frames, firstErr
}

// Frames implements FrameSource, so a Rig can be handed to a Pipeline
// directly as its content source.
func (r *Rig) Frames(profile CalibrationProfile) ([]ViewFrame, error) {
	return r.Capture(profile)
}

// StillSubject renders one fixed image from every viewpoint. It is the
// still-image mode of the display: the cone shows the same picture all
// around. The image is scaled to the requested frame size on each render.
type StillSubject struct {
	src *image.NRGBA
}

// NewStillSubject creates a subject from any image.
func NewStillSubject(img image.Image) *StillSubject {
	pm := FromImage(img)
	return &StillSubject{src: pm.ToImage()}
}

// RenderView implements Subject. The yaw is ignored; every viewpoint sees the
// same picture.
func (s *StillSubject) RenderView(view ViewGeometry) (*Pixmap, error) {
	if view.Width <= 0 || view.Height <= 0 {
		return nil, fmt.Errorf("cone: still subject: bad frame size %dx%d", view.Width, view.Height)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, view.Width, view.Height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), s.src, s.src.Bounds(), xdraw.Src, nil)
	return FromImage(dst), nil
}

// SubjectFunc adapts a function to the Subject interface.
type SubjectFunc func(view ViewGeometry) (*Pixmap, error)

// RenderView implements Subject.
func (f SubjectFunc) RenderView(view ViewGeometry) (*Pixmap, error) {
	return f(view)
}
