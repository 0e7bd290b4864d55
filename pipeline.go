package cone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FrameSource produces the view frames of one display cycle. Rig and
// LiveSource both implement it; which one feeds the pipeline is upstream
// content-selection logic, not this core's decision.
type FrameSource interface {
	Frames(profile CalibrationProfile) ([]ViewFrame, error)
}

// Pipeline is the display loop: each cycle it pulls N view frames from the
// content source, warps them through the cached wedge mappings on parallel
// workers, waits for all wedges at the compositor barrier and hands the
// composited canvas to the display surface.
//
// Per-viewpoint failures are isolated. A wedge whose frame is missing this
// cycle is composited from the previous cycle's result once; a second
// consecutive miss drops the wedge to the background. One bad wedge never
// aborts the composite.
type Pipeline struct {
	ctrl *Controller
	comp *Compositor

	mu      sync.Mutex
	source  FrameSource
	prev    []prevWedge
	closed  bool
	workers int
	interp  Interpolation

	onCanvas func(*OutputCanvas)
}

// prevWedge retains one cycle's wedge result for bounded stale reuse.
type prevWedge struct {
	mapping *WedgeMapping
	image   *Pixmap
	stale   int // consecutive cycles this wedge has been reused
}

// NewPipeline creates a display pipeline around a controller.
func NewPipeline(ctrl *Controller, opts ...PipelineOption) (*Pipeline, error) {
	if ctrl == nil {
		return nil, errors.New("cone: pipeline needs a controller")
	}
	o := defaultPipelineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline{
		ctrl:     ctrl,
		comp:     NewCompositor(o.background),
		source:   o.source,
		workers:  o.workers,
		interp:   o.interp,
		onCanvas: o.onCanvas,
	}, nil
}

// Compositor returns the pipeline's compositor, so the display surface can
// hand canvases back with Release.
func (p *Pipeline) Compositor() *Compositor { return p.comp }

// SetSource swaps the content source. The content-selection layer calls this
// when the user switches between model and live video.
func (p *Pipeline) SetSource(s FrameSource) {
	p.mu.Lock()
	p.source = s
	p.prev = nil
	p.mu.Unlock()
}

// RunCycle executes one capture-warp-compose cycle and returns the canvas.
// A cycle with no usable content composes from the previous cycle's wedges
// (bounded to one stale cycle per wedge) or renders a blank background disk,
// and still returns a canvas; the error reports why the cycle degraded.
func (p *Pipeline) RunCycle(ctx context.Context) (*OutputCanvas, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPipelineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.source == nil {
		return nil, fmt.Errorf("%w: no content source set", ErrNoSubject)
	}

	profile, _ := p.ctrl.Profile()
	n := profile.Viewpoints

	frames, srcErr := p.source.Frames(profile)
	if srcErr != nil && frames == nil {
		Logger().Warn("cone: cycle has no content", slog.Any("error", srcErr))
	}

	results := make([]Wedge, n)
	reused := make([]bool, n)

	workers := p.workers
	if workers <= 0 || workers > n {
		workers = n
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		var src *Pixmap
		if i < len(frames) {
			src = frames[i].Image
		}

		wg.Add(1)
		go func(i int, src *Pixmap) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mapping := p.ctrl.MappingFor(i)
			if src == nil {
				// Missing frame: reuse the previous cycle's wedge at most once.
				if pw := p.prevFor(i); pw != nil && pw.stale < 1 {
					results[i] = Wedge{Mapping: pw.mapping, Image: pw.image}
					reused[i] = true
				} else {
					results[i] = Wedge{Mapping: mapping} // background span
				}
				return
			}
			results[i] = Wedge{Mapping: mapping, Image: mapping.ApplyInterp(src, p.interp)}
		}(i, src)
	}
	wg.Wait()

	canvas, err := p.comp.Compose(results)
	if err != nil {
		return nil, err
	}

	// Retain this cycle's wedges for bounded reuse next cycle.
	next := make([]prevWedge, n)
	var staleVps []int
	for i := 0; i < n; i++ {
		switch {
		case reused[i]:
			pw := *p.prevFor(i)
			pw.stale++
			next[i] = pw
			staleVps = append(staleVps, i)
			Logger().Warn("cone: wedge reused from previous cycle", slog.Int("viewpoint", i))
		case results[i].Image != nil:
			next[i] = prevWedge{mapping: results[i].Mapping, image: results[i].Image}
		default:
			Logger().Warn("cone: wedge dropped to background", slog.Int("viewpoint", i))
		}
	}
	p.prev = next

	canvas.StaleViewpoints = staleVps
	if len(frames) > 0 {
		canvas.TraceID = frames[0].TraceID
	}

	if p.onCanvas != nil {
		p.onCanvas(canvas)
	}
	return canvas, srcErr
}

// prevFor returns the retained wedge for a viewpoint, or nil.
func (p *Pipeline) prevFor(i int) *prevWedge {
	if i >= len(p.prev) {
		return nil
	}
	pw := p.prev[i]
	if pw.image == nil || pw.mapping == nil {
		return nil
	}
	return &pw
}

// Run executes cycles at a fixed target rate until the context is done.
// Degraded cycles (no subject, stale feed) are logged and the loop continues;
// only context cancellation stops it.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.RunCycle(ctx); err != nil {
				if errors.Is(err, ErrPipelineClosed) || errors.Is(err, context.Canceled) {
					return err
				}
				Logger().Warn("cone: degraded cycle", slog.Any("error", err))
			}
		}
	}
}

// Close stops the pipeline; further cycles return ErrPipelineClosed.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.prev = nil
	p.mu.Unlock()
}
