package cone

// PipelineOption configures a Pipeline during creation.
// Use functional options to customize Pipeline behavior.
//
// Example:
//
//	p, err := cone.NewPipeline(ctrl,
//	    cone.WithSource(rig),
//	    cone.WithWorkers(4),
//	    cone.WithOnCanvas(display.Present),
//	)
type PipelineOption func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	source     FrameSource
	workers    int
	interp     Interpolation
	background RGBA
	onCanvas   func(*OutputCanvas)
}

// defaultPipelineOptions returns the default pipeline options.
func defaultPipelineOptions() pipelineOptions {
	return pipelineOptions{
		workers:    0, // 0 means one worker per viewpoint
		interp:     InterpBilinear,
		background: Transparent,
	}
}

// WithSource sets the content source the pipeline pulls frames from each
// cycle. The content-selection layer may swap it later with
// Pipeline.SetSource.
func WithSource(s FrameSource) PipelineOption {
	return func(o *pipelineOptions) { o.source = s }
}

// WithWorkers bounds the number of parallel warp workers per cycle.
// Zero (the default) runs one worker per viewpoint.
func WithWorkers(n int) PipelineOption {
	return func(o *pipelineOptions) { o.workers = n }
}

// WithInterpolation sets the sampling mode used when warping source frames.
func WithInterpolation(i Interpolation) PipelineOption {
	return func(o *pipelineOptions) { o.interp = i }
}

// WithBackground sets the value for canvas pixels no wedge covers.
func WithBackground(c RGBA) PipelineOption {
	return func(o *pipelineOptions) { o.background = c }
}

// WithOnCanvas registers the display-surface callback invoked with each
// composited canvas. Ownership of the canvas transfers to the callback;
// return it with Compositor.Release when done.
func WithOnCanvas(fn func(*OutputCanvas)) PipelineOption {
	return func(o *pipelineOptions) { o.onCanvas = fn }
}
