// Package cone implements the view-synthesis and warp-compositing core of a
// Pepper's Cone display: a warped polar image that, reflected off a cone-shaped
// mirror standing on a flat screen, reconstructs a free-standing 3D presence.
//
// # Overview
//
// The pipeline turns N rectangular views of a subject into one circular image
// matched to a physical cone:
//
//	Rig / VideoAdapter -> WedgeMapping (per viewpoint) -> Compositor -> OutputCanvas
//
// A CalibrationProfile describes the cone geometry (half-angle, display radius,
// viewer eye height, distortion, angular offset, viewpoint count). The
// Controller is the only writer of the active profile; every profile change
// bumps a version counter and rebuilds the cached warp tables off the display
// path.
//
// # Quick Start
//
//	profile := cone.DefaultProfile()
//	ctrl, _ := cone.NewController(profile)
//
//	rig := cone.NewRig(300, 300)
//	rig.Bind(cone.NewStillSubject(img))
//
//	p, _ := cone.NewPipeline(ctrl, cone.WithSource(rig))
//	canvas, _ := p.RunCycle(context.Background())
//	canvas.SavePNG("cone.png")
//
// # Coordinate Conventions
//
// The output canvas is square with side 2*DisplayRadius, origin at top-left,
// polar angles measured with atan2(dy, dx) and normalized to [0, 2*Pi). Inside
// a wedge the angle maps linearly to the source frame's horizontal axis, and
// the remapped radius maps to the vertical axis with the rim of the disk
// sampling the top of the frame (v=0) and the apex sampling the bottom (v=1).
// The convention is fixed once and applied identically to every wedge.
//
// # Logging
//
// The package produces no log output by default. Call SetLogger to enable it.
package cone
