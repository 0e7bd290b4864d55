package cone

import (
	"time"

	"github.com/google/uuid"
)

// ViewFrame is one rectangular view of the subject, tagged with the viewpoint
// it belongs to. Frames are owned transiently by the pipeline and discarded
// after compositing; the image must not be mutated once the frame is handed
// to a warp worker.
type ViewFrame struct {
	// Image is the rectangular source frame.
	Image *Pixmap

	// Viewpoint is the index i in [0, N).
	Viewpoint int

	// CapturedAt is the source capture time, not the processing time.
	CapturedAt time.Time

	// TraceID correlates the frame across fan-out workers in logs. Frames of
	// the same capture cycle share one ID.
	TraceID uuid.UUID

	// Stale marks a frame reused from the previous cycle after a feed or
	// capture failure. At most one stale reuse is allowed before the source
	// is considered failed.
	Stale bool
}

// OutputCanvas is the composited circular texture handed to the display
// surface. Ownership transfers on handoff: the compositor keeps no usable
// reference and allocates or reuses a fresh buffer for the next cycle.
// Return the canvas with Compositor.Release when the display is done with it.
type OutputCanvas struct {
	// Pixmap holds the composited pixels, square with the profile's canvas
	// side. Pixels outside the display radius carry the background value.
	Pixmap *Pixmap

	// Seq is the display cycle sequence number.
	Seq uint64

	// TraceID correlates the canvas with the frames it was composed from.
	TraceID uuid.UUID

	// CreatedAt is the composition time.
	CreatedAt time.Time

	// StaleViewpoints lists viewpoints that were composited from a reused
	// previous-cycle wedge. Empty on a clean cycle.
	StaleViewpoints []int
}

// SavePNG writes the canvas to a PNG file, for offline calibration checks.
func (c *OutputCanvas) SavePNG(path string) error {
	return c.Pixmap.SavePNG(path)
}
