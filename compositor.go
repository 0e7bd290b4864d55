package cone

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Wedge pairs a warped wedge image with the mapping that produced it, ready
// for composition.
type Wedge struct {
	Mapping *WedgeMapping
	Image   *Pixmap
}

// Compositor merges warped wedges into one circular output texture, blending
// the overlap margins with the per-pixel weights stored in each mapping.
//
// The compositor is the single synchronization point of a display cycle: it
// composes after all wedge results are in. Compose itself is serialized by an
// internal mutex. Canvas buffers are pooled; hand a canvas back with Release
// once the display surface is done with it.
type Compositor struct {
	mu         sync.Mutex
	background RGBA
	seq        uint64

	// Weighted accumulation planes, reused across cycles.
	accum  []float32 // interleaved RGBA, len side*side*4
	weight []float32 // len side*side
	side   int

	pool     sync.Pool // *Pixmap, per current side
	poolSide int
}

// NewCompositor creates a compositor. The background value fills every pixel
// no wedge covers (outside the display radius, and failed wedges' spans).
func NewCompositor(background RGBA) *Compositor {
	return &Compositor{background: background}
}

// Compose writes every wedge into a fresh canvas at its angular span. In
// overlap margins the weights of adjacent wedges sum to 1, producing a linear
// cross-fade. Composing the same wedges twice yields identical output.
//
// All wedge mappings must share one canvas side (they come from one profile
// version line); nil wedge images are skipped, leaving that span to its
// neighbors or the background.
func (c *Compositor) Compose(wedges []Wedge) (*OutputCanvas, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	side := 0
	for _, w := range wedges {
		if w.Mapping != nil {
			side = w.Mapping.Side
			break
		}
	}
	if side == 0 {
		return nil, ErrNoWedges
	}

	c.ensurePlanes(side)
	clearF32(c.accum)
	clearF32(c.weight)

	// Accumulation order is the caller's wedge order, so identical input
	// yields bit-identical float sums.
	for _, wd := range wedges {
		if wd.Mapping == nil || wd.Image == nil || wd.Mapping.Side != side {
			continue
		}
		m := wd.Mapping
		pix := wd.Image.Data()
		for idx, wt := range m.w {
			if wt <= 0 {
				continue
			}
			pi := idx * 4
			c.accum[pi+0] += wt * float32(pix[pi+0])
			c.accum[pi+1] += wt * float32(pix[pi+1])
			c.accum[pi+2] += wt * float32(pix[pi+2])
			c.accum[pi+3] += wt * float32(pix[pi+3])
			c.weight[idx] += wt
		}
	}

	canvas := c.getCanvas(side)
	bg := [4]uint8{
		uint8(clamp255(c.background.R * 255)),
		uint8(clamp255(c.background.G * 255)),
		uint8(clamp255(c.background.B * 255)),
		uint8(clamp255(c.background.A * 255)),
	}
	out := canvas.Data()
	for idx, wt := range c.weight {
		pi := idx * 4
		if wt <= 0 {
			out[pi+0] = bg[0]
			out[pi+1] = bg[1]
			out[pi+2] = bg[2]
			out[pi+3] = bg[3]
			continue
		}
		// Normalizing by the summed weight keeps exact-boundary pixels
		// (covered at full weight by two wedges) from doubling.
		inv := 1 / wt
		out[pi+0] = quant(c.accum[pi+0] * inv)
		out[pi+1] = quant(c.accum[pi+1] * inv)
		out[pi+2] = quant(c.accum[pi+2] * inv)
		out[pi+3] = quant(c.accum[pi+3] * inv)
	}

	c.seq++
	return &OutputCanvas{
		Pixmap:    canvas,
		Seq:       c.seq,
		TraceID:   uuid.New(),
		CreatedAt: time.Now(),
	}, nil
}

// Release returns a handed-off canvas buffer to the pool. The caller must not
// touch the canvas afterwards. Canvases of a different size than the current
// profile line are discarded.
func (c *Compositor) Release(canvas *OutputCanvas) {
	if canvas == nil || canvas.Pixmap == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if canvas.Pixmap.Width() != c.poolSide {
		return
	}
	pm := canvas.Pixmap
	canvas.Pixmap = nil
	c.pool.Put(pm)
}

// ensurePlanes sizes the accumulation planes for the given canvas side.
func (c *Compositor) ensurePlanes(side int) {
	if c.side == side {
		return
	}
	c.side = side
	c.accum = make([]float32, side*side*4)
	c.weight = make([]float32, side*side)
}

// getCanvas fetches a pooled canvas of the given side or allocates one.
func (c *Compositor) getCanvas(side int) *Pixmap {
	if side != c.poolSide {
		c.pool = sync.Pool{}
		c.poolSide = side
	}
	if v := c.pool.Get(); v != nil {
		return v.(*Pixmap)
	}
	return NewPixmap(side, side)
}

// quant rounds a float32 channel value to a byte with clamping.
func quant(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// clearF32 zeroes a float32 slice.
func clearF32(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
