package cone

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Rockonmichi/CEN3907C-Pepper-s-Cone/internal/mapcache"
)

// Controller validates and applies calibration changes. It is the only
// mutator of the active CalibrationProfile; every other component reads
// profile snapshots through it.
//
// Applying a profile bumps a version counter and rebuilds the cached
// WedgeMappings asynchronously, off the display path. The display loop keeps
// using the previous version's mapping (stale by at most one version) until
// the new one is swapped in. A rebuild overtaken by a newer profile is
// cancelled: last write wins, stale rebuilds are never queued.
type Controller struct {
	mu      sync.Mutex
	active  CalibrationProfile
	version uint64

	cache *mapcache.Cache[*WedgeMapping]

	rebuildCancel context.CancelFunc
	rebuildDone   chan struct{} // closed when the in-flight rebuild exits; nil if none
}

// NewController creates a controller with a validated initial profile.
func NewController(initial CalibrationProfile) (*Controller, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		active:  initial,
		version: 1,
		cache:   mapcache.New[*WedgeMapping](),
	}, nil
}

// Profile returns the active profile and its version.
func (c *Controller) Profile() (CalibrationProfile, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.version
}

// ApplyProfile validates a candidate profile and, on success, makes it the
// active profile: the version counter is incremented, existing mappings
// become stale, and an asynchronous rebuild of all viewpoint mappings starts.
// On failure it returns a *ValidationError listing the offending fields and
// leaves the previously active profile untouched — no partial application.
func (c *Controller) ApplyProfile(candidate CalibrationProfile) error {
	if err := candidate.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.active = candidate
	c.version++
	version := c.version

	// Last write wins: abandon the rebuild in progress, if any.
	if c.rebuildCancel != nil {
		c.rebuildCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.rebuildCancel = cancel
	done := make(chan struct{})
	c.rebuildDone = done

	c.cache.Trim(candidate.Viewpoints)
	c.mu.Unlock()

	Logger().Info("cone: profile applied",
		slog.Uint64("version", version),
		slog.Int("viewpoints", candidate.Viewpoints),
		slog.Float64("half_angle", candidate.ConeHalfAngle))

	go c.rebuild(ctx, candidate, version, done)
	return nil
}

// rebuild recomputes every viewpoint's mapping for one profile version and
// swaps each in atomically as it completes. Cancelled rebuilds stop between
// viewpoints; already-swapped mappings stay (they are the newest available).
func (c *Controller) rebuild(ctx context.Context, profile CalibrationProfile, version uint64, done chan struct{}) {
	defer close(done)
	start := time.Now()
	for i := 0; i < profile.Viewpoints; i++ {
		if ctx.Err() != nil {
			Logger().Debug("cone: rebuild abandoned",
				slog.Uint64("version", version), slog.Int("viewpoint", i))
			return
		}
		m, err := BuildWedgeMapping(profile, i, version)
		if err != nil {
			// Unreachable for a validated profile; degrade instead of crash.
			Logger().Error("cone: geometry invariant violation during rebuild",
				slog.Uint64("version", version), slog.Int("viewpoint", i),
				slog.Any("error", err))
			m = NewPassthroughMapping(profile, i, version)
		}
		c.cache.Put(i, m, version)
	}
	Logger().Debug("cone: rebuild finished",
		slog.Uint64("version", version),
		slog.Duration("elapsed", time.Since(start)))
}

// MappingFor returns the warp mapping for viewpoint i. The newest completed
// build is returned, which may be stale by one version while a rebuild is in
// flight; the display loop never blocks on a rebuild. When no mapping exists
// at all (first use), it is built lazily and synchronously.
//
// Malformed geometry reaching the build — impossible for a validated profile —
// is logged as an invariant violation and degrades that wedge to a no-warp
// passthrough rather than failing the cycle.
func (c *Controller) MappingFor(i int) *WedgeMapping {
	if m, _, ok := c.cache.Get(i); ok {
		return m
	}

	profile, version := c.Profile()
	m, err := BuildWedgeMapping(profile, i, version)
	if err != nil {
		Logger().Error("cone: geometry invariant violation",
			slog.Uint64("version", version), slog.Int("viewpoint", i),
			slog.Any("error", err))
		m = NewPassthroughMapping(profile, i, version)
	}
	c.cache.Put(i, m, version)
	// Re-read: an async rebuild may have swapped in a newer version while we
	// were building.
	if cached, _, ok := c.cache.Get(i); ok {
		return cached
	}
	return m
}

// CacheStats exposes mapping cache counters for monitoring.
func (c *Controller) CacheStats() mapcache.Stats {
	return c.cache.Stats()
}

// WaitRebuild blocks until the most recently started rebuild has exited, or
// the context is done. It is a test and shutdown aid; the display path never
// calls it.
func (c *Controller) WaitRebuild(ctx context.Context) error {
	c.mu.Lock()
	done := c.rebuildDone
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight rebuild.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rebuildCancel != nil {
		c.rebuildCancel()
		c.rebuildCancel = nil
	}
}
