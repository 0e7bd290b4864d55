package cone

import (
	"fmt"

	"github.com/Rockonmichi/CEN3907C-Pepper-s-Cone/internal/mailbox"
)

// LiveSource feeds the pipeline from a live camera or video stream. The feed
// publishes encoded frames at its own cadence into a single-slot latest-wins
// buffer; the display loop takes the most recent frame on each cycle and
// never blocks waiting for a new one. If no new frame arrived, the previous
// adapted frame is composited again — display smoothness over frame
// completeness.
type LiveSource struct {
	adapter *VideoAdapter
	inbox   *mailbox.Mailbox[[]byte]
}

// NewLiveSource creates a live content source around an adapter.
func NewLiveSource(adapter *VideoAdapter) *LiveSource {
	return &LiveSource{
		adapter: adapter,
		inbox:   mailbox.New[[]byte](),
	}
}

// Publish hands an encoded frame (JPEG or PNG bytes) to the source. It never
// blocks; an unconsumed previous frame is dropped.
func (s *LiveSource) Publish(raw []byte) {
	s.inbox.Publish(raw)
}

// Drops reports how many published frames were overwritten before the
// display loop consumed them.
func (s *LiveSource) Drops() uint64 {
	return s.inbox.Stats().Dropped
}

// Close shuts the intake down.
func (s *LiveSource) Close() {
	s.inbox.Close()
}

// Frames implements FrameSource: it adapts the most recent raw frame and
// re-slices it into the profile's N angular copies.
func (s *LiveSource) Frames(profile CalibrationProfile) ([]ViewFrame, error) {
	raw, ok := s.inbox.Take()
	if !ok {
		// No new frame this cycle: composite the previous one again.
		if last := s.adapter.Last(); last != nil {
			return s.adapter.Replicate(*last, profile.Viewpoints), nil
		}
		return nil, fmt.Errorf("%w: no frame received yet", ErrStaleFeed)
	}

	frame, err := s.adapter.Adapt(raw, profile)
	if err != nil {
		return nil, err
	}
	return s.adapter.Replicate(frame, profile.Viewpoints), nil
}
