package cone

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the pipeline. Callers match them with errors.Is.
var (
	// ErrNoSubject is returned by Rig.Capture when no renderable subject is
	// bound. The content-selection layer must bind a subject and retry.
	ErrNoSubject = errors.New("cone: no subject bound")

	// ErrDecodeFailure is returned by VideoAdapter.Adapt when a raw frame
	// cannot be decoded and no previously adapted frame is available.
	ErrDecodeFailure = errors.New("cone: raw frame decode failed")

	// ErrStaleFeed is returned by VideoAdapter.Adapt after the one-stale-frame
	// grace period has been spent on consecutive decode failures.
	ErrStaleFeed = errors.New("cone: live feed stale")

	// ErrInvalidProfile is returned by BuildWedgeMapping when profile geometry
	// would make the radial remap non-monotonic or undefined. A validated
	// profile never triggers it; reaching the mapper with one is an invariant
	// violation.
	ErrInvalidProfile = errors.New("cone: invalid calibration profile geometry")

	// ErrNoWedges is returned by Compositor.Compose when called with no wedges.
	ErrNoWedges = errors.New("cone: nothing to compose")

	// ErrPipelineClosed is returned by Pipeline methods after Close.
	ErrPipelineClosed = errors.New("cone: pipeline closed")
)

// FieldError describes a single out-of-range calibration field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Reason
}

// ValidationError is returned by Controller.ApplyProfile (and
// CalibrationProfile.Validate) when a candidate profile has out-of-range
// values. It lists every offending field; the previously active profile is
// left untouched.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "cone: invalid profile"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("cone: invalid profile: %s", strings.Join(parts, "; "))
}

// add records one offending field.
func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// orNil returns the error, or nil when no field was rejected.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
