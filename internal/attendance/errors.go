package attendance

import "errors"

// Engine error taxonomy. None of these terminate the process; each is
// contained to the affected session or single operation.
var (
	// ErrResourceUnavailable means the capture device could not be
	// acquired. Fatal to the session, no retry.
	ErrResourceUnavailable = errors.New("capture resource unavailable")

	// ErrDetection marks a transient detection/embedding failure for a
	// single frame. The frame's matching is skipped and the loop
	// continues.
	ErrDetection = errors.New("face detection failed")

	// ErrRosterLoad means a roster reload failed. The cache is left
	// empty and subsequent matches report Unknown.
	ErrRosterLoad = errors.New("roster load failed")

	// ErrPersistence means a match was computed but not durably
	// recorded. Logged; the session continues.
	ErrPersistence = errors.New("attendance record not persisted")

	// ErrPublish means a live notification was dropped. Logged, no
	// retry.
	ErrPublish = errors.New("attendance event not published")
)
