package capture

import "errors"

var (
	// ErrInvalidTransition is returned for an event the current state does not accept.
	ErrInvalidTransition = errors.New("capture: invalid transition")

	// ErrExtractionPending is returned for any request made while an extraction
	// is in flight, other than cancellation.
	ErrExtractionPending = errors.New("capture: extraction pending")

	// ErrSessionClosed is returned for any request on a committed or cancelled session.
	ErrSessionClosed = errors.New("capture: session closed")

	// ErrCapabilityUnavailable is returned when speech capture is not offered
	// by the platform. The session stays usable in another mode.
	ErrCapabilityUnavailable = errors.New("capture: speech capture unavailable")

	// ErrSessionNotFound is returned by Registry.Get for an unknown id.
	ErrSessionNotFound = errors.New("capture: session not found")
)
