package extraction

import "errors"

var (
	// ErrLocatorExhausted is returned when no strategy of a query produced a candidate.
	ErrLocatorExhausted = errors.New("locator exhausted")

	// ErrWaitTimeout is returned by Poller.Until when its budget runs out.
	ErrWaitTimeout = errors.New("wait timeout")

	// ErrTransitionTimeout is returned when no result context appeared in time.
	ErrTransitionTimeout = errors.New("transition timeout")

	// ErrSubmitNotFound marks the one lookup failure that ends a session.
	ErrSubmitNotFound = errors.New("submit control not found")

	// ErrDriverUnavailable wraps failures of the browser collaborator itself.
	ErrDriverUnavailable = errors.New("browser driver unavailable")
)
