package portal

import "errors"

// Portal interaction failures. All are retryable by the caller; none are
// retried automatically here.
var (
	// ErrFrameNotFound means a frame-resolution step returned no element.
	ErrFrameNotFound = errors.New("work-area frame not found")

	// ErrFrameTimeout means the work-area frame never reached its loaded
	// state within the bound.
	ErrFrameTimeout = errors.New("work-area frame load timed out")

	// ErrElementNotFound means a selector matched nothing within the bound.
	ErrElementNotFound = errors.New("element not found")

	// ErrClickTimeout means the element was found but the click did not
	// complete within the bound.
	ErrClickTimeout = errors.New("click timed out")

	// ErrLoginFailed means the login sequence did not settle.
	ErrLoginFailed = errors.New("portal login failed")
)
