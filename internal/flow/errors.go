package flow

import "errors"

var (
	// ErrInvalidParameter reports a window size, pixel range or calibration
	// that cannot be used.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientData reports an image with too few lines for even one
	// window.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrWorkerFailure reports that an angle estimation task failed.
	ErrWorkerFailure = errors.New("worker failure")
)
