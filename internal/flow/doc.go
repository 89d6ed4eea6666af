// Package flow turns a kymograph into a blood-flow velocity time series.
//
// Analysis runs in four steps:
//
//  1. Plan splits the scan lines into overlapping windows. The stride is a
//     quarter of the window size, so consecutive windows share 75% of
//     their lines.
//  2. A Dispatcher runs radon.EstimateAngle on every window using a Pool of
//     goroutines created for the call and released when it returns.
//  3. Convert maps each angle to a velocity in mm/s using the calibration.
//  4. The resulting Series is returned unmodified; cleanup is done on
//     demand by the postprocess package.
//
// # Errors
//
// Structural problems are returned as errors wrapping one of
// ErrInvalidParameter, ErrInsufficientData or ErrWorkerFailure; use
// errors.Is to test for them. Numerically degenerate windows are not
// errors: their velocity is NaN.
//
// # Determinism
//
// Results are stored by window index, so the output does not depend on
// the number of workers or the order in which windows finish.
package flow
