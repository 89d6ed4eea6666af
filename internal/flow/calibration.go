package flow

import (
	"fmt"
	"math"
)

// Calibration converts image coordinates to physical units.
type Calibration struct {
	// SecondsPerLine is the scan line period (delt).
	SecondsPerLine float64 `json:"seconds_per_line"`

	// MicronsPerPixel is the pixel size along the scan line (delx).
	MicronsPerPixel float64 `json:"microns_per_pixel"`
}

// Validate checks that both scale factors are finite and positive.
func (c Calibration) Validate() error {
	if !(c.SecondsPerLine > 0) || math.IsInf(c.SecondsPerLine, 0) {
		return fmt.Errorf("%w: seconds per line must be positive, got %v", ErrInvalidParameter, c.SecondsPerLine)
	}
	if !(c.MicronsPerPixel > 0) || math.IsInf(c.MicronsPerPixel, 0) {
		return fmt.Errorf("%w: microns per pixel must be positive, got %v", ErrInvalidParameter, c.MicronsPerPixel)
	}
	return nil
}
