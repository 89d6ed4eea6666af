package flow

import "fmt"

// PixelRange restricts analysis to the columns [Start, Stop). A zero Stop
// means the full line width.
type PixelRange struct {
	Start int `json:"start_pixel"`
	Stop  int `json:"stop_pixel"`
}

// Resolve fills in the default stop and validates the range against the
// line width.
func (p PixelRange) Resolve(pixelsPerLine int) (PixelRange, error) {
	if p.Stop == 0 {
		p.Stop = pixelsPerLine
	}
	if p.Start < 0 || p.Stop > pixelsPerLine || p.Start >= p.Stop {
		return p, fmt.Errorf("%w: pixel range [%d, %d) outside line of %d pixels",
			ErrInvalidParameter, p.Start, p.Stop, pixelsPerLine)
	}
	return p, nil
}

// Window is one block of scan lines fed to the angle estimator.
type Window struct {
	Index      int `json:"index"`
	StartLine  int `json:"start_line"`
	StopLine   int `json:"stop_line"`
	CenterLine int `json:"center_line"`
	StartPixel int `json:"start_pixel"`
	StopPixel  int `json:"stop_pixel"`
}

// Plan lays out the analysis windows for an image.
//
// The stride is windowSize/4 and there are floor(numLines/stride) - 3
// windows. Window k covers lines [k*stride, k*stride+windowSize) and its
// center line index is 1 + k*stride + windowSize/2, the line whose time
// stamps the window's velocity.
//
// # Errors
//
//   - ErrInvalidParameter if windowSize is not a positive multiple of 4
//   - ErrInvalidParameter if the pixel range does not fit the line
//   - ErrInsufficientData if no complete window fits
func Plan(numLines, pixelsPerLine, windowSize int, pixels PixelRange) ([]Window, error) {
	if windowSize <= 0 || windowSize%4 != 0 {
		return nil, fmt.Errorf("%w: window size must be a positive multiple of 4, got %d", ErrInvalidParameter, windowSize)
	}
	px, err := pixels.Resolve(pixelsPerLine)
	if err != nil {
		return nil, err
	}

	stride := windowSize / 4
	nsteps := numLines/stride - 3
	if nsteps <= 0 {
		return nil, fmt.Errorf("%w: %d lines is too few for window size %d", ErrInsufficientData, numLines, windowSize)
	}

	windows := make([]Window, nsteps)
	for k := range windows {
		start := k * stride
		windows[k] = Window{
			Index:      k,
			StartLine:  start,
			StopLine:   start + windowSize,
			CenterLine: 1 + start + windowSize/2,
			StartPixel: px.Start,
			StopPixel:  px.Stop,
		}
	}

	if last := windows[nsteps-1]; last.StopLine > numLines {
		return nil, fmt.Errorf("%w: window %d ends at line %d past %d lines", ErrInsufficientData, last.Index, last.StopLine, numLines)
	}
	return windows, nil
}
