// Package kymograph holds line-scan images and the acquisition metadata
// needed to put them in physical units.
//
// A Kymograph is a 2-D array of non-negative integer samples. Rows are
// scan lines (time) and columns are pixels along the scanned vessel
// (space). Once loaded a Kymograph is never modified, so it can be shared
// by any number of goroutines without locking.
//
// # Coordinate System
//
// All indices are 0-based:
//   - line: row index, 0 = first acquired scan line
//   - pixel: column index, 0 = first pixel of each line
//   - For regions, start indices are inclusive and stop indices are exclusive
//
// # File Formats
//
// Images are decoded with github.com/disintegration/imaging, which covers
// TIFF (8 and 16-bit grayscale, the usual microscope export), PNG, JPEG,
// GIF and BMP. Color images are reduced to 16-bit luminance.
//
// Olympus exports write acquisition parameters to a tab separated text file
// next to the image (same base name, .txt extension). ReadOlympusHeader
// parses that sidecar into a Header carrying the spatial and temporal
// scale.
package kymograph
