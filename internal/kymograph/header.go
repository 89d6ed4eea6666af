package kymograph

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Header holds the acquisition parameters from an Olympus sidecar file.
type Header struct {
	Date           string  `json:"date,omitempty"`
	Time           string  `json:"time,omitempty"`
	UmPerPixel     float64 `json:"um_per_pixel"`
	DurationSec    float64 `json:"duration_sec"`
	SecondsPerLine float64 `json:"seconds_per_line"`
	PixelsPerLine  int     `json:"pixels_per_line"`
	NumLines       int     `json:"num_lines"`
	BitsPerPixel   int     `json:"bits_per_pixel,omitempty"`
}

// HeaderPath returns the sidecar path for an image: same base name, .txt.
func HeaderPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
}

// ReadOlympusHeader parses the sidecar text file exported next to an image.
//
// The relevant lines look like:
//
//	"Date"	"11/02/2022 12:54:17.359 PM"
//	"X Dimension"	"38, 0.0 - 10.796 [um], 0.284 [um/pixel]"
//	"T Dimension"	"1, 0.000 - 35.099 [s], Interval FreeRun"
//	"Image Size"	"38 * 30000 [pixel]"
//	"Bits/Pixel"	"12 [bits]"
//
// Only the first "Image Size" line is used; later ones describe other
// channels. SecondsPerLine is the total duration divided by the number of
// lines.
//
// # Errors
//
//   - Returns error if the sidecar does not exist or cannot be read
//   - Returns error if a recognized line has a malformed value
//   - Returns error if the scale lines are missing
func ReadOlympusHeader(imagePath string) (*Header, error) {
	txtPath := HeaderPath(imagePath)
	f, err := os.Open(txtPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Olympus header: %w", err)
	}
	defer f.Close()

	h := &Header{}
	sawSize := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)

		switch {
		case strings.HasPrefix(line, `"X Dimension"`):
			v, err := headerFloat(fields, 7)
			if err != nil {
				return nil, fmt.Errorf("X Dimension: %w", err)
			}
			h.UmPerPixel = v
		case strings.HasPrefix(line, `"T Dimension"`):
			v, err := headerFloat(fields, 5)
			if err != nil {
				return nil, fmt.Errorf("T Dimension: %w", err)
			}
			h.DurationSec = v
		case strings.HasPrefix(line, `"Image Size"`):
			if sawSize {
				continue
			}
			px, err := headerInt(fields, 2)
			if err != nil {
				return nil, fmt.Errorf("Image Size: %w", err)
			}
			n, err := headerInt(fields, 4)
			if err != nil {
				return nil, fmt.Errorf("Image Size: %w", err)
			}
			h.PixelsPerLine, h.NumLines = px, n
			sawSize = true
		case strings.HasPrefix(line, `"Date"`):
			if len(fields) < 3 {
				continue
			}
			h.Date = strings.Trim(fields[1], `"`)
			t := fields[2]
			if dot := strings.Index(t, "."); dot != -1 {
				t = t[:dot]
			}
			h.Time = t
		case strings.HasPrefix(line, `"Bits/Pixel"`):
			v, err := headerInt(fields, 1)
			if err != nil {
				return nil, fmt.Errorf("Bits/Pixel: %w", err)
			}
			h.BitsPerPixel = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Olympus header: %w", err)
	}

	if h.UmPerPixel == 0 || h.DurationSec == 0 || h.NumLines == 0 {
		return nil, fmt.Errorf("Olympus header %s is missing X Dimension, T Dimension or Image Size", txtPath)
	}
	h.SecondsPerLine = h.DurationSec / float64(h.NumLines)
	return h, nil
}

func headerField(fields []string, i int) (string, error) {
	if i >= len(fields) {
		return "", fmt.Errorf("expected at least %d fields, got %d", i+1, len(fields))
	}
	return strings.Trim(fields[i], `",`), nil
}

func headerFloat(fields []string, i int) (float64, error) {
	s, err := headerField(fields, i)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func headerInt(fields []string, i int) (int, error) {
	s, err := headerField(fields, i)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
