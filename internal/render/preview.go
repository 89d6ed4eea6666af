// Package render draws kymographs and velocity series for people to look
// at: a contrast-adjusted, colormapped kymograph preview and velocity
// plots as PNG or interactive HTML.
//
// Previews are rotated so time runs left to right, the way kymographs are
// usually shown next to their velocity trace.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
)

// PreviewOptions controls Preview.
type PreviewOptions struct {
	// StartLine and StopLine select lines [StartLine, StopLine). A zero
	// StopLine means the last line.
	StartLine int `json:"start_line,omitempty"`
	StopLine  int `json:"stop_line,omitempty"`

	// Gamma below 1 brightens dim vessels; 0 means 1.
	Gamma float64 `json:"gamma,omitempty"`

	// Colormap is one of ColormapNames; empty means gray.
	Colormap string `json:"colormap,omitempty"`

	// Width and Height resize the rotated preview. If one is 0 the aspect
	// ratio is kept; if both are 0 the preview is not resized.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// ImageResult is an encoded image ready to return to a client.
type ImageResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Preview renders lines of kym as a display image. The output is
// NumLines wide (time on x) and PixelsPerLine tall.
//
// Intensities are stretched so the darkest sample in the selected lines
// is black and the brightest is white before gamma and the colormap are
// applied.
func Preview(kym *kymograph.Kymograph, opts PreviewOptions) (image.Image, error) {
	stop := opts.StopLine
	if stop == 0 {
		stop = kym.NumLines()
	}
	if opts.StartLine < 0 || stop > kym.NumLines() || opts.StartLine >= stop {
		return nil, fmt.Errorf("line range [%d, %d) outside image of %d lines", opts.StartLine, stop, kym.NumLines())
	}
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("invalid preview size %dx%d", opts.Width, opts.Height)
	}
	cm, err := NewColormap(opts.Colormap)
	if err != nil {
		return nil, err
	}

	gray := stretch(kym, opts.StartLine, stop)
	var img image.Image = imaging.Rotate90(gray)

	if opts.Gamma > 0 && opts.Gamma != 1 {
		img = adjust.Gamma(img, opts.Gamma)
	}
	img = cm.Apply(img)

	if opts.Width > 0 || opts.Height > 0 {
		img = imaging.Resize(img, opts.Width, opts.Height, imaging.Lanczos)
	}
	return img, nil
}

// stretch converts lines [start, stop) to 8-bit gray with min/max
// normalization. A constant block renders black.
func stretch(kym *kymograph.Kymograph, start, stop int) *image.Gray {
	ppl := kym.PixelsPerLine()
	lo, hi := kym.At(start, 0), kym.At(start, 0)
	for line := start; line < stop; line++ {
		for px := 0; px < ppl; px++ {
			v := kym.At(line, px)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}

	gray := image.NewGray(image.Rect(0, 0, ppl, stop-start))
	span := float64(hi) - float64(lo)
	for line := start; line < stop; line++ {
		row := gray.Pix[(line-start)*gray.Stride:]
		for px := 0; px < ppl; px++ {
			if span == 0 {
				continue
			}
			row[px] = uint8((float64(kym.At(line, px))-float64(lo))/span*255 + 0.5)
		}
	}
	return gray
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*ImageResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &ImageResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// SavePNG writes img to path as PNG.
func SavePNG(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
