package kymograph

import (
	"fmt"
	"image"
	"image/color"

	"gonum.org/v1/gonum/mat"
)

// Kymograph is an immutable line-scan image, one row per scan line.
type Kymograph struct {
	numLines      int
	pixelsPerLine int
	pix           []uint16 // row-major, len = numLines*pixelsPerLine
}

// New builds a Kymograph from row-major samples. The slice is copied.
func New(numLines, pixelsPerLine int, pix []uint16) (*Kymograph, error) {
	if numLines <= 0 || pixelsPerLine <= 0 {
		return nil, fmt.Errorf("invalid kymograph shape (%d, %d)", numLines, pixelsPerLine)
	}
	if len(pix) != numLines*pixelsPerLine {
		return nil, fmt.Errorf("kymograph shape (%d, %d) needs %d samples, got %d",
			numLines, pixelsPerLine, numLines*pixelsPerLine, len(pix))
	}
	cp := make([]uint16, len(pix))
	copy(cp, pix)
	return &Kymograph{numLines: numLines, pixelsPerLine: pixelsPerLine, pix: cp}, nil
}

// FromImage converts a decoded image to a Kymograph. Image rows become scan
// lines. Grayscale images keep their raw sample values; everything else is
// reduced to 16-bit luminance. An image with no pixels is an error.
func FromImage(img image.Image) (*Kymograph, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("invalid kymograph shape (%d, %d)", b.Dy(), b.Dx())
	}
	k := &Kymograph{
		numLines:      b.Dy(),
		pixelsPerLine: b.Dx(),
		pix:           make([]uint16, b.Dx()*b.Dy()),
	}

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				k.pix[y*k.pixelsPerLine+x] = src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				k.pix[y*k.pixelsPerLine+x] = uint16(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				k.pix[y*k.pixelsPerLine+x] = g.Y
			}
		}
	}
	return k, nil
}

// NumLines returns the number of scan lines (image rows).
func (k *Kymograph) NumLines() int { return k.numLines }

// PixelsPerLine returns the number of pixels in each scan line (image columns).
func (k *Kymograph) PixelsPerLine() int { return k.pixelsPerLine }

// At returns the sample at the given line and pixel.
func (k *Kymograph) At(line, pixel int) uint16 {
	return k.pix[line*k.pixelsPerLine+pixel]
}

// Window copies the block [startLine, stopLine) x [startPixel, stopPixel)
// into a dense float matrix. Bounds must already be valid.
func (k *Kymograph) Window(startLine, stopLine, startPixel, stopPixel int) *mat.Dense {
	rows := stopLine - startLine
	cols := stopPixel - startPixel
	data := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		src := k.pix[(startLine+r)*k.pixelsPerLine+startPixel : (startLine+r)*k.pixelsPerLine+stopPixel]
		dst := data[r*cols : (r+1)*cols]
		for c, v := range src {
			dst[c] = float64(v)
		}
	}
	return mat.NewDense(rows, cols, data)
}

// IntensityStats summarizes the raw sample values of a kymograph.
type IntensityStats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
}

// Intensity computes mean, min, max and range over every sample.
func (k *Kymograph) Intensity() IntensityStats {
	minV, maxV := k.pix[0], k.pix[0]
	var sum float64
	for _, v := range k.pix {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += float64(v)
	}
	return IntensityStats{
		Mean:  sum / float64(len(k.pix)),
		Min:   float64(minV),
		Max:   float64(maxV),
		Range: float64(maxV) - float64(minV),
	}
}
