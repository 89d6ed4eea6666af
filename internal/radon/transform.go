package radon

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// geometry describes the zero-padded square a block is rotated inside.
type geometry struct {
	rows, cols     int
	size           int
	center         float64
	padRow, padCol int
}

func newGeometry(rows, cols int) geometry {
	diagonal := math.Sqrt2 * float64(max(rows, cols))
	padR := int(math.Ceil(diagonal - float64(rows)))
	padC := int(math.Ceil(diagonal - float64(cols)))
	size := rows + padR
	return geometry{
		rows:   rows,
		cols:   cols,
		size:   size,
		center: float64(size / 2),
		padRow: (rows+padR)/2 - rows/2,
		padCol: (cols+padC)/2 - cols/2,
	}
}

// ProjectionSize returns the number of bins per angle for a rows x cols block.
func ProjectionSize(rows, cols int) int {
	return newGeometry(rows, cols).size
}

// block is a read-only view of row-major samples.
type block struct {
	data   []float64
	stride int
	rows   int
	cols   int
}

func newBlock(m mat.Matrix) block {
	d := mat.DenseCopyOf(m)
	raw := d.RawMatrix()
	return block{data: raw.Data, stride: raw.Stride, rows: raw.Rows, cols: raw.Cols}
}

func (b block) pixel(r, c int) float64 {
	if r < 0 || r >= b.rows || c < 0 || c >= b.cols {
		return 0
	}
	return b.data[r*b.stride+c]
}

func (b block) bilinear(r, c float64) float64 {
	r0f, c0f := math.Floor(r), math.Floor(c)
	r0, c0 := int(r0f), int(c0f)
	r1, c1 := int(math.Ceil(r)), int(math.Ceil(c))
	dr, dc := r-r0f, c-c0f

	top := (1-dc)*b.pixel(r0, c0) + dc*b.pixel(r0, c1)
	bottom := (1-dc)*b.pixel(r1, c0) + dc*b.pixel(r1, c1)
	return (1-dr)*top + dr*bottom
}

// project fills out (len g.size) with the projection of b at theta degrees.
func (b block) project(g geometry, theta float64, out []float64) {
	rad := theta * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	c := g.center

	// Inverse rotation about the padded center, shifted into block coordinates.
	offCol := -c*(cos+sin-1) - float64(g.padCol)
	offRow := -c*(cos-sin-1) - float64(g.padRow)

	for x := 0; x < g.size; x++ {
		fx := float64(x)
		baseCol := cos*fx + offCol
		baseRow := -sin*fx + offRow

		lo, hi := clipRange(baseCol, sin, float64(b.cols), 0, g.size-1)
		lo, hi = clipRange(baseRow, cos, float64(b.rows), lo, hi)

		var sum float64
		for y := lo; y <= hi; y++ {
			fy := float64(y)
			sum += b.bilinear(baseRow+cos*fy, baseCol+sin*fy)
		}
		out[x] = sum
	}
}

// clipRange narrows [lo, hi] to the y for which -1 < a + step*y < n, the
// only positions where a bilinear sample can touch the block. The range is
// widened by one on each side; bilinear does the exact bounds check.
func clipRange(a, step, n float64, lo, hi int) (int, int) {
	if math.Abs(step) < 1e-12 {
		if a <= -1 || a >= n {
			return 0, -1
		}
		return lo, hi
	}
	y0 := (-1 - a) / step
	y1 := (n - a) / step
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if s := int(math.Floor(y0)); s > lo {
		lo = s
	}
	if e := int(math.Ceil(y1)); e < hi {
		hi = e
	}
	return lo, hi
}

// Transform returns the sinogram of m: one column per angle in thetas
// (degrees), ProjectionSize(rows, cols) rows per column.
// It returns nil when thetas is empty.
func Transform(m mat.Matrix, thetas []float64) *mat.Dense {
	if len(thetas) == 0 {
		return nil
	}
	b := newBlock(m)
	g := newGeometry(b.rows, b.cols)

	sino := mat.NewDense(g.size, len(thetas), nil)
	proj := make([]float64, g.size)
	for j, theta := range thetas {
		b.project(g, theta, proj)
		sino.SetCol(j, proj)
	}
	return sino
}
