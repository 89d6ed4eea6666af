package radon

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	numCoarse  = 180
	fineStep   = 0.25
	fineRadius = 2.0
)

// ErrEmptyWindow is returned for a block with no rows or no columns.
var ErrEmptyWindow = errors.New("radon: empty window")

// CoarseAngles returns the coarse search grid 0, 1, ..., 179 degrees.
func CoarseAngles() []float64 {
	a := make([]float64, numCoarse)
	for i := range a {
		a[i] = float64(i)
	}
	return a
}

// FineOffsets returns the refinement grid -2, -1.75, ..., +2 degrees.
func FineOffsets() []float64 {
	n := int(2*fineRadius/fineStep) + 1
	o := make([]float64, n)
	for i := range o {
		o[i] = -fineRadius + fineStep*float64(i)
	}
	return o
}

// Estimate is the result of a two-stage angle search on one block.
type Estimate struct {
	// Angle is the refined streak angle in degrees.
	Angle float64 `json:"angle"`

	// Coarse is the best angle on the 1 degree grid.
	Coarse float64 `json:"coarse"`

	// Spread holds the projection variance for each coarse angle.
	Spread []float64 `json:"spread"`

	// FineSpread holds the projection variance for each fine offset.
	FineSpread []float64 `json:"fine_spread"`
}

// Variances returns the population variance of the projection of b at
// each angle. b must already be de-meaned if that is wanted.
func (b block) variances(thetas []float64) []float64 {
	g := newGeometry(b.rows, b.cols)
	proj := make([]float64, g.size)
	out := make([]float64, len(thetas))
	for i, theta := range thetas {
		b.project(g, theta, proj)
		out[i] = stat.PopVariance(proj, nil)
	}
	return out
}

// EstimateAngle finds the streak angle of m.
//
// The block is de-meaned by its overall mean, then the coarse angle is the
// first maximum of the projection variance over 0..179 degrees and the
// final angle adds the first maximum over the fine offsets. A constant
// block has an all-zero profile and yields angle 0 with no refinement.
//
// # Errors
//
//   - Returns ErrEmptyWindow if m has no rows or no columns
func EstimateAngle(m mat.Matrix) (Estimate, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return Estimate{}, fmt.Errorf("%w: shape (%d, %d)", ErrEmptyWindow, r, c)
	}

	b := newBlock(m)
	floats.AddConst(-stat.Mean(b.data, nil), b.data)

	coarseAngles := CoarseAngles()
	spread := b.variances(coarseAngles)
	offsets := FineOffsets()

	// A constant block projects to zero at every angle; there is no
	// streak to refine, so report 0 and let conversion reject it.
	if floats.Max(spread) == 0 {
		return Estimate{Spread: spread, FineSpread: make([]float64, len(offsets))}, nil
	}

	coarse := coarseAngles[floats.MaxIdx(spread)]
	fine := make([]float64, len(offsets))
	for i, o := range offsets {
		fine[i] = coarse + o
	}
	fineSpread := b.variances(fine)

	return Estimate{
		Angle:      coarse + offsets[floats.MaxIdx(fineSpread)],
		Coarse:     coarse,
		Spread:     spread,
		FineSpread: fineSpread,
	}, nil
}
