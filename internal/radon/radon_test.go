package radon

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestProjectionSize(t *testing.T) {
	tests := []struct {
		rows, cols int
		want       int
	}{
		{16, 64, 91},
		{64, 64, 91},
		{64, 16, 91},
		{3, 5, 8},
		{1, 1, 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ProjectionSize(tt.rows, tt.cols), "shape (%d, %d)", tt.rows, tt.cols)
	}
}

func TestGrids(t *testing.T) {
	coarse := CoarseAngles()
	require.Len(t, coarse, 180)
	assert.Equal(t, 0.0, coarse[0])
	assert.Equal(t, 179.0, coarse[179])

	fine := FineOffsets()
	require.Len(t, fine, 17)
	assert.Equal(t, -2.0, fine[0])
	assert.Equal(t, 0.0, fine[8])
	assert.Equal(t, 2.0, fine[16])
}

func smallBlock() *mat.Dense {
	return mat.NewDense(3, 5, []float64{
		1, 2, 3, 4, 5,
		6, 7, 8, 9, 10,
		11, 12, 13, 14, 15,
	})
}

func TestTransform_ZeroDegrees(t *testing.T) {
	// (3, 5) pads to 8x8 with 2 columns before the block.
	sino := Transform(smallBlock(), []float64{0})
	r, c := sino.Dims()
	require.Equal(t, 8, r)
	require.Equal(t, 1, c)

	want := []float64{0, 0, 18, 21, 24, 27, 30, 0}
	for x, w := range want {
		assert.InDelta(t, w, sino.At(x, 0), 1e-9, "bin %d", x)
	}
}

func TestTransform_NinetyDegrees(t *testing.T) {
	// Rows land in reverse order around the padded center.
	sino := Transform(smallBlock(), []float64{90})

	want := []float64{0, 0, 0, 65, 40, 15, 0, 0}
	for x, w := range want {
		assert.InDelta(t, w, sino.At(x, 0), 1e-9, "bin %d", x)
	}
}

func TestTransform_EmptyAngles(t *testing.T) {
	assert.Nil(t, Transform(smallBlock(), nil))
}

func TestTransform_MassApproximatelyConserved(t *testing.T) {
	m := mat.NewDense(16, 64, nil)
	for r := 0; r < 16; r++ {
		for c := 20; c < 40; c++ {
			m.Set(r, c, 1)
		}
	}
	const total = 16 * 20

	sino := Transform(m, []float64{0, 17, 45, 90, 133})
	_, n := sino.Dims()
	for j := 0; j < n; j++ {
		assert.InDelta(t, total, mat.Sum(sino.ColView(j)), total*0.03, "angle column %d", j)
	}
}

func TestEstimateAngle_Diagonal(t *testing.T) {
	m := mat.NewDense(64, 64, nil)
	for i := 0; i < 64; i++ {
		m.Set(i, i, 1000)
	}

	est, err := EstimateAngle(m)
	require.NoError(t, err)
	assert.Equal(t, 45.0, est.Coarse)
	assert.InDelta(t, 45.0, est.Angle, 0.125)
	assert.Len(t, est.Spread, 180)
	assert.Len(t, est.FineSpread, 17)
}

func TestEstimateAngle_Vertical(t *testing.T) {
	m := mat.NewDense(16, 64, nil)
	for r := 0; r < 16; r++ {
		m.Set(r, 32, 1000)
	}

	est, err := EstimateAngle(m)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Angle)
}

func TestEstimateAngle_SlopedStreaks(t *testing.T) {
	// Gaussian streaks every 16 pixels drifting tan(15deg) pixels per line.
	const angle = 15.0
	slope := math.Tan(angle * math.Pi / 180)
	m := mat.NewDense(16, 64, nil)
	for r := 0; r < 16; r++ {
		for c := 0; c < 64; c++ {
			d := math.Mod(float64(c)-slope*float64(r), 16)
			if d < 0 {
				d += 16
			}
			if d > 8 {
				d -= 16
			}
			m.Set(r, c, 100+1000*math.Exp(-d*d/2))
		}
	}

	est, err := EstimateAngle(m)
	require.NoError(t, err)
	assert.InDelta(t, angle, est.Angle, 1.0)
}

func TestEstimateAngle_ConstantBlock(t *testing.T) {
	m := mat.NewDense(16, 32, nil)
	for r := 0; r < 16; r++ {
		for c := 0; c < 32; c++ {
			m.Set(r, c, 250)
		}
	}

	est, err := EstimateAngle(m)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Angle)
	for _, v := range est.Spread {
		assert.Equal(t, 0.0, v)
	}
}

func TestEstimateAngle_DoesNotModifyInput(t *testing.T) {
	m := smallBlock()
	_, err := EstimateAngle(m)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 15.0, m.At(2, 4))
}

func TestEstimateAngle_Empty(t *testing.T) {
	_, err := EstimateAngle(&mat.Dense{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyWindow))
}
