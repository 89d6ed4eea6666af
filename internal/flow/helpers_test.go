package flow

import (
	"math"
	"testing"

	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
)

// streakKymograph draws Gaussian streaks every period pixels that drift
// tan(angle) pixels per line.
func streakKymograph(t *testing.T, lines, width int, angle, period float64) *kymograph.Kymograph {
	t.Helper()
	slope := math.Tan(angle * math.Pi / 180)
	pix := make([]uint16, lines*width)
	for r := 0; r < lines; r++ {
		for c := 0; c < width; c++ {
			d := math.Mod(float64(c)-slope*float64(r), period)
			if d < 0 {
				d += period
			}
			if d > period/2 {
				d -= period
			}
			pix[r*width+c] = uint16(200 + 2000*math.Exp(-d*d/2))
		}
	}
	k, err := kymograph.New(lines, width, pix)
	if err != nil {
		t.Fatalf("Failed to build kymograph: %v", err)
	}
	return k
}

func constantKymograph(t *testing.T, lines, width int, value uint16) *kymograph.Kymograph {
	t.Helper()
	pix := make([]uint16, lines*width)
	for i := range pix {
		pix[i] = value
	}
	k, err := kymograph.New(lines, width, pix)
	if err != nil {
		t.Fatalf("Failed to build kymograph: %v", err)
	}
	return k
}
