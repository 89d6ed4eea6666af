package flow

import (
	"context"
	"fmt"

	"github.com/ironsheep/kymflow-mcp/internal/kymograph"
	"github.com/ironsheep/kymflow-mcp/internal/radon"
	"gonum.org/v1/gonum/mat"
)

// WindowResult is the angle estimate for one window.
type WindowResult struct {
	Index int `json:"index"`
	radon.Estimate
}

// Dispatcher fans window estimates out over a worker pool.
type Dispatcher struct {
	// Workers is the pool size; 0 uses DefaultWorkers.
	Workers int

	estimate func(mat.Matrix) (radon.Estimate, error)
}

// NewDispatcher returns a Dispatcher using the given number of workers.
func NewDispatcher(workers int) *Dispatcher {
	return &Dispatcher{Workers: workers}
}

func (d *Dispatcher) estimator() func(mat.Matrix) (radon.Estimate, error) {
	if d.estimate != nil {
		return d.estimate
	}
	return radon.EstimateAngle
}

// RunAll estimates the angle of every window and returns the results in
// window order.
//
// Each task receives its own copy of the window's samples. A pool is
// created for the call and closed before returning. The first failing task
// aborts the run; no partial results are returned.
//
// # Errors
//
//   - ErrInvalidParameter if a window lies outside the kymograph
//   - ErrWorkerFailure wrapping the cause if any estimate fails or panics
//   - ctx.Err() if ctx is canceled before all windows finish
func (d *Dispatcher) RunAll(ctx context.Context, kym *kymograph.Kymograph, windows []Window) ([]WindowResult, error) {
	for _, w := range windows {
		if w.StartLine < 0 || w.StopLine > kym.NumLines() || w.StartLine >= w.StopLine ||
			w.StartPixel < 0 || w.StopPixel > kym.PixelsPerLine() || w.StartPixel >= w.StopPixel {
			return nil, fmt.Errorf("%w: window %d [%d:%d, %d:%d] outside kymograph (%d, %d)",
				ErrInvalidParameter, w.Index, w.StartLine, w.StopLine, w.StartPixel, w.StopPixel,
				kym.NumLines(), kym.PixelsPerLine())
		}
	}

	estimate := d.estimator()
	results := make([]WindowResult, len(windows))

	pool := NewPool(ctx, d.Workers)
	for i, w := range windows {
		sub := kym.Window(w.StartLine, w.StopLine, w.StartPixel, w.StopPixel)
		task := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: window %d: panic: %v", ErrWorkerFailure, w.Index, r)
				}
			}()
			est, err := estimate(sub)
			if err != nil {
				return fmt.Errorf("%w: window %d: %w", ErrWorkerFailure, w.Index, err)
			}
			results[i] = WindowResult{Index: w.Index, Estimate: est}
			return nil
		}
		if err := pool.Submit(task); err != nil {
			break
		}
	}

	if err := pool.Close(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
