package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/ironsheep/kymflow-mcp/internal/radon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRunAll_OrderAndDeterminism(t *testing.T) {
	kym := streakKymograph(t, 160, 32, 20, 12)
	windows, err := Plan(kym.NumLines(), kym.PixelsPerLine(), 16, PixelRange{})
	require.NoError(t, err)

	serial, err := NewDispatcher(1).RunAll(context.Background(), kym, windows)
	require.NoError(t, err)
	parallel, err := NewDispatcher(4).RunAll(context.Background(), kym, windows)
	require.NoError(t, err)

	require.Len(t, serial, len(windows))
	for i, r := range serial {
		assert.Equal(t, i, r.Index)
	}
	if diff := cmp.Diff(serial, parallel, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("pool size changed results (-serial +parallel):\n%s", diff)
	}
}

func TestRunAll_OrderIndependentOfCompletion(t *testing.T) {
	kym := constantKymograph(t, 64, 8, 10)
	windows, err := Plan(64, 8, 16, PixelRange{})
	require.NoError(t, err)

	// Each task reports how many tasks started before it; later windows
	// can finish first with several workers.
	var started atomic.Int64
	d := &Dispatcher{Workers: 4}
	d.estimate = func(m mat.Matrix) (radon.Estimate, error) {
		return radon.Estimate{Angle: float64(started.Add(1))}, nil
	}

	results, err := d.RunAll(context.Background(), kym, windows)
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
}

func TestRunAll_WorkerFailure(t *testing.T) {
	kym := constantKymograph(t, 200, 8, 10)
	windows, err := Plan(200, 8, 16, PixelRange{})
	require.NoError(t, err)

	boom := errors.New("boom")
	var calls atomic.Int64
	d := &Dispatcher{Workers: 3}
	d.estimate = func(m mat.Matrix) (radon.Estimate, error) {
		if calls.Add(1) == 5 {
			return radon.Estimate{}, boom
		}
		return radon.Estimate{}, nil
	}

	results, err := d.RunAll(context.Background(), kym, windows)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrWorkerFailure)
	assert.ErrorIs(t, err, boom)
}

func TestRunAll_WorkerPanic(t *testing.T) {
	kym := constantKymograph(t, 64, 8, 10)
	windows, err := Plan(64, 8, 16, PixelRange{})
	require.NoError(t, err)

	d := &Dispatcher{Workers: 2}
	d.estimate = func(m mat.Matrix) (radon.Estimate, error) {
		panic("index out of range")
	}

	_, err = d.RunAll(context.Background(), kym, windows)
	assert.ErrorIs(t, err, ErrWorkerFailure)
}

func TestRunAll_WindowOutsideImage(t *testing.T) {
	kym := constantKymograph(t, 32, 8, 10)
	windows := []Window{{Index: 0, StartLine: 20, StopLine: 36, StartPixel: 0, StopPixel: 8}}

	_, err := NewDispatcher(1).RunAll(context.Background(), kym, windows)
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestRunAll_Canceled(t *testing.T) {
	kym := constantKymograph(t, 64, 8, 10)
	windows, err := Plan(64, 8, 16, PixelRange{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewDispatcher(2).RunAll(ctx, kym, windows)
	assert.ErrorIs(t, err, context.Canceled)
}
