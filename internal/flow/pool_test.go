package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
}

func TestPool_RunsAllTasks(t *testing.T) {
	p := NewPool(context.Background(), 3)
	assert.Equal(t, 3, p.Size())

	var n atomic.Int64
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(func() error {
			n.Add(1)
			return nil
		}))
	}
	require.NoError(t, p.Close())
	assert.Equal(t, int64(50), n.Load())
}

func TestPool_DefaultSize(t *testing.T) {
	p := NewPool(context.Background(), 0)
	assert.Equal(t, DefaultWorkers(), p.Size())
	require.NoError(t, p.Close())
}

func TestPool_FirstErrorStopsSubmission(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(context.Background(), 2)

	var submitErr error
	for i := 0; i < 1000 && submitErr == nil; i++ {
		submitErr = p.Submit(func() error {
			if i == 3 {
				return boom
			}
			return nil
		})
	}
	err := p.Close()
	assert.ErrorIs(t, err, boom)
}

func TestPool_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPool(ctx, 2)
	err := p.Submit(func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, p.Close())
}
