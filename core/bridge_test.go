package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/testenv/test"
)

func TestBridgeRunBlockingReturnsResult(t *testing.T) {
	t.Parallel()

	b := NewBridge(2, test.NewTestLogger())
	defer b.Shutdown()

	v, err := b.RunBlocking(func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBridgeRunTyped(t *testing.T) {
	t.Parallel()

	b := NewBridge(2, test.NewTestLogger())
	defer b.Shutdown()

	s, err := Run(b, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", s)

	boom := errors.New("boom")
	n, err := Run(b, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestBridgeEnforcesMinimumWorkers(t *testing.T) {
	t.Parallel()

	b := NewBridge(0, test.NewTestLogger())
	defer b.Shutdown()

	// One task blocks a worker until the second one ran.
	release := make(chan struct{})
	blocked := b.Submit(func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})

	_, err := b.RunBlocking(func(ctx context.Context) (any, error) {
		close(release)
		return nil, nil
	})
	require.NoError(t, err)

	_, err = blocked.Wait()
	require.NoError(t, err)
}

func TestBridgeNestedSubmitDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	b := NewBridge(2, test.NewTestLogger())
	defer b.Shutdown()

	v, err := Run(b, func(ctx context.Context) (int, error) {
		inner := b.Submit(func(ctx context.Context) (any, error) { return 7, nil })
		r, err := inner.Wait()
		if err != nil {
			return 0, err
		}
		return r.(int) * 6, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBridgeRecoversPanics(t *testing.T) {
	t.Parallel()

	logger := test.NewTestLogger()
	b := NewBridge(2, logger)
	defer b.Shutdown()

	_, err := b.RunBlocking(func(ctx context.Context) (any, error) {
		panic("kaboom")
	})
	require.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "kaboom")
	assert.True(t, logger.HasError("panicked"))

	// Workers survive the panic.
	v, err := b.RunBlocking(func(ctx context.Context) (any, error) { return "alive", nil })
	require.NoError(t, err)
	assert.Equal(t, "alive", v)
}

func TestBridgeShutdownDrainsQueuedWork(t *testing.T) {
	t.Parallel()

	b := NewBridge(2, test.NewTestLogger())

	var ran atomic.Int32
	futures := make([]*Future, 0, 10)
	for range 10 {
		futures = append(futures, b.Submit(func(ctx context.Context) (any, error) {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
			return nil, nil
		}))
	}

	b.Shutdown()
	assert.Equal(t, int32(10), ran.Load())
	for _, f := range futures {
		select {
		case <-f.Done():
		default:
			t.Fatal("future not completed after shutdown")
		}
	}
}

func TestBridgeShutdownCancelsContextAndRejectsWork(t *testing.T) {
	t.Parallel()

	b := NewBridge(2, test.NewTestLogger())
	ctx := b.Context()
	require.NoError(t, ctx.Err())

	b.Shutdown()
	b.Shutdown()

	assert.True(t, b.Closed())
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	_, err := b.RunBlocking(func(ctx context.Context) (any, error) { return nil, nil })
	require.ErrorIs(t, err, ErrBridgeClosed)
}

func TestBridgeTasksRunIndependentlyOfCallers(t *testing.T) {
	t.Parallel()

	b := NewBridge(4, test.NewTestLogger())
	defer b.Shutdown()

	var wg sync.WaitGroup
	var sum atomic.Int64
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Run(b, func(ctx context.Context) (int, error) { return i, nil })
			if err == nil {
				sum.Add(int64(v))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(49*50/2), sum.Load())
}
