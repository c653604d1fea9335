package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/testenv/test"
)

func TestStopSetRunsPriorityGroupsInOrder(t *testing.T) {
	t.Parallel()

	s := NewStopSet(test.NewTestLogger())

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	s.Register(StopHook{Name: "network", Priority: PriorityNetwork, Hook: record("network")})
	s.Register(StopHook{Name: "container/a", Priority: PriorityContainer, Hook: record("container")})
	s.Register(StopHook{Name: "container/b", Priority: PriorityContainer, Hook: record("container")})
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.StopAll(context.Background()))
	assert.Equal(t, []string{"container", "container", "network"}, order)
	assert.Zero(t, s.Len())
}

func TestStopSetAttemptsEveryHook(t *testing.T) {
	t.Parallel()

	logger := test.NewTestLogger()
	s := NewStopSet(logger)

	var failed []string
	s.onFail = func(name string, err error) { failed = append(failed, name) }

	var ran atomic.Int32
	errB := errors.New("b broke")
	errNet := errors.New("network busy")
	s.Register(StopHook{Name: "b", Priority: 10, Hook: func(context.Context) error { ran.Add(1); return errB }})
	s.Register(StopHook{Name: "a", Priority: 10, Hook: func(context.Context) error { ran.Add(1); return nil }})
	s.Register(StopHook{Name: "net", Priority: 20, Hook: func(context.Context) error { ran.Add(1); return errNet }})

	err := s.StopAll(context.Background())
	assert.Equal(t, int32(3), ran.Load())

	var te *TeardownError
	require.ErrorAs(t, err, &te)
	require.Len(t, te.Failures, 2)
	assert.Equal(t, "b", te.Failures[0].Name)
	assert.Equal(t, "net", te.Failures[1].Name)
	require.ErrorIs(t, err, errB)
	require.ErrorIs(t, err, errNet)
	assert.True(t, logger.HasError("b broke"))
	assert.ElementsMatch(t, []string{"b", "net"}, failed)
}

func TestStopSetDrainsOnce(t *testing.T) {
	t.Parallel()

	s := NewStopSet(test.NewTestLogger())
	var calls atomic.Int32
	s.Register(StopHook{Name: "c", Priority: 10, Hook: func(context.Context) error { calls.Add(1); return nil }})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.StopAll(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestStopSetRecoversPanickingHook(t *testing.T) {
	t.Parallel()

	s := NewStopSet(test.NewTestLogger())
	var after atomic.Bool
	s.Register(StopHook{Name: "panics", Priority: 10, Hook: func(context.Context) error { panic("oops") }})
	s.Register(StopHook{Name: "later", Priority: 20, Hook: func(context.Context) error { after.Store(true); return nil }})

	err := s.StopAll(context.Background())
	require.ErrorIs(t, err, ErrTaskPanicked)
	assert.True(t, after.Load())
}

func TestStopSetRunsLateRegistrationImmediately(t *testing.T) {
	t.Parallel()

	logger := test.NewTestLogger()
	s := NewStopSet(logger)
	require.NoError(t, s.StopAll(context.Background()))

	var ran atomic.Bool
	s.Register(StopHook{Name: "late", Priority: 10, Hook: func(context.Context) error { ran.Store(true); return nil }})
	assert.True(t, ran.Load())
	assert.True(t, logger.HasWarning("after teardown"))
	assert.Zero(t, s.Len())
}
