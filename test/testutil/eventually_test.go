package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recorder captures failures instead of failing the real test.
type recorder struct {
	testing.TB
	mu     sync.Mutex
	errors []string
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recorder) failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func TestEventuallyImmediate(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	assert.True(t, Eventually(r, func() bool { return true }, WithTimeout(10*time.Millisecond)))
	assert.Empty(t, r.failures())
}

func TestEventuallyAfterPolls(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ok := Eventually(t, func() bool { return calls.Add(1) >= 3 },
		WithTimeout(time.Second), WithInterval(5*time.Millisecond))
	assert.True(t, ok)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestEventuallyTimeout(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	ok := Eventually(r, func() bool { return false },
		WithTimeout(30*time.Millisecond), WithInterval(5*time.Millisecond), WithMessage("postgres never ready"))
	assert.False(t, ok)
	failures := r.failures()
	assert.Len(t, failures, 1)
	assert.Contains(t, failures[0], "postgres never ready")
}

func TestNever(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	assert.True(t, Never(r, func() bool { return false }, WithTimeout(20*time.Millisecond), WithInterval(5*time.Millisecond)))
	assert.Empty(t, r.failures())

	var calls atomic.Int32
	assert.False(t, Never(r, func() bool { return calls.Add(1) == 2 }, WithTimeout(time.Second), WithInterval(5*time.Millisecond)))
	assert.Len(t, r.failures(), 1)
}

func TestWaitForChan(t *testing.T) {
	t.Parallel()

	ch := make(chan int, 1)
	ch <- 7
	v, ok := WaitForChan(t, ch, time.Second)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	close(ch)
	v, ok = WaitForChan(t, ch, time.Second)
	assert.True(t, ok)
	assert.Zero(t, v)

	r := &recorder{}
	_, ok = WaitForChan(r, make(chan int), 10*time.Millisecond)
	assert.False(t, ok)
	assert.Len(t, r.failures(), 1)
}

func TestWaitForClose(t *testing.T) {
	t.Parallel()

	closed := make(chan struct{})
	close(closed)
	assert.True(t, WaitForClose(t, closed, time.Second))

	sent := make(chan struct{}, 1)
	sent <- struct{}{}
	assert.False(t, WaitForClose(t, sent, time.Second))

	r := &recorder{}
	assert.False(t, WaitForClose(r, make(chan struct{}), 10*time.Millisecond))
	assert.Len(t, r.failures(), 1)
}
