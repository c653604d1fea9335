package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Stop priorities. Lower values run first.
const (
	PriorityContainer = 10
	PriorityNetwork   = 20
)

// StopHook is a named stop capability registered during provisioning.
type StopHook struct {
	Name     string
	Priority int // Lower values execute first
	Hook     func(context.Context) error
}

// StopSet owns every stop capability of one environment. It is drained
// exactly once.
type StopSet struct {
	mu      sync.Mutex
	hooks   []*onceHook
	drained bool
	logger  Logger
	onFail  func(name string, err error)
}

type onceHook struct {
	StopHook
	once sync.Once
	err  error
}

func (h *onceHook) run(ctx context.Context) error {
	h.once.Do(func() {
		h.err = h.Hook(ctx)
	})
	return h.err
}

// NewStopSet creates an empty StopSet.
func NewStopSet(logger Logger) *StopSet {
	return &StopSet{logger: logger}
}

// Register records a stop capability. Hooks registered after StopAll ran
// are executed immediately so nothing is leaked.
func (s *StopSet) Register(hook StopHook) {
	h := &onceHook{StopHook: hook}

	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		s.logger.Warningf("Stop hook %q registered after teardown, running it now", hook.Name)
		if err := h.run(context.Background()); err != nil {
			s.logger.Errorf("Late stop hook %q failed: %v", hook.Name, err)
		}
		return
	}
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// Len returns the number of pending stop capabilities.
func (s *StopSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}

// StopAll runs every registered hook. Groups of equal priority run
// concurrently, groups run in ascending priority. Every hook is attempted;
// failures are collected into a *TeardownError. Later calls return nil.
func (s *StopSet) StopAll(ctx context.Context) error {
	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		return nil
	}
	s.drained = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority < hooks[j].Priority
	})

	var failures []StopFailure
	for start := 0; start < len(hooks); {
		end := start
		for end < len(hooks) && hooks[end].Priority == hooks[start].Priority {
			end++
		}
		failures = append(failures, s.runGroup(ctx, hooks[start:end])...)
		start = end
	}

	if len(failures) > 0 {
		return &TeardownError{Failures: failures}
	}
	return nil
}

func (s *StopSet) runGroup(ctx context.Context, group []*onceHook) []StopFailure {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []StopFailure
	)

	for _, h := range group {
		wg.Add(1)
		go func(h *onceHook) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					failures = append(failures, StopFailure{Name: h.Name, Err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)})
					mu.Unlock()
				}
			}()

			s.logger.Debugf("Executing stop hook: %s (priority: %d)", h.Name, h.Priority)
			if err := h.run(ctx); err != nil {
				s.logger.Errorf("Stop hook '%s' failed: %v", h.Name, err)
				if s.onFail != nil {
					s.onFail(h.Name, err)
				}
				mu.Lock()
				failures = append(failures, StopFailure{Name: h.Name, Err: err})
				mu.Unlock()
				return
			}
			s.logger.Debugf("Stop hook '%s' completed successfully", h.Name)
		}(h)
	}
	wg.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].Name < failures[j].Name })
	return failures
}
