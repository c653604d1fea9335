package core

import (
	"fmt"
	"sync"
)

// Phase is the lifecycle state of an Orchestrator.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseReady
	PhaseTearingDown
	PhaseStopped
	// PhaseFailed is terminal and only reachable from PhaseInitializing.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseTearingDown:
		return "tearing-down"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// allowedTransitions is the full lifecycle graph. No phase is revisited.
var allowedTransitions = map[Phase][]Phase{
	PhaseUninitialized: {PhaseInitializing},
	PhaseInitializing:  {PhaseReady, PhaseFailed},
	PhaseReady:         {PhaseTearingDown},
	PhaseTearingDown:   {PhaseStopped},
}

// PhaseObserver is notified after every successful transition.
type PhaseObserver func(from, to Phase)

// phaseMachine guards phase transitions with a mutex.
type phaseMachine struct {
	mu       sync.Mutex
	current  Phase
	observer PhaseObserver
}

func (m *phaseMachine) get() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// transition moves from -> to if the machine is in from and the edge exists.
func (m *phaseMachine) transition(from, to Phase) bool {
	m.mu.Lock()
	if m.current != from || !edgeAllowed(from, to) {
		m.mu.Unlock()
		return false
	}
	m.current = to
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(from, to)
	}
	return true
}

func edgeAllowed(from, to Phase) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
