package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseMachineFollowsLifecycle(t *testing.T) {
	t.Parallel()

	var trace []Phase
	m := &phaseMachine{observer: func(from, to Phase) { trace = append(trace, to) }}

	assert.Equal(t, PhaseUninitialized, m.get())
	assert.True(t, m.transition(PhaseUninitialized, PhaseInitializing))
	assert.False(t, m.transition(PhaseUninitialized, PhaseInitializing))
	assert.True(t, m.transition(PhaseInitializing, PhaseReady))
	assert.True(t, m.transition(PhaseReady, PhaseTearingDown))
	assert.True(t, m.transition(PhaseTearingDown, PhaseStopped))

	assert.Equal(t, []Phase{PhaseInitializing, PhaseReady, PhaseTearingDown, PhaseStopped}, trace)
}

func TestPhaseMachineRejectsUnknownEdges(t *testing.T) {
	t.Parallel()

	m := &phaseMachine{}
	assert.False(t, m.transition(PhaseUninitialized, PhaseReady))
	assert.True(t, m.transition(PhaseUninitialized, PhaseInitializing))
	assert.True(t, m.transition(PhaseInitializing, PhaseFailed))
	assert.False(t, m.transition(PhaseFailed, PhaseInitializing))
	assert.False(t, m.transition(PhaseFailed, PhaseTearingDown))
	assert.Equal(t, PhaseFailed, m.get())
}

func TestPhaseString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ready", PhaseReady.String())
	assert.Equal(t, "tearing-down", PhaseTearingDown.String())
	assert.Equal(t, "failed", PhaseFailed.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}
