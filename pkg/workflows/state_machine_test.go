package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newDocMachine() *StateMachine[string, string] {
	return NewStateMachine[string, string]().
		Allow("DRAFT", "submit", "SUBMITTED").
		Allow("SUBMITTED", "review", "UNDER_REVIEW").
		Allow("UNDER_REVIEW", "approve", "APPROVED").
		Allow("UNDER_REVIEW", "reject", "REJECTED").
		Allow("UNDER_REVIEW", "suspend", "REJECTED")
}

func TestStateMachineNext(t *testing.T) {
	sm := newDocMachine()

	to, ok := sm.Next("UNDER_REVIEW", "approve")
	assert.True(t, ok)
	assert.Equal(t, "APPROVED", to)

	_, ok = sm.Next("DRAFT", "approve")
	assert.False(t, ok)

	_, ok = sm.Next("UNKNOWN", "submit")
	assert.False(t, ok)
}

func TestStateMachineCanTransition(t *testing.T) {
	sm := newDocMachine()

	assert.True(t, sm.CanTransition("DRAFT", "SUBMITTED"))
	assert.False(t, sm.CanTransition("DRAFT", "APPROVED"))
	assert.False(t, sm.CanTransition("APPROVED", "DRAFT"))
}

func TestStateMachineAllowedActionsKeepOrder(t *testing.T) {
	sm := newDocMachine()

	assert.Equal(t, []string{"approve", "reject", "suspend"}, sm.GetAllowedActions("UNDER_REVIEW"))
	assert.Equal(t, []string{"APPROVED", "REJECTED"}, sm.GetAllowedTransitions("UNDER_REVIEW"))
	assert.Empty(t, sm.GetAllowedActions("APPROVED"))
}

func TestStateMachineIsTerminal(t *testing.T) {
	sm := newDocMachine()

	assert.True(t, sm.IsTerminal("APPROVED"))
	assert.False(t, sm.IsTerminal("DRAFT"))
}
