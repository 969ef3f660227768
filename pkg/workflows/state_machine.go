package workflows

// StateMachine enforces status transitions keyed by (from, action).
// The table is the only source of legality: nothing is inferred from the
// ordering of the status values.
type StateMachine[S comparable, A comparable] struct {
	allowedTransitions map[S]map[A]S
	order              map[S][]A
}

// NewStateMachine creates an empty state machine
func NewStateMachine[S comparable, A comparable]() *StateMachine[S, A] {
	return &StateMachine[S, A]{
		allowedTransitions: make(map[S]map[A]S),
		order:              make(map[S][]A),
	}
}

// Allow registers the edge from --action--> to. Registering the same
// (from, action) pair twice replaces the target.
func (sm *StateMachine[S, A]) Allow(from S, action A, to S) *StateMachine[S, A] {
	edges, ok := sm.allowedTransitions[from]
	if !ok {
		edges = make(map[A]S)
		sm.allowedTransitions[from] = edges
	}
	if _, seen := edges[action]; !seen {
		sm.order[from] = append(sm.order[from], action)
	}
	edges[action] = to
	return sm
}

// Next returns the target of action when taken from the given status
func (sm *StateMachine[S, A]) Next(from S, action A) (S, bool) {
	to, ok := sm.allowedTransitions[from][action]
	return to, ok
}

// CanTransition checks if a status transition is allowed by any action
func (sm *StateMachine[S, A]) CanTransition(from, to S) bool {
	for _, target := range sm.allowedTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// GetAllowedActions returns the actions legal in the given status, in registration order
func (sm *StateMachine[S, A]) GetAllowedActions(from S) []A {
	actions := sm.order[from]
	out := make([]A, len(actions))
	copy(out, actions)
	return out
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine[S, A]) GetAllowedTransitions(from S) []S {
	var out []S
	seen := make(map[S]bool)
	for _, action := range sm.order[from] {
		to := sm.allowedTransitions[from][action]
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	return out
}

// IsTerminal reports whether no action leaves the given status
func (sm *StateMachine[S, A]) IsTerminal(s S) bool {
	return len(sm.allowedTransitions[s]) == 0
}
