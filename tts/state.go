package tts

// JobState represents the lifecycle state of a batch job.
type JobState int

const (
	// StateIdle indicates the job was initialized but not started.
	StateIdle JobState = iota
	// StateRunning indicates the worker is consuming the queue.
	StateRunning
	// StatePaused indicates the worker stops at the next item boundary.
	StatePaused
	// StateCompleted indicates the queue was exhausted.
	StateCompleted
	// StateCancelled indicates the job was cancelled by the caller.
	StateCancelled
	// StateAborted indicates a filesystem failure stopped the job.
	StateAborted
)

// String returns the string representation of the state.
func (s JobState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsActive reports whether a run is in progress (running or paused).
func (s JobState) IsActive() bool {
	return s == StateRunning || s == StatePaused
}

// IsTerminal reports whether the state ends a run.
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateAborted
}

// StateMachine validates job state transitions.
type StateMachine struct {
	current     JobState
	transitions map[JobState][]JobState
	onEnter     map[JobState]func()
}

// NewStateMachine creates a new state machine with valid transitions.
// Completed may only go back to running for a retry pass; cancelled and
// aborted are absorbing.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[JobState][]JobState{
			StateIdle:      {StateRunning, StateCancelled},
			StateRunning:   {StatePaused, StateCompleted, StateCancelled, StateAborted},
			StatePaused:    {StateRunning, StateCancelled, StateAborted},
			StateCompleted: {StateRunning},
		},
		onEnter: make(map[JobState]func()),
	}
}

// Can reports whether a transition to the given state is allowed.
func (sm *StateMachine) Can(to JobState) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to JobState) bool {
	if !sm.Can(to) {
		return false
	}

	sm.current = to
	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() JobState {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state JobState, fn func()) {
	sm.onEnter[state] = fn
}
