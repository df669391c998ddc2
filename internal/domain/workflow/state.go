package workflow

import "fmt"

// State is an application lifecycle state. Values match the persisted status column.
type State string

const (
	StateDraft           State = "draft"
	StatePendingApproval State = "pending_approval"
	StateApproved        State = "approved"
	StateRejected        State = "rejected"
)

var validStates = map[State]bool{
	StateDraft:           true,
	StatePendingApproval: true,
	StateApproved:        true,
	StateRejected:        true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further transitions are allowed from s
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the lifecycle states
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a persisted status into a State.
func ParseState(status string) (State, error) {
	s := State(status)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, status)
	}
	return s, nil
}
