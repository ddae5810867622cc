package spacedrep

import "fmt"

// State is an item's position in the review lifecycle.
type State string

const (
	StateNew        State = "new"
	StateLearning   State = "learning"
	StateReview     State = "review"
	StateRelearning State = "relearning"
)

// States lists every lifecycle state in lifecycle order.
var States = []State{StateNew, StateLearning, StateReview, StateRelearning}

// IsValid reports whether s is one of the four lifecycle states.
func (s State) IsValid() bool {
	switch s {
	case StateNew, StateLearning, StateReview, StateRelearning:
		return true
	}
	return false
}

// ParseState parses a lifecycle state name.
func ParseState(name string) (State, error) {
	s := State(name)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown state %q", ErrInvalidState, name)
	}
	return s, nil
}
