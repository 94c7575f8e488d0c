package puzzle

import "fmt"

// State is the lifecycle position of a puzzle as observed on chain.
type State int

const (
	// StateCreated: address derived, nothing paid to it yet.
	StateCreated State = iota
	// StateFunded: a funding output exists but is not yet confirmed.
	StateFunded
	// StateActive: confirmed and unspent; solving attempts may be built.
	StateActive
	// StateSolved: the funding output was spent. Terminal.
	StateSolved
	// StateRefunded has no producing path; puzzles carry no refund leaf.
	StateRefunded
)

var stateNames = [...]string{"created", "funded", "active", "solved", "refunded"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState is the inverse of String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown state %q", ErrInvalidInput, name)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSolved || s == StateRefunded
}

// CanTransition reports whether moving from s to next is legal.
// Staying in the same state is always legal. Funded and Active may move
// back to Created when a reorg drops the funding transaction.
func (s State) CanTransition(next State) bool {
	if s == next {
		return true
	}
	switch s {
	case StateCreated:
		return next == StateFunded || next == StateActive || next == StateSolved
	case StateFunded:
		return next == StateActive || next == StateSolved || next == StateRefunded || next == StateCreated
	case StateActive:
		return next == StateSolved || next == StateRefunded || next == StateFunded || next == StateCreated
	default:
		return false
	}
}
