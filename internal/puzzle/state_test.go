package puzzle

import "testing"

func TestStateNames(t *testing.T) {
	for s := StateCreated; s <= StateRefunded; s++ {
		got, err := ParseState(s.String())
		if err != nil || got != s {
			t.Errorf("ParseState(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseState("paused"); KindOf(err) != KindInput {
		t.Errorf("unknown state error = %v", err)
	}
	if State(9).String() != "state(9)" {
		t.Errorf("out of range name = %s", State(9))
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateCreated, StateCreated, true},
		{StateCreated, StateFunded, true},
		{StateCreated, StateActive, true},
		{StateCreated, StateSolved, true},
		{StateCreated, StateRefunded, false},
		{StateFunded, StateActive, true},
		{StateFunded, StateCreated, true},
		{StateActive, StateSolved, true},
		{StateActive, StateFunded, true},
		{StateSolved, StateActive, false},
		{StateSolved, StateSolved, true},
		{StateRefunded, StateCreated, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if !StateSolved.Terminal() || !StateRefunded.Terminal() || StateActive.Terminal() {
		t.Error("wrong terminal states")
	}
}
