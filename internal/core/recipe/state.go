package recipe

import (
	"errors"
	"fmt"
)

// State 組裝流程狀態
type State int

const (
	StateInitialized State = iota
	StateSectionsExtracted
	StateIngredientsParsed
	StateMetadataParsed
	StateValidated
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StateInitialized:       "initialized",
	StateSectionsExtracted: "sections_extracted",
	StateIngredientsParsed: "ingredients_parsed",
	StateMetadataParsed:    "metadata_parsed",
	StateValidated:         "validated",
	StateSucceeded:         "succeeded",
	StateFailed:            "failed",
}

// ErrInvalidTransition 不合法的狀態轉換
var ErrInvalidTransition = errors.New("invalid state transition")

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal 是否為終止狀態
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// next returns the only non-failure state reachable from s.
func (s State) next() State {
	switch s {
	case StateInitialized:
		return StateSectionsExtracted
	case StateSectionsExtracted:
		return StateIngredientsParsed
	case StateIngredientsParsed:
		return StateMetadataParsed
	case StateMetadataParsed:
		return StateValidated
	case StateValidated:
		return StateSucceeded
	}
	return s
}

// machine records one run through the states. Stages move forward one step
// at a time; Failed is reachable from any non-terminal state. Terminal
// states never change.
type machine struct {
	state   State
	history []State
}

func newMachine() *machine {
	return &machine{state: StateInitialized, history: []State{StateInitialized}}
}

func (m *machine) advance(to State) error {
	if m.state.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, m.state)
	}
	if to != StateFailed && to != m.state.next() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}
