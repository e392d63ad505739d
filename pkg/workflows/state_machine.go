package workflows

import (
	"fmt"
	"sort"
)

// Land token lifecycle states
const (
	StateUnregistered      = "Unregistered"
	StateRegistered        = "Registered"
	StateMetadataPublished = "MetadataPublished"
	StateActive            = "Active"
	StatePaused            = "Paused"
)

// Lifecycle operations that move a token between states
const (
	OpRegister       = "register"
	OpMint           = "mint"
	OpPause          = "pause"
	OpUpdateMetadata = "update_metadata"
	OpTransfer       = "transfer"
)

// StateMachine enforces land token state transitions
type StateMachine struct {
	allowedTransitions map[string][]string
	operations         map[string]map[string]string
}

// NewStateMachine creates a state machine with the land token transition table
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			StateUnregistered:      {StateRegistered},
			StateRegistered:        {StateMetadataPublished, StatePaused, StateRegistered},
			StateMetadataPublished: {StateActive},
			StateActive:            {StateMetadataPublished, StatePaused, StateActive},
			StatePaused:            {StatePaused}, // metadata updates only
		},
		operations: map[string]map[string]string{
			StateUnregistered: {
				OpRegister: StateRegistered,
			},
			StateRegistered: {
				OpMint:           StateMetadataPublished,
				OpPause:          StatePaused,
				OpUpdateMetadata: StateRegistered,
				OpTransfer:       StateRegistered,
			},
			StateMetadataPublished: {},
			StateActive: {
				OpMint:           StateMetadataPublished,
				OpPause:          StatePaused,
				OpUpdateMetadata: StateActive,
				OpTransfer:       StateActive,
			},
			StatePaused: {
				OpUpdateMetadata: StatePaused,
			},
		},
	}
}

// CanTransition checks if a state transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// AllowedOperations returns the operations permitted from a given state, sorted
func (sm *StateMachine) AllowedOperations(from string) []string {
	ops := make([]string, 0, len(sm.operations[from]))
	for op := range sm.operations[from] {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Next returns the state an operation leads to from the given state.
// A mint passes through MetadataPublished and settles in Active.
func (sm *StateMachine) Next(from, op string) (string, error) {
	ops, exists := sm.operations[from]
	if !exists {
		return "", fmt.Errorf("unknown token state %q", from)
	}
	to, ok := ops[op]
	if !ok {
		return "", fmt.Errorf("%s is not allowed in state %s", op, from)
	}
	if !sm.CanTransition(from, to) {
		return "", fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}
	if to == StateMetadataPublished {
		if !sm.CanTransition(to, StateActive) {
			return "", fmt.Errorf("transition %s -> %s is not allowed", to, StateActive)
		}
		return StateActive, nil
	}
	return to, nil
}
