package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a guarded transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transitions and produces machines
type StateMachineBuilder interface {
	// Configure returns the transition table for state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration adds outgoing transitions to one state
type StateConfiguration interface {
	// Permit adds an unconditional transition
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf adds a transition taken only when guard passes. Guards are
	// evaluated in registration order and the first passing one wins.
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type transitionTable map[Trigger][]transition

type stateConfig struct {
	table transitionTable
}

type stateMachineBuilder struct {
	tables map[State]*stateConfig
}

// NewBuilder creates an empty builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{tables: make(map[State]*stateConfig)}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	cfg, ok := b.tables[state]
	if !ok {
		cfg = &stateConfig{table: make(transitionTable)}
		b.tables[state] = cfg
	}
	return cfg
}

// Build snapshots the configured transitions, so later Configure calls do
// not affect machines that were already built.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	tables := make(map[State]transitionTable, len(b.tables))
	for state, cfg := range b.tables {
		copied := make(transitionTable, len(cfg.table))
		for trigger, ts := range cfg.table {
			copied[trigger] = append([]transition(nil), ts...)
		}
		tables[state] = copied
	}

	return &stateMachine{current: initialState, tables: tables}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.table[trigger] = append(c.table[trigger], transition{toState: toState, guard: guard})
	return c
}
