// Package flow implements the guided conversation engine for the dealerbot.
//
// A flow is a finite, linear chain of steps. Each step sends a prompt, applies
// a validating transform to the sender's reply, and points at the next step or
// at the terminal marker. Chains are verified at construction time, so a
// running conversation can never reference a missing step or loop forever.
package flow

import (
	"fmt"
	"strings"
)

// Kind names a guided flow.
type Kind string

const (
	// KindCreateCar is the guided listing-creation flow.
	KindCreateCar Kind = "create_car"
	// KindUpdateCar is the guided listing-update flow.
	KindUpdateCar Kind = "update_car"
)

// TerminalStep is the sentinel Next value marking flow completion.
const TerminalStep = "finish"

// CancelCommand aborts any in-flight conversation (case-insensitive match).
const CancelCommand = "/cancel"

// Step is one prompt/response unit within a flow.
type Step struct {
	// Key identifies the step within its flow.
	Key string
	// Prompt is sent to the sender when this step becomes current.
	Prompt string
	// Next is the key of the following step, or TerminalStep.
	Next string
	// Apply validates the raw reply and merges the extracted field(s) into
	// fields. A returned error re-prompts the same step without mutating state.
	Apply func(input string, fields map[string]string) error
}

// Flow is a validated, immutable chain of steps shared by all conversations of
// its kind.
type Flow struct {
	kind       Kind
	cancelText string
	steps      []Step
	index      map[string]int
}

// NewFlow builds a flow and verifies the step chain: keys are unique, every
// Next resolves to a defined step or the terminal marker, and walking from the
// first step reaches the terminal marker without revisiting a step.
func NewFlow(kind Kind, cancelText string, steps []Step) (*Flow, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("flow %s has no steps", kind)
	}

	index := make(map[string]int, len(steps))
	for i, step := range steps {
		if step.Key == "" {
			return nil, fmt.Errorf("flow %s: step %d has empty key", kind, i)
		}
		if step.Key == TerminalStep {
			return nil, fmt.Errorf("flow %s: step key %q collides with terminal marker", kind, step.Key)
		}
		if step.Apply == nil {
			return nil, fmt.Errorf("flow %s: step %q has no transform", kind, step.Key)
		}
		if _, dup := index[step.Key]; dup {
			return nil, fmt.Errorf("flow %s: duplicate step key %q", kind, step.Key)
		}
		index[step.Key] = i
	}

	// Walk the chain from the first step; it must terminate and touch every step.
	visited := make(map[string]bool, len(steps))
	key := steps[0].Key
	for key != TerminalStep {
		i, ok := index[key]
		if !ok {
			return nil, fmt.Errorf("flow %s: step %q is not defined", kind, key)
		}
		if visited[key] {
			return nil, fmt.Errorf("flow %s: cycle detected at step %q", kind, key)
		}
		visited[key] = true
		key = steps[i].Next
	}
	if len(visited) != len(steps) {
		return nil, fmt.Errorf("flow %s: %d steps unreachable from first step", kind, len(steps)-len(visited))
	}

	return &Flow{kind: kind, cancelText: cancelText, steps: steps, index: index}, nil
}

// MustNewFlow is NewFlow for statically defined flows; it panics on invalid chains.
func MustNewFlow(kind Kind, cancelText string, steps []Step) *Flow {
	f, err := NewFlow(kind, cancelText, steps)
	if err != nil {
		panic(err)
	}
	return f
}

// Kind returns the flow's kind.
func (f *Flow) Kind() Kind {
	return f.kind
}

// First returns the flow's initial step.
func (f *Flow) First() Step {
	return f.steps[0]
}

// Len returns the number of steps in the chain.
func (f *Flow) Len() int {
	return len(f.steps)
}

// step looks up a step by key.
func (f *Flow) step(key string) (Step, bool) {
	i, ok := f.index[key]
	if !ok {
		return Step{}, false
	}
	return f.steps[i], true
}

// IsCancel reports whether the input is the reserved cancel command.
func IsCancel(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), CancelCommand)
}
