package flow

import (
	"fmt"
	"log/slog"
)

// Engine drives conversations through registered flows.
type Engine struct {
	flows map[Kind]*Flow
}

// NewEngine creates an engine over the given flows.
func NewEngine(flows ...*Flow) *Engine {
	m := make(map[Kind]*Flow, len(flows))
	for _, f := range flows {
		m[f.Kind()] = f
	}
	return &Engine{flows: m}
}

// Result describes the outcome of advancing a conversation by one message.
type Result struct {
	// Reply is the single message to send back to the sender. Empty only when
	// Completed is set (the caller formats the commit summary itself).
	Reply string
	// Completed is set when the terminal marker was reached; Fields holds the
	// full collected set, ready to commit.
	Completed bool
	// Cancelled is set when the sender issued the cancel command.
	Cancelled bool
	// Fields is the conversation's collected field set.
	Fields map[string]string
}

// Start begins a flow for the sender, returning the new state and the first
// step's prompt. seed fields (e.g. the target listing ID for updates) are
// copied into the fresh field set.
func (e *Engine) Start(kind Kind, sender, adminID string, seed map[string]string) (*State, string, error) {
	f, ok := e.flows[kind]
	if !ok {
		return nil, "", fmt.Errorf("unknown flow kind %q", kind)
	}

	fields := make(map[string]string, f.Len()+len(seed))
	for k, v := range seed {
		fields[k] = v
	}

	first := f.First()
	state := &State{
		Sender:  sender,
		Kind:    kind,
		StepKey: first.Key,
		Fields:  fields,
		AdminID: adminID,
	}
	slog.Debug("Engine started flow", "kind", kind, "sender", sender, "first_step", first.Key)
	return state, first.Prompt, nil
}

// Advance processes one inbound message for an active conversation.
//
// The cancel command always wins. Otherwise the current step's transform is
// applied: on validation failure the same step is re-prompted and the state is
// untouched; on success the collected fields grow and the state moves to the
// next step or completes.
func (e *Engine) Advance(state *State, input string) (Result, error) {
	f, ok := e.flows[state.Kind]
	if !ok {
		return Result{}, fmt.Errorf("unknown flow kind %q", state.Kind)
	}

	if IsCancel(input) {
		slog.Info("Engine conversation cancelled", "kind", state.Kind, "sender", state.Sender, "step", state.StepKey)
		return Result{Reply: f.cancelText, Cancelled: true, Fields: state.Fields}, nil
	}

	step, ok := f.step(state.StepKey)
	if !ok {
		// Guarded against by NewFlow; can only happen if state was corrupted externally.
		return Result{}, fmt.Errorf("flow %s: state references unknown step %q", state.Kind, state.StepKey)
	}

	if err := step.Apply(input, state.Fields); err != nil {
		slog.Debug("Engine step rejected input", "kind", state.Kind, "sender", state.Sender, "step", step.Key, "error", err)
		return Result{Reply: fmt.Sprintf("⚠️ %s\n\n%s", err, step.Prompt), Fields: state.Fields}, nil
	}

	if step.Next == TerminalStep {
		slog.Info("Engine conversation completed", "kind", state.Kind, "sender", state.Sender, "fields", len(state.Fields))
		return Result{Completed: true, Fields: state.Fields}, nil
	}

	next, ok := f.step(step.Next)
	if !ok {
		return Result{}, fmt.Errorf("flow %s: step %q points at unknown step %q", state.Kind, step.Key, step.Next)
	}
	state.StepKey = next.Key
	slog.Debug("Engine advanced to next step", "kind", state.Kind, "sender", state.Sender, "step", next.Key)
	return Result{Reply: next.Prompt, Fields: state.Fields}, nil
}
