package flow

import (
	"log/slog"
	"time"
)

// DefaultConversationTTL is how long an idle conversation survives before the
// sender's next message discards it and starts fresh.
const DefaultConversationTTL = 30 * time.Minute

// State is one sender's position in an active flow.
type State struct {
	Sender    string            // canonical channel identity of the owner
	Kind      Kind              // which flow is active
	StepKey   string            // current step key within the flow
	Fields    map[string]string // collected fields; grows until commit or cancel
	AdminID   string            // admin who initiated the flow
	UpdatedAt time.Time         // last inbound message for this conversation
}

// ConversationStore holds at most one State per sender.
//
// It is owned by the bot's single message-handling goroutine; the serialized
// delivery of inbound messages is the concurrency guarantee, so no locking is
// done here.
type ConversationStore struct {
	states map[string]*State
	ttl    time.Duration
	now    func() time.Time
}

// NewConversationStore creates an empty store. A ttl of zero disables idle expiry.
func NewConversationStore(ttl time.Duration) *ConversationStore {
	return &ConversationStore{
		states: make(map[string]*State),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get returns the sender's active conversation, lazily discarding it first if
// it has been idle past the TTL.
func (cs *ConversationStore) Get(sender string) (*State, bool) {
	state, ok := cs.states[sender]
	if !ok {
		return nil, false
	}
	if cs.ttl > 0 && cs.now().Sub(state.UpdatedAt) > cs.ttl {
		slog.Info("ConversationStore discarding idle conversation", "sender", sender, "kind", state.Kind, "idle_since", state.UpdatedAt)
		delete(cs.states, sender)
		return nil, false
	}
	return state, true
}

// Put stores the sender's conversation, replacing any previous one.
func (cs *ConversationStore) Put(state *State) {
	state.UpdatedAt = cs.now()
	cs.states[state.Sender] = state
}

// Touch refreshes the conversation's idle timestamp.
func (cs *ConversationStore) Touch(state *State) {
	state.UpdatedAt = cs.now()
}

// Delete removes the sender's conversation, if any.
func (cs *ConversationStore) Delete(sender string) {
	delete(cs.states, sender)
}

// Len returns the number of active conversations.
func (cs *ConversationStore) Len() int {
	return len(cs.states)
}
