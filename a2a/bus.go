package a2a

import (
	"sync"
	"time"
)

// DefaultRetention is how many messages the bus keeps before evicting the
// oldest entries.
const DefaultRetention = 100

// MessageType classifies a stage-to-stage handoff.
type MessageType string

const (
	// TypeHandoff records a normal stage transition.
	TypeHandoff MessageType = "handoff"
	// TypeDecision records a routing decision (relevance, content found, vagueness).
	TypeDecision MessageType = "decision"
	// TypeVerdict records an evaluation outcome.
	TypeVerdict MessageType = "verdict"
	// TypeTermination records the final transition into done.
	TypeTermination MessageType = "termination"
)

// Message is one immutable audit-trail record of a stage handoff. It is
// created at a transition, appended to the bus, and never mutated.
type Message struct {
	Sender    string         `json:"sender"`
	Receiver  string         `json:"receiver"`
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus is a process-wide, append-only log of stage handoffs bounded to a
// retention window. It is purely observational: control flow never consults
// it, so disabling publication must not change pipeline behavior. Safe for
// concurrent use across runs.
type Bus struct {
	mu        sync.RWMutex
	messages  []Message
	retention int
}

// NewBus creates a bus with the default 100-message retention.
func NewBus() *Bus {
	return NewBusWithRetention(DefaultRetention)
}

// NewBusWithRetention creates a bus keeping at most retention messages.
func NewBusWithRetention(retention int) *Bus {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Bus{
		messages:  make([]Message, 0, retention),
		retention: retention,
	}
}

// Publish appends a message, evicting the oldest entries beyond the
// retention cap. Never blocks on readers beyond the internal mutex, never
// fails. A nil bus is a no-op so publication can be disabled wholesale.
func (b *Bus) Publish(msg Message) {
	if b == nil {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	if over := len(b.messages) - b.retention; over > 0 {
		b.messages = append(b.messages[:0:0], b.messages[over:]...)
	}
}

// Filter selects messages by any combination of sender, receiver, and type.
// Zero values match everything.
type Filter struct {
	Sender   string
	Receiver string
	Type     MessageType
}

// Query returns the retained messages matching the filter, oldest first.
func (b *Bus) Query(f Filter) []Message {
	if b == nil {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Message, 0, len(b.messages))
	for _, msg := range b.messages {
		if f.Sender != "" && msg.Sender != f.Sender {
			continue
		}
		if f.Receiver != "" && msg.Receiver != f.Receiver {
			continue
		}
		if f.Type != "" && msg.Type != f.Type {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// All returns every retained message, oldest first.
func (b *Bus) All() []Message {
	return b.Query(Filter{})
}

// Len reports the number of retained messages.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}
