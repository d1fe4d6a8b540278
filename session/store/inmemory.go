package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ravivarmakumar/prism/message"
)

// InMemoryStore implements session history in process memory. Suitable for
// tests and single-node development.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*message.Message
	maxKeep  int
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string][]*message.Message),
		maxKeep:  200,
	}
}

// Append adds one message to the session's history.
func (s *InMemoryStore) Append(ctx context.Context, sessionID string, msg *message.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], message.Clone(msg))
	if len(history) > s.maxKeep {
		history = history[len(history)-s.maxKeep:]
	}
	s.sessions[sessionID] = history
	return nil
}

// Recent returns up to limit most recent messages, oldest first.
func (s *InMemoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[sessionID]
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]*message.Message, len(history))
	for i, msg := range history {
		out[i] = message.Clone(msg)
	}
	return out, nil
}

// Clear removes a session's history.
func (s *InMemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
