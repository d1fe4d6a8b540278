// Package session tracks per-student conversation history so the
// personalization stage can ground its tone in recent exchanges.
package session

import (
	"context"

	"github.com/ravivarmakumar/prism/message"
)

// DefaultHistoryLimit is how many recent messages personalization consumes.
const DefaultHistoryLimit = 10

// Store persists conversation history keyed by session ID.
type Store interface {
	// Append adds one message to the session's history.
	Append(ctx context.Context, sessionID string, msg *message.Message) error

	// Recent returns up to limit most recent messages, oldest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]*message.Message, error)

	// Clear removes a session's history.
	Clear(ctx context.Context, sessionID string) error
}
