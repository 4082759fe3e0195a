// Package memory keeps a per-session working-memory buffer: raw turns
// accumulate, periodic compression folds them into rolling topic/emotion
// summaries, and a condensed view is injected into outbound prompts.
package memory

import (
	"context"
	"errors"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message within a session. Immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RollingSummary is the product of one compression cycle.
type RollingSummary struct {
	Topic   string `json:"topic"`
	Emotion string `json:"emotion"`
	Summary string `json:"summary"`
}

// SessionBuffer is the full per-session record. Turns are append-only and
// never truncated; rolling summaries and the emotion trail grow in
// lockstep, one entry per compression cycle.
type SessionBuffer struct {
	SessionID        string           `json:"session_id"`
	UserID           string           `json:"user_id"`
	Turns            []Turn           `json:"turns"`
	RollingSummaries []RollingSummary `json:"rolling_summaries"`
	EmotionTrail     []string         `json:"emotion_trail"`
	LastCompressedAt time.Time        `json:"last_compressed_at"`
}

// ErrNotFound marks operations on a session with no buffer. The Manager
// degrades it to a logged no-op; the store surfaces it plainly.
var ErrNotFound = errors.New("session buffer not found")

// BufferStore holds session buffers. Implementations must be safe for
// concurrent use across sessions; within one session the Manager
// serializes compression but appends may interleave with reads.
type BufferStore interface {
	// Create makes an empty buffer if none exists. It reports whether a
	// new buffer was created.
	Create(ctx context.Context, sessionID, userID string) (bool, error)

	// Reset force-overwrites any existing buffer with an empty one in a
	// single write. It reports whether a buffer existed before.
	Reset(ctx context.Context, sessionID, userID string) (bool, error)

	// AppendTurn adds a turn to an existing buffer.
	AppendTurn(ctx context.Context, sessionID string, t Turn) error

	// TurnCount returns the number of turns in the buffer.
	TurnCount(ctx context.Context, sessionID string) (int, error)

	// Snapshot returns an isolated copy of the full buffer.
	Snapshot(ctx context.Context, sessionID string) (*SessionBuffer, error)

	// AppendSummary records one compression result and the cycle time.
	AppendSummary(ctx context.Context, sessionID string, s RollingSummary, at time.Time) error

	// Delete removes the buffer. It reports whether one existed.
	Delete(ctx context.Context, sessionID string) (bool, error)
}
