// Package tagstore persists session-level conversation classifications
// and serves tag lookups for downstream memory indexing and analytics.
package tagstore

import (
	"context"
	"time"
)

// Record is one stored classification.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Tags      []string  `json:"tags"`
	Emotion   string    `json:"emotion"`
	Intensity int       `json:"intensity"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionTagSummary is the projection returned by tag queries.
type SessionTagSummary struct {
	SessionID string    `json:"session_id"`
	Tags      []string  `json:"tags"`
	Emotion   string    `json:"emotion"`
	Intensity int       `json:"intensity"`
	TaggedAt  time.Time `json:"tagged_at"`
}

// Gateway stores and retrieves conversation tags.
type Gateway interface {
	SaveTags(ctx context.Context, userID, sessionID string, tags []string, emotion string, intensity int) error
	QueryBySessionTag(ctx context.Context, userID, tag string) ([]SessionTagSummary, error)
	Close() error
}
