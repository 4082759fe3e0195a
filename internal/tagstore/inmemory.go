package tagstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryGateway is a simple in-process gateway for local/dev use.
type InMemoryGateway struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{records: make(map[string][]Record)}
}

func (g *InMemoryGateway) SaveTags(_ context.Context, userID, sessionID string, tags []string, emotion string, intensity int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[userID] = append(g.records[userID], Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Tags:      append([]string(nil), tags...),
		Emotion:   emotion,
		Intensity: intensity,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (g *InMemoryGateway) QueryBySessionTag(_ context.Context, userID, tag string) ([]SessionTagSummary, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []SessionTagSummary
	// Newest first, matching the Postgres ordering.
	recs := g.records[userID]
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		if !contains(r.Tags, tag) {
			continue
		}
		out = append(out, SessionTagSummary{
			SessionID: r.SessionID,
			Tags:      append([]string(nil), r.Tags...),
			Emotion:   r.Emotion,
			Intensity: r.Intensity,
			TaggedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func (g *InMemoryGateway) Close() error { return nil }

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
