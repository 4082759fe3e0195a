package tagstore

import (
	"context"
	"strings"
)

// NewGateway creates a postgres-backed gateway when configured, otherwise
// in-memory.
func NewGateway(ctx context.Context, databaseURL string) (Gateway, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryGateway(), nil
	}
	return NewPostgresGateway(ctx, databaseURL)
}
