package tagstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGateway persists conversation tags in PostgreSQL.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

func NewPostgresGateway(ctx context.Context, databaseURL string) (*PostgresGateway, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresGateway{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_tags (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			tags TEXT[] NOT NULL,
			emotion TEXT NOT NULL,
			intensity INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_tags_user_created ON conversation_tags (user_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_tags_tags ON conversation_tags USING GIN (tags);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (g *PostgresGateway) SaveTags(ctx context.Context, userID, sessionID string, tags []string, emotion string, intensity int) error {
	_, err := g.pool.Exec(ctx,
		`INSERT INTO conversation_tags (id, user_id, session_id, tags, emotion, intensity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(),
		userID,
		sessionID,
		tags,
		emotion,
		intensity,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	return nil
}

func (g *PostgresGateway) QueryBySessionTag(ctx context.Context, userID, tag string) ([]SessionTagSummary, error) {
	rows, err := g.pool.Query(ctx,
		`SELECT session_id, tags, emotion, intensity, created_at
		 FROM conversation_tags
		 WHERE user_id=$1 AND $2 = ANY(tags)
		 ORDER BY created_at DESC`,
		userID,
		tag,
	)
	if err != nil {
		return nil, fmt.Errorf("query by tag: %w", err)
	}
	defer rows.Close()

	var items []SessionTagSummary
	for rows.Next() {
		var s SessionTagSummary
		if err := rows.Scan(&s.SessionID, &s.Tags, &s.Emotion, &s.Intensity, &s.TaggedAt); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag rows: %w", err)
	}
	return items, nil
}

func (g *PostgresGateway) Close() error {
	g.pool.Close()
	return nil
}
