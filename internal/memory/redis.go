package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session buffers in Redis so multi-instance deployments
// can shard chat traffic by session without losing working memory. The
// buffer state is a single JSON blob per session; each session is written
// by one request context at a time, so plain read-modify-write is enough.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Client    *redis.Client
	KeyPrefix string        // default "membuf:"
	TTL       time.Duration // 0 = no expiry, matching the in-process store
}

func NewRedisStore(cfg RedisStoreConfig) *RedisStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "membuf:"
	}
	return &RedisStore{
		client:    cfg.Client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*SessionBuffer, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET: %w", err)
	}
	var b SessionBuffer
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode buffer state: %w", err)
	}
	return &b, nil
}

func (s *RedisStore) save(ctx context.Context, b *SessionBuffer) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode buffer state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(b.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET: %w", err)
	}
	return nil
}

func (s *RedisStore) Create(ctx context.Context, sessionID, userID string) (bool, error) {
	raw, err := json.Marshal(&SessionBuffer{SessionID: sessionID, UserID: userID})
	if err != nil {
		return false, fmt.Errorf("encode buffer state: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.key(sessionID), raw, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX: %w", err)
	}
	return created, nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID, userID string) (bool, error) {
	raw, err := json.Marshal(&SessionBuffer{SessionID: sessionID, UserID: userID})
	if err != nil {
		return false, fmt.Errorf("encode buffer state: %w", err)
	}
	// SET with GET reports the previous value in the same round trip.
	_, err = s.client.SetArgs(ctx, s.key(sessionID), raw, redis.SetArgs{Get: true, TTL: s.ttl}).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis SET: %w", err)
	}
	return true, nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, sessionID string, t Turn) error {
	b, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	b.Turns = append(b.Turns, t)
	return s.save(ctx, b)
}

func (s *RedisStore) TurnCount(ctx context.Context, sessionID string) (int, error) {
	b, err := s.load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return len(b.Turns), nil
}

func (s *RedisStore) Snapshot(ctx context.Context, sessionID string) (*SessionBuffer, error) {
	return s.load(ctx, sessionID)
}

func (s *RedisStore) AppendSummary(ctx context.Context, sessionID string, sum RollingSummary, at time.Time) error {
	b, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	b.RollingSummaries = append(b.RollingSummaries, sum)
	b.EmotionTrail = append(b.EmotionTrail, sum.Emotion)
	b.LastCompressedAt = at
	return s.save(ctx, b)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis DEL: %w", err)
	}
	return n > 0, nil
}
