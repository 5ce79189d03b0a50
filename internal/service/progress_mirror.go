package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/acefrcr/acefrcr-backend/internal/config"
	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// ErrSnapshotMiss indicates the snapshot cache has no entry; callers fall
// back to PostgreSQL, which is the authoritative store.
var ErrSnapshotMiss = errors.New("progress snapshot not cached")

// ProgressMirror is the write path to the async persistence queue plus the
// snapshot read cache. Redis never becomes a source of truth: every enqueue
// lands in PostgreSQL via the progress worker, and cached snapshots exist
// only to make state reads cheap.
type ProgressMirror interface {
	// Enqueue caches the snapshot and appends it to the ordered
	// persistence queue.
	Enqueue(ctx context.Context, env *model.ProgressEnvelope) error
	// Latest returns the cached snapshot or ErrSnapshotMiss.
	Latest(ctx context.Context, userID int, module string) (*model.ProgressRecord, error)
	// Cache refreshes the snapshot without enqueueing (self-heal path).
	Cache(ctx context.Context, env *model.ProgressEnvelope) error
}

// RedisProgressMirror implements ProgressMirror on a Redis client.
type RedisProgressMirror struct {
	rdb *redis.Client
}

// NewRedisProgressMirror creates a RedisProgressMirror.
func NewRedisProgressMirror(rdb *redis.Client) *RedisProgressMirror {
	return &RedisProgressMirror{rdb: rdb}
}

// Enqueue writes the snapshot cache entry and pushes the envelope onto the
// persistence queue in one pipeline. The queue has a single consumer, so
// successive writes for the same attempt apply in order.
func (m *RedisProgressMirror) Enqueue(ctx context.Context, env *model.ProgressEnvelope) error {
	snapshot, payload, err := marshalEnvelope(env)
	if err != nil {
		return err
	}

	pipe := m.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptSnapshotKey(env.UserID, env.Module), snapshot, 0)
	pipe.RPush(ctx, config.WorkerKey.PersistProgressQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue progress: %w", err)
	}
	return nil
}

// Latest reads the cached snapshot.
func (m *RedisProgressMirror) Latest(ctx context.Context, userID int, module string) (*model.ProgressRecord, error) {
	data, err := m.rdb.Get(ctx, config.CacheKey.AttemptSnapshotKey(userID, module)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotMiss
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	rec := &model.ProgressRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	rec.UserID = userID
	rec.Module = module
	return rec, nil
}

// Cache refreshes the snapshot entry only.
func (m *RedisProgressMirror) Cache(ctx context.Context, env *model.ProgressEnvelope) error {
	snapshot, _, err := marshalEnvelope(env)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, config.CacheKey.AttemptSnapshotKey(env.UserID, env.Module), snapshot, 0).Err()
}

func marshalEnvelope(env *model.ProgressEnvelope) (snapshot, payload []byte, err error) {
	snapshot, err = json.Marshal(env.Record)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	payload, err = json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return snapshot, payload, nil
}
