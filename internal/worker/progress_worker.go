package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/acefrcr/acefrcr-backend/internal/config"
	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/acefrcr/acefrcr-backend/internal/repository"
	ws "github.com/acefrcr/acefrcr-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ProgressWorker consumes persist_progress_queue and applies snapshot updates
// to PostgreSQL. It is the single consumer of the queue, so snapshots for an
// attempt land in the order they were enqueued. After each successful write
// it publishes an acknowledgement on the attempt's event channel.
type ProgressWorker struct {
	store *repository.ProgressRepository
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewProgressWorker creates a new ProgressWorker.
func NewProgressWorker(store *repository.ProgressRepository, rdb *redis.Client, log zerolog.Logger) *ProgressWorker {
	return &ProgressWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "progress_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *ProgressWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ProgressWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistProgressQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var env model.ProgressEnvelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persist(ctx, &env); err != nil {
		w.log.Error().Err(err).
			Int("user_id", env.UserID).
			Str("module", env.Module).
			Int("cycle", env.Record.Cycle).
			Msg("Persist error, retrying in 5s")
		// Push back to the queue head so ordering survives the retry.
		w.rdb.LPush(ctx, config.WorkerKey.PersistProgressQueue, result[1])
		time.Sleep(5 * time.Second)
		return
	}

	w.acknowledge(ctx, &env)
}

func (w *ProgressWorker) persist(ctx context.Context, env *model.ProgressEnvelope) error {
	rec := env.Record
	rec.UserID = env.UserID
	rec.Module = env.Module
	return w.store.Update(ctx, &rec)
}

// acknowledge publishes the persistence event so connected clients learn the
// snapshot is durable. Best effort; nobody may be listening.
func (w *ProgressWorker) acknowledge(ctx context.Context, env *model.ProgressEnvelope) {
	var payload interface{}
	if env.Record.Completed {
		payload = ws.CompletedResponse{
			Event:  ws.EventCompleted,
			Module: env.Module,
			Cycle:  env.Record.Cycle,
		}
	} else {
		payload = ws.PersistedResponse{
			Event:        ws.EventPersisted,
			Module:       env.Module,
			Cycle:        env.Record.Cycle,
			CurrentIndex: env.Record.CurrentIndex,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.log.Error().Err(err).Msg("Marshal ack error")
		return
	}
	if err := w.rdb.Publish(ctx, config.CacheKey.AttemptEventsChannel(env.UserID, env.Module), data).Err(); err != nil {
		w.log.Warn().Err(err).Msg("Publish ack error")
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *ProgressWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistProgressQueue).Result()
		if err != nil {
			break
		}

		var env model.ProgressEnvelope
		if err := json.Unmarshal([]byte(result), &env); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persist(ctx, &env); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.LPush(ctx, config.WorkerKey.PersistProgressQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
