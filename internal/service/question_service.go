package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/acefrcr/acefrcr-backend/internal/config"
	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/acefrcr/acefrcr-backend/internal/repository"
	"github.com/acefrcr/acefrcr-backend/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// QuestionService serves answer-stripped module payloads, cached in Redis so
// paper browsing never touches PostgreSQL on the hot path.
type QuestionService struct {
	repo *repository.QuestionRepository
	rdb  *redis.Client
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(repo *repository.QuestionRepository, rdb *redis.Client) *QuestionService {
	return &QuestionService{repo: repo, rdb: rdb}
}

// GetModulePayload returns the cached payload for a module, warming the cache
// on a miss.
func (s *QuestionService) GetModulePayload(ctx context.Context, module string) (*model.ModulePayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ModulePayloadKey(module)).Bytes()
	if err == nil {
		payload := &model.ModulePayload{}
		if uerr := json.Unmarshal(data, payload); uerr == nil {
			return payload, nil
		}
		log.Warn().Str("module", module).Msg("corrupt module payload cache entry, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("module", module).Msg("module payload cache read failed, rebuilding")
	}

	return s.warm(ctx, module)
}

// WarmModuleCache rebuilds a module's cached payload from the question bank.
func (s *QuestionService) WarmModuleCache(ctx context.Context, module string) error {
	_, err := s.warm(ctx, module)
	return err
}

// PrewarmAllCaches warms every module that has questions. Called once at
// startup; individual failures are logged and skipped.
func (s *QuestionService) PrewarmAllCaches(ctx context.Context) {
	modules, err := s.repo.DistinctModules(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list modules for cache prewarm")
		return
	}
	for _, module := range modules {
		if err := s.WarmModuleCache(ctx, module); err != nil {
			log.Warn().Err(err).Str("module", module).Msg("module cache prewarm skipped")
			continue
		}
		log.Info().Str("module", module).Msg("module payload cache warmed")
	}
}

func (s *QuestionService) warm(ctx context.Context, module string) (*model.ModulePayload, error) {
	qs, err := s.repo.ListByModule(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	eligible := session.FilterEligible(qs)
	if len(eligible) == 0 {
		return nil, session.ErrEmptyPool
	}

	payload := &model.ModulePayload{Module: module}
	for _, q := range eligible {
		payload.Questions = append(payload.Questions, q.ForUser())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ModulePayloadKey(module), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("cache payload: %w", err)
	}
	return payload, nil
}
