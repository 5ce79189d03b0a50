package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/acefrcr/acefrcr-backend/internal/config"
	"github.com/acefrcr/acefrcr-backend/internal/database"
	"github.com/acefrcr/acefrcr-backend/internal/logger"
	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/acefrcr/acefrcr-backend/internal/repository"
	"github.com/acefrcr/acefrcr-backend/internal/session"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "questions.json", "Path to the question bank JSON file")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	// ─── Read Question Bank ────────────────────────────────────────────
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", filePath).Msg("Failed to read question file")
	}

	var questions []model.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse question file")
	}
	if len(questions) == 0 {
		log.Fatal().Msg("Question file is empty")
	}

	// ─── Insert ────────────────────────────────────────────────────────
	inserted := 0
	skipped := 0
	for i := range questions {
		q := &questions[i]
		if q.Module == "" {
			log.Warn().Int("index", i).Msg("Question has no module, skipped")
			skipped++
			continue
		}
		if !session.Eligible(*q) {
			log.Warn().Int("index", i).Str("module", q.Module).
				Str("type", string(q.Type)).
				Msg("Question fails eligibility rules, skipped")
			skipped++
			continue
		}
		if err := questionRepo.Create(ctx, q); err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Insert failed")
		}
		inserted++
	}

	fmt.Printf("\nSeeded %d questions (%d skipped)\n", inserted, skipped)
}
