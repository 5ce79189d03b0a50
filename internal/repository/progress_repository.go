package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateCycle is returned when inserting a cycle that already exists
// for the same user and module. Cycle numbers are never reused.
var ErrDuplicateCycle = errors.New("progress record for this cycle already exists")

// ProgressRepository persists attempt progress records.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Insert creates the record for a new cycle. Prior cycles stay untouched and
// queryable; a duplicate (user, module, cycle) fails with ErrDuplicateCycle.
func (r *ProgressRepository) Insert(ctx context.Context, rec *model.ProgressRecord) error {
	answers, err := json.Marshal(rec.SelectedAnswers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempt_progress
		   (user_id, module, cycle, current_index, selected_answers,
		    correct_count, correct_questions, incorrect_questions,
		    question_order, completed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.UserID, rec.Module, rec.Cycle, rec.CurrentIndex, answers,
		rec.CorrectAnswersCount, rec.CorrectQuestions, rec.IncorrectQuestions,
		rec.QuestionOrder, rec.Completed,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCycle
		}
		return err
	}
	return nil
}

// Update merges the snapshot into the existing cycle row.
func (r *ProgressRepository) Update(ctx context.Context, rec *model.ProgressRecord) error {
	answers, err := json.Marshal(rec.SelectedAnswers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempt_progress
		 SET current_index = $4,
		     selected_answers = $5,
		     correct_count = $6,
		     correct_questions = $7,
		     incorrect_questions = $8,
		     completed = $9,
		     updated_at = NOW()
		 WHERE user_id = $1 AND module = $2 AND cycle = $3`,
		rec.UserID, rec.Module, rec.Cycle, rec.CurrentIndex, answers,
		rec.CorrectAnswersCount, rec.CorrectQuestions, rec.IncorrectQuestions,
		rec.Completed,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no record for user %d module %s cycle %d", rec.UserID, rec.Module, rec.Cycle)
	}
	return nil
}

// FetchLatest returns the highest-cycle record for (user, module), or
// pgx.ErrNoRows when the user has never attempted the module.
func (r *ProgressRepository) FetchLatest(ctx context.Context, userID int, module string) (*model.ProgressRecord, error) {
	rec := &model.ProgressRecord{}
	var answers []byte

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, module, cycle, current_index, selected_answers,
		        correct_count, correct_questions, incorrect_questions,
		        question_order, completed
		 FROM attempt_progress
		 WHERE user_id = $1 AND module = $2
		 ORDER BY cycle DESC
		 LIMIT 1`, userID, module,
	).Scan(&rec.UserID, &rec.Module, &rec.Cycle, &rec.CurrentIndex, &answers,
		&rec.CorrectAnswersCount, &rec.CorrectQuestions, &rec.IncorrectQuestions,
		&rec.QuestionOrder, &rec.Completed)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answers, &rec.SelectedAnswers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if rec.SelectedAnswers == nil {
		rec.SelectedAnswers = make(map[string]model.Answer)
	}
	return rec, nil
}

// ListByUser returns per-cycle summaries across all modules, newest first.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID int) ([]model.AttemptHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT module, cycle, correct_count,
		        COALESCE(array_length(question_order, 1), 0),
		        completed, updated_at
		 FROM attempt_progress
		 WHERE user_id = $1
		 ORDER BY updated_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AttemptHistoryEntry
	for rows.Next() {
		var e model.AttemptHistoryEntry
		if err := rows.Scan(&e.Module, &e.Cycle, &e.CorrectAnswersCount,
			&e.TotalQuestions, &e.Completed, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
