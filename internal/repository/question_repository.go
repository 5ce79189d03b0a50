package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository reads the question bank. Questions are immutable from
// the attempt subsystem's point of view; writes only happen via seeding.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByModule fetches every question of a module.
func (r *QuestionRepository) ListByModule(ctx context.Context, module string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, module, category, sub_category, prompt, explanation,
		        question_type, options, correct_options, sub_items
		 FROM questions
		 WHERE module = $1
		 ORDER BY created_at ASC`, module,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options, correct, subItems []byte
		if err := rows.Scan(&q.ID, &q.Module, &q.Category, &q.SubCategory,
			&q.Prompt, &q.Explanation, &q.Type, &options, &correct, &subItems); err != nil {
			return nil, err
		}
		if err := unmarshalColumn(options, &q.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		if err := unmarshalColumn(correct, &q.CorrectOptions); err != nil {
			return nil, fmt.Errorf("question %s correct options: %w", q.ID, err)
		}
		if err := unmarshalColumn(subItems, &q.SubItems); err != nil {
			return nil, fmt.Errorf("question %s sub items: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DistinctModules returns every module that has at least one question.
func (r *QuestionRepository) DistinctModules(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT module FROM questions ORDER BY module`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// Create inserts a question. Used by the seeding command.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	correct, err := json.Marshal(q.CorrectOptions)
	if err != nil {
		return fmt.Errorf("marshal correct options: %w", err)
	}
	subItems, err := json.Marshal(q.SubItems)
	if err != nil {
		return fmt.Errorf("marshal sub items: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO questions
		   (module, category, sub_category, prompt, explanation,
		    question_type, options, correct_options, sub_items)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		q.Module, q.Category, q.SubCategory, q.Prompt, q.Explanation,
		q.Type, options, correct, subItems,
	).Scan(&q.ID)
}

// unmarshalColumn decodes a JSONB column, treating NULL as empty.
func unmarshalColumn(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
