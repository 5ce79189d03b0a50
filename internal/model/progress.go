package model

import "time"

// ProgressRecord is the persisted state of one attempt cycle. The JSON field
// names are the wire format shared with clients; user and module are carried
// as row keys, not payload fields.
type ProgressRecord struct {
	UserID int    `json:"-"`
	Module string `json:"-"`

	Cycle               int               `json:"cycle"`
	CurrentIndex        int               `json:"currentIndex"`
	SelectedAnswers     map[string]Answer `json:"selectedAnswers"`
	CorrectAnswersCount int               `json:"correctAnswersCount"`
	CorrectQuestions    []int             `json:"correctQuestions"`
	IncorrectQuestions  []int             `json:"incorrectQuestions"`
	QuestionOrder       []string          `json:"questionOrder"`
	Completed           bool              `json:"completed"`
}

// ProgressEnvelope is the queue payload carrying a snapshot to the
// persistence worker.
type ProgressEnvelope struct {
	UserID int            `json:"user_id"`
	Module string         `json:"module"`
	Record ProgressRecord `json:"record"`
}

// AttemptHistoryEntry summarizes one past or current cycle for the
// history view.
type AttemptHistoryEntry struct {
	Module              string    `json:"module"`
	Cycle               int       `json:"cycle"`
	CorrectAnswersCount int       `json:"correct_answers_count"`
	TotalQuestions      int       `json:"total_questions"`
	Completed           bool      `json:"completed"`
	UpdatedAt           time.Time `json:"updated_at"`
}
