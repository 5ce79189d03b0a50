package session

import (
	"errors"
	"strings"

	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/google/uuid"
)

// Phase is the position of the machine inside the answer/advance loop.
type Phase string

const (
	PhaseUnanswered Phase = "UNANSWERED"
	PhaseSubmitted  Phase = "SUBMITTED"
	PhaseFinalized  Phase = "FINALIZED"
)

// Transition and validation errors.
var (
	ErrNotUnanswered   = errors.New("current question is already submitted")
	ErrNotSubmitted    = errors.New("current question has not been submitted")
	ErrFinalized       = errors.New("attempt is finalized")
	ErrIncomplete      = errors.New("incomplete answer")
	ErrUnknownTarget   = errors.New("target does not belong to the current question")
	ErrValueShape      = errors.New("answer value shape does not match the question type")
	ErrLastQuestion    = errors.New("already at the last question")
	ErrNotLastQuestion = errors.New("not at the last question")
)

// Machine drives one attempt cycle: it owns the frozen question order, the
// answer map and the running tallies, and enforces the
// unanswered → submitted → unanswered(+1) → … → finalized transition rules.
// Not safe for concurrent use; callers serialize transitions per attempt.
type Machine struct {
	userID int
	module string
	cycle  int

	order     []string
	questions map[string]model.Question

	idx   int
	phase Phase

	answers      map[string]model.Answer
	correctUnits int
	// incorrectUnits is derived state, never serialized. It is rebuilt on
	// resume from the index lists and question unit counts.
	incorrectUnits int
	correctIdx     []int
	incorrectIdx   []int
	completed      bool
}

// SubResult is the graded outcome of a single compound sub-item.
type SubResult struct {
	SubItemID   uuid.UUID `json:"sub_item_id"`
	Correct     bool      `json:"correct"`
	Expected    bool      `json:"expected"`
	Explanation string    `json:"explanation,omitempty"`
}

// SubmitResult is returned from Submit with the grading outcome of the
// current question.
type SubmitResult struct {
	QuestionID     uuid.UUID   `json:"question_id"`
	Index          int         `json:"index"`
	Correct        bool        `json:"correct"`
	CorrectUnits   int         `json:"correct_units"`
	IncorrectUnits int         `json:"incorrect_units"`
	Explanation    string      `json:"explanation,omitempty"`
	SubResults     []SubResult `json:"sub_results,omitempty"`
}

// Summary is the final score of a completed cycle, computed from the
// accumulated tallies without re-scoring.
type Summary struct {
	CorrectUnits   int     `json:"correct_units"`
	IncorrectUnits int     `json:"incorrect_units"`
	TotalUnits     int     `json:"total_units"`
	Percentage     float64 `json:"percentage"`
}

func (m *Machine) UserID() int   { return m.userID }
func (m *Machine) Module() string { return m.module }
func (m *Machine) Cycle() int    { return m.cycle }
func (m *Machine) Index() int    { return m.idx }
func (m *Machine) Phase() Phase  { return m.phase }
func (m *Machine) Completed() bool { return m.completed }
func (m *Machine) Len() int      { return len(m.order) }

// Current returns the question at the current index.
func (m *Machine) Current() (model.Question, bool) {
	if m.idx < 0 || m.idx >= len(m.order) {
		return model.Question{}, false
	}
	q, ok := m.questions[m.order[m.idx]]
	return q, ok
}

// Answers returns a copy of the full answer map.
func (m *Machine) Answers() map[string]model.Answer {
	out := make(map[string]model.Answer, len(m.answers))
	for k, v := range m.answers {
		out[k] = v
	}
	return out
}

// Select records an answer value for the current question or one of its
// sub-items. Allowed only before submission; repeated calls overwrite the
// previous value. Nothing is persisted here.
func (m *Machine) Select(targetID string, value model.Answer) error {
	if m.phase == PhaseFinalized {
		return ErrFinalized
	}
	if m.phase != PhaseUnanswered {
		return ErrNotUnanswered
	}
	if value.IsZero() {
		return ErrIncomplete
	}

	q, ok := m.Current()
	if !ok {
		return ErrUnknownTarget
	}

	switch q.Type {
	case model.QuestionTypeSingle:
		if targetID != q.ID.String() {
			return ErrUnknownTarget
		}
		if value.Multi {
			return ErrValueShape
		}
	case model.QuestionTypeMulti:
		if targetID != q.ID.String() {
			return ErrUnknownTarget
		}
		if !value.Multi {
			return ErrValueShape
		}
	case model.QuestionTypeCompound:
		if !hasSubItem(q, targetID) {
			return ErrUnknownTarget
		}
		if value.Multi {
			return ErrValueShape
		}
	default:
		return ErrUnknownTarget
	}

	m.answers[targetID] = value
	return nil
}

// Submit grades the current question, updates the tallies and moves to the
// submitted phase. Every required target must have a recorded value.
func (m *Machine) Submit() (*SubmitResult, error) {
	if m.phase == PhaseFinalized {
		return nil, ErrFinalized
	}
	if m.phase != PhaseUnanswered {
		return nil, ErrNotUnanswered
	}

	q, ok := m.Current()
	if !ok {
		return nil, ErrUnknownTarget
	}
	if !m.fullyAnswered(q) {
		return nil, ErrIncomplete
	}

	result := m.grade(q)

	m.correctUnits += result.CorrectUnits
	m.incorrectUnits += result.IncorrectUnits
	if result.Correct {
		m.correctIdx = append(m.correctIdx, m.idx)
	} else {
		m.incorrectIdx = append(m.incorrectIdx, m.idx)
	}
	m.phase = PhaseSubmitted

	return result, nil
}

// Next advances to the following question. Allowed only after submission and
// only when a following question exists.
func (m *Machine) Next() error {
	if m.phase == PhaseFinalized {
		return ErrFinalized
	}
	if m.phase != PhaseSubmitted {
		return ErrNotSubmitted
	}
	if m.idx >= len(m.order)-1 {
		return ErrLastQuestion
	}
	m.idx++
	m.phase = PhaseUnanswered
	return nil
}

// Finalize completes the cycle. Allowed only after the last question has been
// submitted. The summary comes from the accumulated tallies.
func (m *Machine) Finalize() (*Summary, error) {
	if m.phase == PhaseFinalized {
		return nil, ErrFinalized
	}
	if m.phase != PhaseSubmitted {
		return nil, ErrNotSubmitted
	}
	if m.idx != len(m.order)-1 {
		return nil, ErrNotLastQuestion
	}

	m.completed = true
	m.phase = PhaseFinalized
	s := m.Summary()
	return &s, nil
}

// Summary computes the score from the current tallies.
func (m *Machine) Summary() Summary {
	total := m.correctUnits + m.incorrectUnits
	var pct float64
	if total > 0 {
		pct = float64(m.correctUnits) / float64(total) * 100
	}
	return Summary{
		CorrectUnits:   m.correctUnits,
		IncorrectUnits: m.incorrectUnits,
		TotalUnits:     total,
		Percentage:     pct,
	}
}

// Snapshot produces the serializable progress record mirroring the current
// in-memory state.
func (m *Machine) Snapshot() model.ProgressRecord {
	answers := make(map[string]model.Answer, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	return model.ProgressRecord{
		UserID:              m.userID,
		Module:              m.module,
		Cycle:               m.cycle,
		CurrentIndex:        m.idx,
		SelectedAnswers:     answers,
		CorrectAnswersCount: m.correctUnits,
		CorrectQuestions:    append([]int(nil), m.correctIdx...),
		IncorrectQuestions:  append([]int(nil), m.incorrectIdx...),
		QuestionOrder:       append([]string(nil), m.order...),
		Completed:           m.completed,
	}
}

// fullyAnswered reports whether every required target of q has a value.
func (m *Machine) fullyAnswered(q model.Question) bool {
	if q.Type == model.QuestionTypeCompound {
		for _, sub := range q.SubItems {
			if a, ok := m.answers[sub.ID.String()]; !ok || a.IsZero() {
				return false
			}
		}
		return true
	}
	a, ok := m.answers[q.ID.String()]
	return ok && !a.IsZero()
}

// grade evaluates the recorded answers for q. Compound sub-items each
// contribute one unit; flat questions contribute a single unit.
func (m *Machine) grade(q model.Question) *SubmitResult {
	result := &SubmitResult{
		QuestionID:  q.ID,
		Index:       m.idx,
		Explanation: q.Explanation,
	}

	if q.Type == model.QuestionTypeCompound {
		for _, sub := range q.SubItems {
			got := m.answers[sub.ID.String()]
			correct := answerAsBool(got) == sub.Answer
			if correct {
				result.CorrectUnits++
			} else {
				result.IncorrectUnits++
			}
			result.SubResults = append(result.SubResults, SubResult{
				SubItemID:   sub.ID,
				Correct:     correct,
				Expected:    sub.Answer,
				Explanation: sub.Explanation,
			})
		}
		result.Correct = result.IncorrectUnits == 0
		return result
	}

	if m.answers[q.ID.String()].Matches(q.CorrectOptions) {
		result.Correct = true
		result.CorrectUnits = 1
	} else {
		result.IncorrectUnits = 1
	}
	return result
}

// unitCount is the number of tally units a question contributes.
func unitCount(q model.Question) int {
	if q.Type == model.QuestionTypeCompound {
		return len(q.SubItems)
	}
	return 1
}

func hasSubItem(q model.Question, id string) bool {
	for _, sub := range q.SubItems {
		if sub.ID.String() == id {
			return true
		}
	}
	return false
}

// answerAsBool interprets a sub-item answer value.
func answerAsBool(a model.Answer) bool {
	return strings.EqualFold(strings.TrimSpace(a.Value()), "true")
}
