package session

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/google/uuid"
)

func newSingleQuestion() model.Question {
	return model.Question{
		ID:             uuid.New(),
		Module:         "anatomy",
		Type:           model.QuestionTypeSingle,
		Prompt:         "pick one",
		Options:        []string{"a", "b", "c"},
		CorrectOptions: []string{"b"},
		Explanation:    "because b",
	}
}

func newMultiQuestion() model.Question {
	return model.Question{
		ID:             uuid.New(),
		Module:         "anatomy",
		Type:           model.QuestionTypeMulti,
		Prompt:         "pick several",
		Options:        []string{"a", "b", "c", "d"},
		CorrectOptions: []string{"a", "c"},
	}
}

func newCompoundQuestion() model.Question {
	q := model.Question{
		ID:     uuid.New(),
		Module: "anatomy",
		Type:   model.QuestionTypeCompound,
		Prompt: "true or false",
	}
	for i := 0; i < model.CompoundSubItemCount; i++ {
		q.SubItems = append(q.SubItems, model.SubItem{
			ID:     uuid.New(),
			Text:   fmt.Sprintf("statement %d", i),
			Answer: i%2 == 0,
		})
	}
	return q
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// buildMachine builds a machine over the given questions with a fixed seed.
func buildMachine(t *testing.T, qs ...model.Question) *Machine {
	t.Helper()
	m, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

// answerCurrent selects the correct value(s) for the machine's current
// question.
func answerCurrent(t *testing.T, m *Machine, correctly bool) {
	t.Helper()
	q, ok := m.Current()
	if !ok {
		t.Fatal("no current question")
	}

	switch q.Type {
	case model.QuestionTypeSingle:
		v := q.CorrectOptions[0]
		if !correctly {
			v = wrongOption(q)
		}
		if err := m.Select(q.ID.String(), model.SingleAnswer(v)); err != nil {
			t.Fatalf("Select: %v", err)
		}
	case model.QuestionTypeMulti:
		vals := q.CorrectOptions
		if !correctly {
			vals = []string{wrongOption(q)}
		}
		if err := m.Select(q.ID.String(), model.MultiAnswer(vals...)); err != nil {
			t.Fatalf("Select: %v", err)
		}
	case model.QuestionTypeCompound:
		for _, sub := range q.SubItems {
			v := "false"
			if sub.Answer == correctly {
				v = "true"
			}
			if err := m.Select(sub.ID.String(), model.SingleAnswer(v)); err != nil {
				t.Fatalf("Select sub %s: %v", sub.ID, err)
			}
		}
	}
}

func wrongOption(q model.Question) string {
	for _, o := range q.Options {
		correct := false
		for _, c := range q.CorrectOptions {
			if o == c {
				correct = true
				break
			}
		}
		if !correct {
			return o
		}
	}
	return ""
}

func TestMachineFullCycle(t *testing.T) {
	m := buildMachine(t, newSingleQuestion(), newMultiQuestion(), newCompoundQuestion())

	if m.Cycle() != 1 {
		t.Fatalf("Cycle = %d, want 1", m.Cycle())
	}
	if m.Phase() != PhaseUnanswered || m.Index() != 0 {
		t.Fatalf("start phase/index = %s/%d", m.Phase(), m.Index())
	}

	for i := 0; i < m.Len(); i++ {
		answerCurrent(t, m, true)
		result, err := m.Submit()
		if err != nil {
			t.Fatalf("Submit at %d: %v", i, err)
		}
		if !result.Correct {
			t.Fatalf("question %d graded incorrect", i)
		}
		if i < m.Len()-1 {
			if err := m.Next(); err != nil {
				t.Fatalf("Next at %d: %v", i, err)
			}
		}
	}

	summary, err := m.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// 1 + 1 + 5 units, all correct.
	wantUnits := 2 + model.CompoundSubItemCount
	if summary.CorrectUnits != wantUnits || summary.IncorrectUnits != 0 {
		t.Fatalf("summary units = %d/%d, want %d/0", summary.CorrectUnits, summary.IncorrectUnits, wantUnits)
	}
	if summary.Percentage != 100 {
		t.Fatalf("percentage = %v, want 100", summary.Percentage)
	}
	if !m.Completed() || m.Phase() != PhaseFinalized {
		t.Fatal("machine should be finalized")
	}

	snap := m.Snapshot()
	if !snap.Completed || len(snap.CorrectQuestions) != 3 || len(snap.IncorrectQuestions) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestMachineTransitionGuards(t *testing.T) {
	m := buildMachine(t, newSingleQuestion(), newSingleQuestion())

	// Submit before any selection.
	if _, err := m.Submit(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Submit unanswered = %v, want ErrIncomplete", err)
	}
	// Next before submit.
	if err := m.Next(); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("Next before submit = %v, want ErrNotSubmitted", err)
	}
	// Finalize before submit.
	if _, err := m.Finalize(); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("Finalize before submit = %v, want ErrNotSubmitted", err)
	}

	answerCurrent(t, m, true)
	if _, err := m.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Select and re-submit after submission.
	q, _ := m.Current()
	if err := m.Select(q.ID.String(), model.SingleAnswer("a")); !errors.Is(err, ErrNotUnanswered) {
		t.Fatalf("Select after submit = %v, want ErrNotUnanswered", err)
	}
	if _, err := m.Submit(); !errors.Is(err, ErrNotUnanswered) {
		t.Fatalf("Submit twice = %v, want ErrNotUnanswered", err)
	}
	// Finalize mid-cycle.
	if _, err := m.Finalize(); !errors.Is(err, ErrNotLastQuestion) {
		t.Fatalf("Finalize mid-cycle = %v, want ErrNotLastQuestion", err)
	}

	if err := m.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	answerCurrent(t, m, true)
	if _, err := m.Submit(); err != nil {
		t.Fatalf("Submit last: %v", err)
	}
	// Next past the end.
	if err := m.Next(); !errors.Is(err, ErrLastQuestion) {
		t.Fatalf("Next past end = %v, want ErrLastQuestion", err)
	}

	if _, err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Everything is rejected after finalization.
	if err := m.Select(q.ID.String(), model.SingleAnswer("a")); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Select after finalize = %v, want ErrFinalized", err)
	}
	if _, err := m.Submit(); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Submit after finalize = %v, want ErrFinalized", err)
	}
	if err := m.Next(); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Next after finalize = %v, want ErrFinalized", err)
	}
	if _, err := m.Finalize(); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Finalize twice = %v, want ErrFinalized", err)
	}
}

func TestMachineSelectValidation(t *testing.T) {
	single := newSingleQuestion()
	m := buildMachine(t, single)

	// Unknown target.
	if err := m.Select(uuid.New().String(), model.SingleAnswer("a")); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("unknown target = %v, want ErrUnknownTarget", err)
	}
	// Wrong value shape.
	if err := m.Select(single.ID.String(), model.MultiAnswer("a", "b")); !errors.Is(err, ErrValueShape) {
		t.Fatalf("multi value on single = %v, want ErrValueShape", err)
	}
	// Empty value.
	if err := m.Select(single.ID.String(), model.Answer{}); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("empty value = %v, want ErrIncomplete", err)
	}

	// Re-selection before submit overwrites.
	if err := m.Select(single.ID.String(), model.SingleAnswer("a")); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if err := m.Select(single.ID.String(), model.SingleAnswer("b")); err != nil {
		t.Fatalf("overwrite select: %v", err)
	}
	result, err := m.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Correct {
		t.Fatal("latest selection should be graded")
	}
}

func TestMachineCompoundPartialCredit(t *testing.T) {
	q := newCompoundQuestion()
	m := buildMachine(t, q)

	// Answer the first sub-item wrong, the rest right.
	for i, sub := range q.SubItems {
		want := sub.Answer
		if i == 0 {
			want = !want
		}
		v := "false"
		if want {
			v = "true"
		}
		if err := m.Select(sub.ID.String(), model.SingleAnswer(v)); err != nil {
			t.Fatalf("Select: %v", err)
		}
	}

	result, err := m.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Correct {
		t.Fatal("partially wrong compound must not count as correct")
	}
	if result.CorrectUnits != model.CompoundSubItemCount-1 || result.IncorrectUnits != 1 {
		t.Fatalf("units = %d/%d", result.CorrectUnits, result.IncorrectUnits)
	}
	if len(result.SubResults) != model.CompoundSubItemCount {
		t.Fatalf("sub results = %d", len(result.SubResults))
	}

	snap := m.Snapshot()
	// Unit-level tally, question-level index lists.
	if snap.CorrectAnswersCount != model.CompoundSubItemCount-1 {
		t.Fatalf("correctAnswersCount = %d", snap.CorrectAnswersCount)
	}
	if len(snap.CorrectQuestions) != 0 || len(snap.IncorrectQuestions) != 1 {
		t.Fatalf("index lists = %v/%v", snap.CorrectQuestions, snap.IncorrectQuestions)
	}
}

func TestMachineCompoundIncompleteSubItems(t *testing.T) {
	q := newCompoundQuestion()
	m := buildMachine(t, q)

	// Answer all but one sub-item.
	for _, sub := range q.SubItems[:model.CompoundSubItemCount-1] {
		if err := m.Select(sub.ID.String(), model.SingleAnswer("true")); err != nil {
			t.Fatalf("Select: %v", err)
		}
	}
	if _, err := m.Submit(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Submit = %v, want ErrIncomplete", err)
	}
}

func TestMachineSummaryMixedScore(t *testing.T) {
	m := buildMachine(t, newSingleQuestion(), newSingleQuestion())

	answerCurrent(t, m, true)
	if _, err := m.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := m.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	answerCurrent(t, m, false)
	if _, err := m.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	summary, err := m.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if summary.Percentage != 50 {
		t.Fatalf("percentage = %v, want 50", summary.Percentage)
	}

	snap := m.Snapshot()
	if len(snap.CorrectQuestions) != 1 || len(snap.IncorrectQuestions) != 1 {
		t.Fatalf("index lists = %v/%v", snap.CorrectQuestions, snap.IncorrectQuestions)
	}
}
