package session

import (
	"errors"
	"testing"

	"github.com/acefrcr/acefrcr-backend/internal/model"
)

// playThrough answers and submits n questions, advancing between them.
func playThrough(t *testing.T, m *Machine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		answerCurrent(t, m, true)
		if _, err := m.Submit(); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		if m.Index() < m.Len()-1 {
			if err := m.Next(); err != nil {
				t.Fatalf("Next %d: %v", i, err)
			}
		}
	}
}

func TestLoadNoRecordBuildsCycleOne(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newSingleQuestion()}

	m, warnings, fresh, err := Load(7, "anatomy", nil, qs, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fresh {
		t.Fatal("fresh = false, want true")
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if m.Cycle() != 1 || m.Index() != 0 || m.Phase() != PhaseUnanswered {
		t.Fatalf("cycle/index/phase = %d/%d/%s", m.Cycle(), m.Index(), m.Phase())
	}
}

func TestLoadCompletedRecordStartsNextCycle(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newSingleQuestion()}
	rec := &model.ProgressRecord{Cycle: 3, Completed: true}

	m, _, fresh, err := Load(7, "anatomy", rec, qs, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fresh || m.Cycle() != 4 {
		t.Fatalf("fresh/cycle = %v/%d, want true/4", fresh, m.Cycle())
	}
	if m.Index() != 0 || len(m.Answers()) != 0 {
		t.Fatal("new cycle must start clean")
	}
}

func TestLoadResumeRoundTrip(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newMultiQuestion(), newCompoundQuestion()}
	orig, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Answer the first two questions, advance to the third.
	playThrough(t, orig, 2)
	snap := orig.Snapshot()

	m, warnings, fresh, err := Load(7, "anatomy", &snap, qs, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fresh || len(warnings) != 0 {
		t.Fatalf("fresh/warnings = %v/%v", fresh, warnings)
	}

	if m.Cycle() != orig.Cycle() {
		t.Fatalf("cycle = %d, want %d", m.Cycle(), orig.Cycle())
	}
	// The stored index points at the unanswered third question; resume stays.
	if m.Index() != 2 || m.Phase() != PhaseUnanswered {
		t.Fatalf("index/phase = %d/%s, want 2/UNANSWERED", m.Index(), m.Phase())
	}

	got := m.Snapshot()
	if got.CorrectAnswersCount != snap.CorrectAnswersCount {
		t.Fatalf("tally = %d, want %d", got.CorrectAnswersCount, snap.CorrectAnswersCount)
	}
	for i, id := range snap.QuestionOrder {
		if got.QuestionOrder[i] != id {
			t.Fatalf("order diverges at %d", i)
		}
	}

	// The resumed machine continues to completion.
	playThrough(t, m, 1)
	if _, err := m.Finalize(); err != nil {
		t.Fatalf("Finalize after resume: %v", err)
	}
}

func TestLoadResumeStepsPastAnsweredIndex(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newSingleQuestion(), newSingleQuestion()}
	orig, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Submit the first question but do not advance; the record then points
	// at an index that is already graded.
	answerCurrent(t, orig, true)
	if _, err := orig.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := orig.Snapshot()

	m, _, _, err := Load(7, "anatomy", &snap, qs, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Index() != 1 || m.Phase() != PhaseUnanswered {
		t.Fatalf("index/phase = %d/%s, want 1/UNANSWERED", m.Index(), m.Phase())
	}
}

func TestLoadResumeAtGradedLastQuestion(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newSingleQuestion()}
	orig, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Submit everything but never finalize.
	playThrough(t, orig, 2)
	snap := orig.Snapshot()

	m, _, _, err := Load(7, "anatomy", &snap, qs, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Resume in the submitted phase at the last index so finalize works.
	if m.Index() != 1 || m.Phase() != PhaseSubmitted {
		t.Fatalf("index/phase = %d/%s, want 1/SUBMITTED", m.Index(), m.Phase())
	}
	if _, err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestLoadResumeSelectedButNotSubmitted(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newSingleQuestion()}
	orig, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Select without submitting: the answer map has an entry but no tally.
	answerCurrent(t, orig, true)
	snap := orig.Snapshot()

	m, _, _, err := Load(7, "anatomy", &snap, qs, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// The question was never graded, so it is re-presented.
	if m.Index() != 0 || m.Phase() != PhaseUnanswered {
		t.Fatalf("index/phase = %d/%s, want 0/UNANSWERED", m.Index(), m.Phase())
	}
}

func TestLoadResumeDropsMissingQuestions(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newSingleQuestion(), newSingleQuestion(), newSingleQuestion()}
	orig, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Answer the first two questions; machine now sits at index 2.
	playThrough(t, orig, 2)
	snap := orig.Snapshot()

	// Remove the question occupying slot 0 of the frozen order.
	removedID := snap.QuestionOrder[0]
	remaining := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if q.ID.String() != removedID {
			remaining = append(remaining, q)
		}
	}

	m, warnings, fresh, err := Load(7, "anatomy", &snap, remaining, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fresh {
		t.Fatal("resume, not a fresh cycle")
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one", warnings)
	}

	got := m.Snapshot()
	if len(got.QuestionOrder) != 3 {
		t.Fatalf("order length = %d, want 3", len(got.QuestionOrder))
	}
	for _, id := range got.QuestionOrder {
		if id == removedID {
			t.Fatal("removed question still present")
		}
	}

	// Index shifts left past the dropped slot; the tally survives.
	if m.Index() != 1 {
		t.Fatalf("index = %d, want 1", m.Index())
	}
	if got.CorrectAnswersCount != snap.CorrectAnswersCount {
		t.Fatalf("tally = %d, want %d", got.CorrectAnswersCount, snap.CorrectAnswersCount)
	}
	// Graded-index lists hold only remapped, in-range entries.
	for _, i := range got.CorrectQuestions {
		if i < 0 || i >= 3 {
			t.Fatalf("correct index %d out of range", i)
		}
	}

	// The resumed attempt still reaches finalization.
	playThrough(t, m, 2)
	if _, err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestLoadResumeAllQuestionsGone(t *testing.T) {
	qs := []model.Question{newSingleQuestion()}
	orig, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	snap := orig.Snapshot()

	// The source set shares nothing with the frozen order.
	_, _, _, err = Load(7, "anatomy", &snap, []model.Question{newSingleQuestion()}, testRand())
	if !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("Load = %v, want ErrEmptyPool", err)
	}
}

func TestLoadResumeDiscardsOrphanAnswers(t *testing.T) {
	qs := []model.Question{newSingleQuestion(), newSingleQuestion()}
	orig, err := Build(7, "anatomy", qs, 0, testRand())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	snap := orig.Snapshot()
	snap.SelectedAnswers["not-a-known-target"] = model.SingleAnswer("x")

	m, _, _, err := Load(7, "anatomy", &snap, qs, testRand())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := m.Answers()["not-a-known-target"]; ok {
		t.Fatal("orphan answer survived resume")
	}
}
