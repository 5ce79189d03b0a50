package session

import (
	"fmt"
	"math/rand"

	"github.com/acefrcr/acefrcr-backend/internal/model"
)

// Load reconciles the latest persisted record against the freshly fetched
// question set and produces a ready machine.
//
//	no record            → build cycle 1 (fresh)
//	record completed     → build cycle record.Cycle+1 (fresh)
//	record incomplete    → resume it
//
// fresh reports whether a new cycle was built, in which case the caller must
// insert the machine's snapshot as a new record.
func Load(userID int, module string, rec *model.ProgressRecord, qs []model.Question, rng *rand.Rand) (m *Machine, warnings []string, fresh bool, err error) {
	if rec == nil {
		m, err = Build(userID, module, qs, 0, rng)
		return m, nil, true, err
	}
	if rec.Completed {
		m, err = Build(userID, module, qs, rec.Cycle, rng)
		return m, nil, true, err
	}

	m, warnings, err = resume(userID, module, rec, qs)
	return m, warnings, false, err
}

// resume rebuilds in-memory state from a persisted record. Identifiers no
// longer present in the source set are skipped with a warning: the order is
// compacted, the index lists remapped and the current index shifted. Tallies
// are restored from the record, never re-scored.
func resume(userID int, module string, rec *model.ProgressRecord, qs []model.Question) (*Machine, []string, error) {
	byID := make(map[string]model.Question, len(qs))
	for _, q := range qs {
		byID[q.ID.String()] = q
	}

	var warnings []string
	order := make([]string, 0, len(rec.QuestionOrder))
	questions := make(map[string]model.Question, len(rec.QuestionOrder))
	oldToNew := make(map[int]int, len(rec.QuestionOrder))
	droppedBefore := 0

	for oldIdx, id := range rec.QuestionOrder {
		q, ok := byID[id]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("question %s no longer exists, slot %d skipped", id, oldIdx))
			if oldIdx < rec.CurrentIndex {
				droppedBefore++
			}
			continue
		}
		oldToNew[oldIdx] = len(order)
		order = append(order, id)
		questions[id] = q
	}
	if len(order) == 0 {
		return nil, warnings, ErrEmptyPool
	}

	correctIdx := remapIndices(rec.CorrectQuestions, oldToNew)
	incorrectIdx := remapIndices(rec.IncorrectQuestions, oldToNew)

	answers := make(map[string]model.Answer, len(rec.SelectedAnswers))
	targets := knownTargets(questions)
	for id, a := range rec.SelectedAnswers {
		if _, ok := targets[id]; ok {
			answers[id] = a
		}
	}

	m := &Machine{
		userID:       userID,
		module:       module,
		cycle:        rec.Cycle,
		order:        order,
		questions:    questions,
		answers:      answers,
		correctUnits: rec.CorrectAnswersCount,
		correctIdx:   correctIdx,
		incorrectIdx: incorrectIdx,
	}
	m.incorrectUnits = derivedIncorrectUnits(m)

	// The stored index alone cannot distinguish "last answered" from "next
	// unanswered" across all the places it is written, so disambiguate
	// against the answer map: stay on an unanswered question, step past an
	// answered one. Stepping past the final question instead resumes in the
	// submitted phase so finalize remains reachable.
	idx := rec.CurrentIndex - droppedBefore
	if idx < 0 {
		idx = 0
	}
	if idx > len(order)-1 {
		idx = len(order) - 1
	}
	m.idx = idx
	m.phase = PhaseUnanswered
	if m.fullyAnswered(questions[order[idx]]) && answeredIndex(m, idx) {
		if idx < len(order)-1 {
			m.idx = idx + 1
		} else {
			m.phase = PhaseSubmitted
		}
	}

	return m, warnings, nil
}

// remapIndices translates old-order indices to compacted-order indices,
// dropping entries whose slot disappeared.
func remapIndices(old []int, oldToNew map[int]int) []int {
	out := make([]int, 0, len(old))
	for _, i := range old {
		if n, ok := oldToNew[i]; ok {
			out = append(out, n)
		}
	}
	return out
}

// answeredIndex reports whether idx appears in either graded index list.
// A question can have a full answer map entry yet no tally entry when the
// user selected values but never submitted; such a question is re-presented.
func answeredIndex(m *Machine, idx int) bool {
	for _, i := range m.correctIdx {
		if i == idx {
			return true
		}
	}
	for _, i := range m.incorrectIdx {
		if i == idx {
			return true
		}
	}
	return false
}

// derivedIncorrectUnits rebuilds the unserialized incorrect tally: the unit
// counts of all graded questions minus the persisted correct count.
func derivedIncorrectUnits(m *Machine) int {
	total := 0
	for _, i := range m.correctIdx {
		total += unitCount(m.questions[m.order[i]])
	}
	for _, i := range m.incorrectIdx {
		total += unitCount(m.questions[m.order[i]])
	}
	n := total - m.correctUnits
	if n < 0 {
		return 0
	}
	return n
}

// knownTargets collects every answerable identifier (question ids and
// sub-item ids) of the kept questions.
func knownTargets(questions map[string]model.Question) map[string]struct{} {
	out := make(map[string]struct{}, len(questions))
	for id, q := range questions {
		out[id] = struct{}{}
		for _, sub := range q.SubItems {
			out[sub.ID.String()] = struct{}{}
		}
	}
	return out
}
