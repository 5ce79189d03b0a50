package session

import (
	"errors"
	"math/rand"
	"time"

	"github.com/acefrcr/acefrcr-backend/internal/model"
)

// ErrEmptyPool is returned when no eligible question remains after filtering;
// an attempt must not start with an empty exam.
var ErrEmptyPool = errors.New("no eligible questions for module")

// Eligible reports whether a question is well-formed enough to enter the
// shuffle pool. Malformed entries (wrong sub-item count, missing or unknown
// correct labels) are silently excluded rather than breaking the attempt.
func Eligible(q model.Question) bool {
	switch q.Type {
	case model.QuestionTypeSingle:
		return len(q.Options) >= 2 &&
			len(q.CorrectOptions) == 1 &&
			allInOptions(q.CorrectOptions, q.Options)
	case model.QuestionTypeMulti:
		return len(q.Options) >= 2 &&
			len(q.CorrectOptions) >= 1 &&
			allInOptions(q.CorrectOptions, q.Options)
	case model.QuestionTypeCompound:
		return len(q.SubItems) == model.CompoundSubItemCount
	default:
		return false
	}
}

// FilterEligible returns the subset of questions that may enter an attempt.
func FilterEligible(qs []model.Question) []model.Question {
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if Eligible(q) {
			out = append(out, q)
		}
	}
	return out
}

// Build creates a fresh machine for the next cycle: eligible questions are
// shuffled with a uniform permutation and the cycle counter advances past
// prevCycle (0 when no prior cycle exists). rng may be nil outside of tests.
func Build(userID int, module string, qs []model.Question, prevCycle int, rng *rand.Rand) (*Machine, error) {
	pool := FilterEligible(qs)
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	order := make([]string, len(pool))
	questions := make(map[string]model.Question, len(pool))
	for i, q := range pool {
		order[i] = q.ID.String()
		questions[q.ID.String()] = q
	}

	return &Machine{
		userID:    userID,
		module:    module,
		cycle:     prevCycle + 1,
		order:     order,
		questions: questions,
		idx:       0,
		phase:     PhaseUnanswered,
		answers:   make(map[string]model.Answer),
	}, nil
}

func allInOptions(labels, options []string) bool {
	for _, l := range labels {
		found := false
		for _, o := range options {
			if l == o {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
