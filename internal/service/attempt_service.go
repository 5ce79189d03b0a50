package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/acefrcr/acefrcr-backend/internal/model"
	"github.com/acefrcr/acefrcr-backend/internal/repository"
	"github.com/acefrcr/acefrcr-backend/internal/session"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// ErrNoActiveAttempt is returned when a transition targets a module the user
// has no attempt for.
var ErrNoActiveAttempt = errors.New("no attempt for this module; start one first")

// QuestionSource provides the question set an attempt is built from.
type QuestionSource interface {
	ListByModule(ctx context.Context, module string) ([]model.Question, error)
}

// ProgressStore is the authoritative persistence layer for attempt progress.
type ProgressStore interface {
	Insert(ctx context.Context, rec *model.ProgressRecord) error
	FetchLatest(ctx context.Context, userID int, module string) (*model.ProgressRecord, error)
	ListByUser(ctx context.Context, userID int) ([]model.AttemptHistoryEntry, error)
}

// AttemptState is the client-facing view of an attempt.
type AttemptState struct {
	Module              string                  `json:"module"`
	Cycle               int                     `json:"cycle"`
	Phase               session.Phase           `json:"phase"`
	CurrentIndex        int                     `json:"currentIndex"`
	TotalQuestions      int                     `json:"totalQuestions"`
	SelectedAnswers     map[string]model.Answer `json:"selectedAnswers"`
	CorrectAnswersCount int                     `json:"correctAnswersCount"`
	CorrectQuestions    []int                   `json:"correctQuestions"`
	IncorrectQuestions  []int                   `json:"incorrectQuestions"`
	Completed           bool                    `json:"completed"`
	Question            *model.QuestionForUser  `json:"question,omitempty"`
}

// TransitionOutcome wraps a transition's result together with the refreshed
// state. Persisted is false when the snapshot could not be enqueued; the
// in-memory transition stands either way and a later write carries the full
// state forward.
type TransitionOutcome struct {
	Result    *session.SubmitResult `json:"result,omitempty"`
	Summary   *session.Summary      `json:"summary,omitempty"`
	Persisted bool                  `json:"persisted"`
	State     *AttemptState         `json:"state"`
}

// attempt pairs a machine with the lock serializing its transitions.
type attempt struct {
	mu      sync.Mutex
	machine *session.Machine
}

// AttemptService orchestrates attempt lifecycles: it keeps live machines in
// memory, loads or builds cycles from the authoritative store, and mirrors
// every transition through the async persistence queue.
type AttemptService struct {
	questions QuestionSource
	store     ProgressStore
	mirror    ProgressMirror

	mu       sync.Mutex
	attempts map[string]*attempt

	// newRand supplies the shuffle source for new cycles. Nil values fall
	// through to a time-seeded source; tests inject a fixed seed.
	newRand func() *rand.Rand
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(questions QuestionSource, store ProgressStore, mirror ProgressMirror) *AttemptService {
	return &AttemptService{
		questions: questions,
		store:     store,
		mirror:    mirror,
		attempts:  make(map[string]*attempt),
		newRand:   func() *rand.Rand { return nil },
	}
}

func attemptKey(userID int, module string) string {
	return fmt.Sprintf("%d:%s", userID, module)
}

func (s *AttemptService) attempt(userID int, module string) *attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(userID, module)
	att, ok := s.attempts[key]
	if !ok {
		att = &attempt{}
		s.attempts[key] = att
	}
	return att
}

// Start opens an attempt on a module: an incomplete cycle resumes, a
// completed or absent one starts the next cycle with a fresh shuffle. Fresh
// cycles are inserted synchronously so the cycle row exists before any async
// update can reference it.
func (s *AttemptService) Start(ctx context.Context, userID int, module string) (*AttemptState, []string, error) {
	att := s.attempt(userID, module)
	att.mu.Lock()
	defer att.mu.Unlock()

	if att.machine != nil && !att.machine.Completed() {
		return s.state(att.machine), nil, nil
	}

	qs, err := s.questions.ListByModule(ctx, module)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}

	// A finalized machine still in memory outruns the async queue; its cycle
	// number is at least as current as anything PostgreSQL has.
	var rec *model.ProgressRecord
	if att.machine != nil && att.machine.Completed() {
		snap := att.machine.Snapshot()
		rec = &snap
	} else {
		rec, err = s.store.FetchLatest(ctx, userID, module)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("fetch latest progress: %w", err)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			rec = nil
		}
	}

	m, warnings, fresh, err := session.Load(userID, module, rec, qs, s.newRand())
	if err != nil {
		return nil, nil, err
	}

	if fresh {
		snap := m.Snapshot()
		if err := s.store.Insert(ctx, &snap); err != nil {
			if !errors.Is(err, repository.ErrDuplicateCycle) {
				return nil, nil, fmt.Errorf("insert cycle: %w", err)
			}
			// Another request created the cycle first; adopt its record.
			rec, ferr := s.store.FetchLatest(ctx, userID, module)
			if ferr != nil {
				return nil, nil, fmt.Errorf("refetch after duplicate cycle: %w", ferr)
			}
			m, warnings, _, err = session.Load(userID, module, rec, qs, s.newRand())
			if err != nil {
				return nil, nil, err
			}
		} else if cerr := s.mirror.Cache(ctx, s.envelope(m)); cerr != nil {
			log.Warn().Err(cerr).Int("user_id", userID).Str("module", module).
				Msg("failed to warm progress snapshot cache")
		}
	}

	for _, w := range warnings {
		log.Warn().Int("user_id", userID).Str("module", module).Int("cycle", m.Cycle()).
			Msg(w)
	}

	att.machine = m
	return s.state(m), warnings, nil
}

// Select records an answer value for the current question. A local-only
// update: nothing is persisted until submit.
func (s *AttemptService) Select(ctx context.Context, userID int, module, targetID string, value model.Answer) (*AttemptState, error) {
	att := s.attempt(userID, module)
	att.mu.Lock()
	defer att.mu.Unlock()

	if att.machine == nil {
		return nil, ErrNoActiveAttempt
	}
	if err := att.machine.Select(targetID, value); err != nil {
		return nil, err
	}
	return s.state(att.machine), nil
}

// Submit grades the current question and mirrors the updated snapshot.
func (s *AttemptService) Submit(ctx context.Context, userID int, module string) (*TransitionOutcome, error) {
	att := s.attempt(userID, module)
	att.mu.Lock()
	defer att.mu.Unlock()

	if att.machine == nil {
		return nil, ErrNoActiveAttempt
	}
	result, err := att.machine.Submit()
	if err != nil {
		return nil, err
	}

	return &TransitionOutcome{
		Result:    result,
		Persisted: s.persist(ctx, att.machine),
		State:     s.state(att.machine),
	}, nil
}

// Next advances to the following question and mirrors the updated snapshot.
func (s *AttemptService) Next(ctx context.Context, userID int, module string) (*TransitionOutcome, error) {
	att := s.attempt(userID, module)
	att.mu.Lock()
	defer att.mu.Unlock()

	if att.machine == nil {
		return nil, ErrNoActiveAttempt
	}
	if err := att.machine.Next(); err != nil {
		return nil, err
	}

	return &TransitionOutcome{
		Persisted: s.persist(ctx, att.machine),
		State:     s.state(att.machine),
	}, nil
}

// Finalize completes the cycle, returning the summary computed from the
// accumulated tallies. The finalized machine stays in memory so a restart
// request sees the completed cycle even before the queue drains.
func (s *AttemptService) Finalize(ctx context.Context, userID int, module string) (*TransitionOutcome, error) {
	att := s.attempt(userID, module)
	att.mu.Lock()
	defer att.mu.Unlock()

	if att.machine == nil {
		return nil, ErrNoActiveAttempt
	}
	summary, err := att.machine.Finalize()
	if err != nil {
		return nil, err
	}

	return &TransitionOutcome{
		Summary:   summary,
		Persisted: s.persist(ctx, att.machine),
		State:     s.state(att.machine),
	}, nil
}

// GetState returns the current attempt view without mutating anything. A live
// machine wins; otherwise the snapshot cache is consulted, and on a miss the
// authoritative store is read and the cache healed.
func (s *AttemptService) GetState(ctx context.Context, userID int, module string) (*AttemptState, error) {
	att := s.attempt(userID, module)
	att.mu.Lock()
	defer att.mu.Unlock()

	if att.machine != nil {
		return s.state(att.machine), nil
	}

	rec, err := s.mirror.Latest(ctx, userID, module)
	if err != nil {
		if !errors.Is(err, ErrSnapshotMiss) {
			log.Warn().Err(err).Int("user_id", userID).Str("module", module).
				Msg("snapshot cache read failed, falling back to store")
		}
		rec, err = s.store.FetchLatest(ctx, userID, module)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveAttempt
		}
		if err != nil {
			return nil, fmt.Errorf("fetch latest progress: %w", err)
		}
		env := &model.ProgressEnvelope{UserID: userID, Module: module, Record: *rec}
		if cerr := s.mirror.Cache(ctx, env); cerr != nil {
			log.Warn().Err(cerr).Int("user_id", userID).Str("module", module).
				Msg("failed to heal progress snapshot cache")
		}
	}

	return stateFromRecord(module, rec), nil
}

// History lists per-cycle summaries across every module the user attempted.
func (s *AttemptService) History(ctx context.Context, userID int) ([]model.AttemptHistoryEntry, error) {
	return s.store.ListByUser(ctx, userID)
}

// persist enqueues the machine's snapshot; a failure is logged and reported,
// never propagated. The in-memory state is already ahead and the next
// successful enqueue carries the full cumulative snapshot.
func (s *AttemptService) persist(ctx context.Context, m *session.Machine) bool {
	if err := s.mirror.Enqueue(ctx, s.envelope(m)); err != nil {
		log.Error().Err(err).Int("user_id", m.UserID()).Str("module", m.Module()).
			Int("cycle", m.Cycle()).Msg("failed to enqueue progress snapshot")
		return false
	}
	return true
}

func (s *AttemptService) envelope(m *session.Machine) *model.ProgressEnvelope {
	return &model.ProgressEnvelope{
		UserID: m.UserID(),
		Module: m.Module(),
		Record: m.Snapshot(),
	}
}

// state builds the client view from a live machine, including the current
// answer-stripped question.
func (s *AttemptService) state(m *session.Machine) *AttemptState {
	snap := m.Snapshot()
	st := stateFromRecord(m.Module(), &snap)
	st.Phase = m.Phase()
	if q, ok := m.Current(); ok && !m.Completed() {
		fu := q.ForUser()
		st.Question = &fu
	}
	return st
}

// stateFromRecord builds the client view from a bare snapshot. Without a live
// machine the phase is coarse: finalized when completed, unanswered otherwise.
func stateFromRecord(module string, rec *model.ProgressRecord) *AttemptState {
	phase := session.PhaseUnanswered
	if rec.Completed {
		phase = session.PhaseFinalized
	}
	answers := rec.SelectedAnswers
	if answers == nil {
		answers = make(map[string]model.Answer)
	}
	return &AttemptState{
		Module:              module,
		Cycle:               rec.Cycle,
		Phase:               phase,
		CurrentIndex:        rec.CurrentIndex,
		TotalQuestions:      len(rec.QuestionOrder),
		SelectedAnswers:     answers,
		CorrectAnswersCount: rec.CorrectAnswersCount,
		CorrectQuestions:    rec.CorrectQuestions,
		IncorrectQuestions:  rec.IncorrectQuestions,
		Completed:           rec.Completed,
	}
}
