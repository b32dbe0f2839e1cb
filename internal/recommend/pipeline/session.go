package pipeline

import (
	"sync"
	"sync/atomic"

	"quiz-recommender/internal/models"

	"github.com/google/uuid"
)

// Session holds what used to be ambient UI state: the answers, the live filter
// controls and the last rendered outcome. Callers mutate it between runs and pass
// it to every pipeline call. Each Run takes a new generation; only the newest
// generation may publish its outcome.
type Session struct {
	ID             string
	Answers        []models.QuizAnswer
	Controls       models.LiveControls
	ManualLocation string

	generation atomic.Uint64

	mu   sync.Mutex
	last *Outcome
}

func NewSession(answers []models.QuizAnswer, controls models.LiveControls) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Answers:  answers,
		Controls: controls,
	}
}

// SessionFromPreferences restores a session from the persisted preferences slot.
func SessionFromPreferences(prefs models.Preferences) *Session {
	return NewSession(prefs.Answers, prefs.Controls)
}

func (s *Session) Preferences() models.Preferences {
	return models.Preferences{Answers: s.Answers, Controls: s.Controls}
}

// Generation is the most recently started run.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

func (s *Session) begin() uint64 {
	return s.generation.Add(1)
}

// publish stores the outcome unless a newer run has started since gen began.
func (s *Session) publish(gen uint64, out *Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation.Load() {
		return false
	}
	if s.last != nil && s.last.Generation > gen {
		return false
	}
	s.last = out
	return true
}

// Last is the most recently published outcome, or nil before the first run.
func (s *Session) Last() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) replaceResults(out *Outcome, results []models.RankedResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == out {
		s.last.Results = results
	}
}
