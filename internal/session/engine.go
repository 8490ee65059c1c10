package session

import (
	"sync"

	"assessprep-service/internal/domain"
)

// Engine is the quiz session state machine. It owns all mutable
// quiz-taking data for one attempt: status, navigation cursor, answers,
// flags, countdown timers and externally supplied evaluations.
//
// The engine is passive: it never schedules its own clock. The host
// (transport layer) invokes Tick at roughly 1 Hz while the session is
// active; Tick is a no-op in any other status. All mutating operations
// are serialized behind a mutex so a single Tick or AnswerQuestion call
// fully applies before any other operation observes the state.
type Engine struct {
	mu sync.RWMutex

	config                *domain.QuizConfig
	status                domain.Status
	currentQuestionIndex  int
	answers               map[string][]string
	flaggedQuestions      []string
	timeRemaining         int
	questionTimeRemaining map[string]int
	questionTimeTaken     map[string]int
	evaluations           map[string]domain.Evaluation

	subscribers map[chan domain.SessionState]struct{}
}

// NewEngine returns an engine in the idle state with no quiz loaded.
func NewEngine() *Engine {
	e := &Engine{
		status:      domain.StatusIdle,
		subscribers: make(map[chan domain.SessionState]struct{}),
	}
	e.resetMapsLocked()
	return e
}

func (e *Engine) resetMapsLocked() {
	e.currentQuestionIndex = 0
	e.answers = make(map[string][]string)
	e.flaggedQuestions = nil
	e.questionTimeRemaining = make(map[string]int)
	e.questionTimeTaken = make(map[string]int)
	e.evaluations = make(map[string]domain.Evaluation)
}

// initTimersLocked seeds the global countdown and per-question countdowns
// from the loaded config. Questions without a time limit get no entry.
func (e *Engine) initTimersLocked() {
	e.timeRemaining = 0
	if e.config == nil {
		return
	}
	e.timeRemaining = e.config.GlobalTimeLimit
	for _, q := range e.config.Questions {
		if q.TimeLimit > 0 {
			e.questionTimeRemaining[q.ID] = q.TimeLimit
		}
	}
}

// SetConfig replaces the quiz wholesale and resets the attempt to intro.
// Previous answers, flags, timers and evaluations are all cleared.
func (e *Engine) SetConfig(cfg domain.QuizConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := cfg
	e.config = &c
	e.status = domain.StatusIntro
	e.resetMapsLocked()
	e.initTimersLocked()
	e.broadcastLocked()
}

// StartQuiz moves the session from intro to active. It is a no-op from
// any other status.
func (e *Engine) StartQuiz() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != domain.StatusIntro {
		return
	}
	e.status = domain.StatusActive
	e.broadcastLocked()
}

// AnswerQuestion replaces (not merges) the recorded answer for a question.
// For choice questions values holds selected option ids; for text
// questions it holds a single free-text element.
//
// A question whose individual timer has expired can no longer be
// answered: the call is silently dropped with no state change. That is a
// policy decision, not a fault, so no error is returned for it.
func (e *Engine) AnswerQuestion(questionID string, values []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return domain.ErrNoQuizLoaded
	}
	if _, ok := e.config.QuestionByID(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	if rem, ok := e.questionTimeRemaining[questionID]; ok && rem <= 0 {
		return nil
	}
	e.answers[questionID] = append([]string(nil), values...)
	e.broadcastLocked()
	return nil
}

// ToggleFlag adds or removes the review marker on a question.
func (e *Engine) ToggleFlag(questionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return domain.ErrNoQuizLoaded
	}
	if _, ok := e.config.QuestionByID(questionID); !ok {
		return domain.ErrQuestionNotFound
	}
	for i, id := range e.flaggedQuestions {
		if id == questionID {
			e.flaggedQuestions = append(e.flaggedQuestions[:i], e.flaggedQuestions[i+1:]...)
			e.broadcastLocked()
			return nil
		}
	}
	e.flaggedQuestions = append(e.flaggedQuestions, questionID)
	e.broadcastLocked()
	return nil
}

// JumpToQuestion moves the cursor directly to index. Out-of-range indices
// are rejected rather than clamped.
func (e *Engine) JumpToQuestion(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return domain.ErrNoQuizLoaded
	}
	if index < 0 || index >= len(e.config.Questions) {
		return domain.ErrIndexOutOfRange
	}
	e.currentQuestionIndex = index
	e.broadcastLocked()
	return nil
}

// NextQuestion advances the cursor; advancing past the last question
// completes the attempt.
func (e *Engine) NextQuestion() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return
	}
	if e.currentQuestionIndex < len(e.config.Questions)-1 {
		e.currentQuestionIndex++
	} else {
		e.status = domain.StatusCompleted
	}
	e.broadcastLocked()
}

// PrevQuestion moves the cursor back one question, stopping at 0. Review
// of past questions is always allowed; re-answering a timed-out question
// is still blocked by AnswerQuestion's guard.
func (e *Engine) PrevQuestion() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentQuestionIndex > 0 {
		e.currentQuestionIndex--
		e.broadcastLocked()
	}
}

// Tick applies one logical second of elapsed time. It is a no-op unless
// the session is active. Per call: the global countdown decrements first
// (reaching zero completes the attempt and suppresses the remaining
// effects for that tick), then dwell time accrues on the currently
// displayed question, then that question's own countdown decrements if it
// has one. Reaching zero on a per-question timer disables further answers
// via AnswerQuestion's guard; it does not force navigation.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != domain.StatusActive || e.config == nil {
		return
	}

	if e.config.GlobalTimeLimit > 0 && e.timeRemaining > 0 {
		e.timeRemaining--
		if e.timeRemaining == 0 {
			e.status = domain.StatusCompleted
			e.broadcastLocked()
			return
		}
	}

	if e.currentQuestionIndex >= len(e.config.Questions) {
		return
	}
	q := e.config.Questions[e.currentQuestionIndex]
	e.questionTimeTaken[q.ID]++

	if q.TimeLimit > 0 {
		if rem, ok := e.questionTimeRemaining[q.ID]; ok && rem > 0 {
			e.questionTimeRemaining[q.ID] = rem - 1
		}
	}
	e.broadcastLocked()
}

// ResetQuiz returns to intro for a fresh attempt at the same quiz:
// answers, flags and timers reset exactly as SetConfig does, but the
// config is kept. No-op if no quiz is loaded.
func (e *Engine) ResetQuiz() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return
	}
	e.status = domain.StatusIntro
	e.resetMapsLocked()
	e.initTimersLocked()
	e.broadcastLocked()
}

// ClearState unconditionally drops everything, config included, returning
// the engine to idle.
func (e *Engine) ClearState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = nil
	e.status = domain.StatusIdle
	e.resetMapsLocked()
	e.timeRemaining = 0
	e.broadcastLocked()
}

// FinishQuiz forces completion immediately regardless of position
// (the manual "end test" action).
func (e *Engine) FinishQuiz() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return
	}
	e.status = domain.StatusCompleted
	e.broadcastLocked()
}

// RecordEvaluation fills the grading slot for a text question. Until a
// slot is filled the question is observably "ungraded", which scoring
// treats as zero.
func (e *Engine) RecordEvaluation(questionID string, ev domain.Evaluation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return domain.ErrNoQuizLoaded
	}
	q, ok := e.config.QuestionByID(questionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if q.Type != domain.TextQuestion {
		return domain.ErrNotTextQuestion
	}
	e.evaluations[questionID] = ev
	e.broadcastLocked()
	return nil
}

// Status returns the current lifecycle phase.
func (e *Engine) Status() domain.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Config returns the loaded quiz, or nil.
func (e *Engine) Config() *domain.QuizConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// Snapshot returns a deep copy of the full session state, suitable for
// persistence or transport.
func (e *Engine) Snapshot() domain.SessionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() domain.SessionState {
	st := domain.SessionState{
		Config:                e.config,
		Status:                e.status,
		CurrentQuestionIndex:  e.currentQuestionIndex,
		Answers:               make(map[string][]string, len(e.answers)),
		FlaggedQuestions:      append([]string(nil), e.flaggedQuestions...),
		TimeRemaining:         e.timeRemaining,
		QuestionTimeRemaining: make(map[string]int, len(e.questionTimeRemaining)),
		QuestionTimeTaken:     make(map[string]int, len(e.questionTimeTaken)),
		Evaluations:           make(map[string]domain.Evaluation, len(e.evaluations)),
	}
	for id, vals := range e.answers {
		st.Answers[id] = append([]string(nil), vals...)
	}
	for id, rem := range e.questionTimeRemaining {
		st.QuestionTimeRemaining[id] = rem
	}
	for id, taken := range e.questionTimeTaken {
		st.QuestionTimeTaken[id] = taken
	}
	for id, ev := range e.evaluations {
		st.Evaluations[id] = ev
	}
	return st
}

// Restore rehydrates the engine from a persisted snapshot, resuming from
// the last ticked value (no wall-clock catch-up across reloads).
func (e *Engine) Restore(st domain.SessionState) error {
	if !st.Status.Valid() {
		return domain.ErrInvalidConfig
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = st.Config
	e.status = st.Status
	e.resetMapsLocked()
	e.currentQuestionIndex = st.CurrentQuestionIndex
	e.timeRemaining = st.TimeRemaining
	for id, vals := range st.Answers {
		e.answers[id] = append([]string(nil), vals...)
	}
	e.flaggedQuestions = append([]string(nil), st.FlaggedQuestions...)
	for id, rem := range st.QuestionTimeRemaining {
		e.questionTimeRemaining[id] = rem
	}
	for id, taken := range st.QuestionTimeTaken {
		e.questionTimeTaken[id] = taken
	}
	for id, ev := range st.Evaluations {
		e.evaluations[id] = ev
	}
	e.broadcastLocked()
	return nil
}

// Results derives the score summary from the current state. Nothing is
// cached; callers get a fresh computation each time.
func (e *Engine) Results() domain.ScoreSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Score(e.config, e.snapshotLocked())
}

// Subscribe returns a channel that receives a state snapshot after every
// mutation. The caller must invoke the returned cancel function to avoid
// leaks.
func (e *Engine) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	initial := e.snapshotLocked()
	e.mu.Unlock()

	ch <- initial

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcastLocked() {
	if len(e.subscribers) == 0 {
		return
	}
	st := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- st:
		default:
			// Drop the stale snapshot so a slow client never blocks a tick.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}
