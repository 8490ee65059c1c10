package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"assessprep-service/internal/domain"
	"assessprep-service/internal/grading"
	"assessprep-service/internal/quiz"
	"assessprep-service/internal/session"
)

// SessionRepository abstracts how session engines are stored and persisted
// (in-memory, Redis, etc). Persist is called after every mutation with the
// full snapshot so a client reload can resume the attempt.
type SessionRepository interface {
	GetOrCreate(ctx context.Context, sessionID string) (*session.Engine, error)
	Get(ctx context.Context, sessionID string) (*session.Engine, bool, error)
	Persist(ctx context.Context, sessionID string, state domain.SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error)
}

// QuizSaver stores uploaded or generated quizzes so they can be opened
// like any other quiz.
type QuizSaver interface {
	SaveQuiz(ctx context.Context, cfg domain.QuizConfig) error
}

// Grader is the external text-completion collaborator. Any method may
// fail; failures leave questions ungraded and are surfaced to the caller
// for retry.
type Grader interface {
	GenerateQuiz(ctx context.Context, req grading.GenerateRequest) (domain.QuizConfig, error)
	EvaluateAnswer(ctx context.Context, item grading.EvalItem, appealComment string) (domain.Evaluation, error)
	EvaluateBatch(ctx context.Context, items []grading.EvalItem) (map[string]domain.Evaluation, error)
}

// SessionService contains the quiz-taking use cases: opening and resuming
// sessions, driving the engine, grading and generation.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	saver    QuizSaver
	grader   Grader
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository, saver QuizSaver, grader Grader) *SessionService {
	return &SessionService{sessions: sessions, quizzes: quizzes, saver: saver, grader: grader}
}

// Open loads the quiz into a new or resumed session. A persisted session
// that already holds this quiz resumes exactly where it left off (last
// ticked timer values); anything else loads the config fresh.
func (s *SessionService) Open(ctx context.Context, sessionID, quizID string) (domain.SessionState, error) {
	eng, err := s.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}

	if cfg := eng.Config(); cfg != nil && cfg.ID == quizID {
		return eng.Snapshot(), nil
	}

	cfg, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionState{}, err
	}
	eng.SetConfig(cfg)
	return s.persist(ctx, sessionID, eng)
}

// Engine exposes the live engine for transport-level concerns
// (subscriptions, the tick driver).
func (s *SessionService) Engine(ctx context.Context, sessionID string) (*session.Engine, error) {
	eng, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return eng, nil
}

func (s *SessionService) Start(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		eng.StartQuiz()
		return nil
	})
}

func (s *SessionService) Answer(ctx context.Context, sessionID, questionID string, values []string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		return eng.AnswerQuestion(questionID, values)
	})
}

func (s *SessionService) ToggleFlag(ctx context.Context, sessionID, questionID string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		return eng.ToggleFlag(questionID)
	})
}

func (s *SessionService) Jump(ctx context.Context, sessionID string, index int) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		return eng.JumpToQuestion(index)
	})
}

func (s *SessionService) Next(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		eng.NextQuestion()
		return nil
	})
}

func (s *SessionService) Prev(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		eng.PrevQuestion()
		return nil
	})
}

func (s *SessionService) Finish(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		eng.FinishQuiz()
		return nil
	})
}

func (s *SessionService) Reset(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		eng.ResetQuiz()
		return nil
	})
}

// Clear drops the session entirely, returning the client to the loader
// screen.
func (s *SessionService) Clear(ctx context.Context, sessionID string) error {
	eng, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	eng.ClearState()
	return s.sessions.Delete(ctx, sessionID)
}

// Tick applies one second of elapsed time. The engine itself decides
// whether anything happens (no-op outside active).
func (s *SessionService) Tick(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.mutate(ctx, sessionID, func(eng *session.Engine) error {
		eng.Tick()
		return nil
	})
}

// Results derives the score summary for display; nothing is stored.
func (s *SessionService) Results(ctx context.Context, sessionID string) (domain.ScoreSummary, error) {
	eng, err := s.Engine(ctx, sessionID)
	if err != nil {
		return domain.ScoreSummary{}, err
	}
	return eng.Results(), nil
}

// GradeAll batch-grades every answered text question that has no
// evaluation yet. A total grader failure leaves everything ungraded and
// returns the error so the caller can retry; a partial response grades
// what came back.
func (s *SessionService) GradeAll(ctx context.Context, sessionID string) (domain.SessionState, error) {
	eng, err := s.Engine(ctx, sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}

	st := eng.Snapshot()
	if st.Config == nil {
		return domain.SessionState{}, domain.ErrNoQuizLoaded
	}

	var items []grading.EvalItem
	for _, q := range st.Config.Questions {
		if q.Type != domain.TextQuestion {
			continue
		}
		if _, graded := st.Evaluations[q.ID]; graded {
			continue
		}
		answer := ""
		if vals := st.Answers[q.ID]; len(vals) > 0 {
			answer = vals[0]
		}
		if answer == "" {
			continue
		}
		items = append(items, grading.EvalItem{
			Question:       q,
			SectionContent: sectionContent(st.Config, q),
			Answer:         answer,
		})
	}
	if len(items) == 0 {
		return st, nil
	}

	evals, err := s.grader.EvaluateBatch(ctx, items)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("grade session: %w", err)
	}
	for id, ev := range evals {
		if err := eng.RecordEvaluation(id, ev); err != nil {
			return domain.SessionState{}, err
		}
	}
	return s.persist(ctx, sessionID, eng)
}

// GradeOne re-grades a single text question, optionally with the
// student's appeal comment as added context.
func (s *SessionService) GradeOne(ctx context.Context, sessionID, questionID, appealComment string) (domain.SessionState, error) {
	eng, err := s.Engine(ctx, sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}

	st := eng.Snapshot()
	if st.Config == nil {
		return domain.SessionState{}, domain.ErrNoQuizLoaded
	}
	q, ok := st.Config.QuestionByID(questionID)
	if !ok {
		return domain.SessionState{}, domain.ErrQuestionNotFound
	}
	if q.Type != domain.TextQuestion {
		return domain.SessionState{}, domain.ErrNotTextQuestion
	}
	answer := ""
	if vals := st.Answers[q.ID]; len(vals) > 0 {
		answer = vals[0]
	}

	ev, err := s.grader.EvaluateAnswer(ctx, grading.EvalItem{
		Question:       q,
		SectionContent: sectionContent(st.Config, q),
		Answer:         answer,
	}, appealComment)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("grade question %s: %w", questionID, err)
	}
	if err := eng.RecordEvaluation(questionID, ev); err != nil {
		return domain.SessionState{}, err
	}
	return s.persist(ctx, sessionID, eng)
}

// Generate asks the collaborator for a quiz and stores the validated
// result so it can be opened like an uploaded one.
func (s *SessionService) Generate(ctx context.Context, req grading.GenerateRequest) (domain.QuizConfig, error) {
	cfg, err := s.grader.GenerateQuiz(ctx, req)
	if err != nil {
		return domain.QuizConfig{}, err
	}
	if err := s.saver.SaveQuiz(ctx, cfg); err != nil {
		return domain.QuizConfig{}, fmt.Errorf("save generated quiz: %w", err)
	}
	return cfg, nil
}

// Upload validates and stores a user-provided quiz definition. Malformed
// definitions are rejected with a descriptive error and nothing is stored.
func (s *SessionService) Upload(ctx context.Context, raw []byte) (domain.QuizConfig, error) {
	cfg, err := quiz.Parse(raw)
	if err != nil {
		return domain.QuizConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "quiz-" + uuid.NewString()
	}
	if err := s.saver.SaveQuiz(ctx, cfg); err != nil {
		return domain.QuizConfig{}, fmt.Errorf("save uploaded quiz: %w", err)
	}
	return cfg, nil
}

func (s *SessionService) mutate(ctx context.Context, sessionID string, op func(*session.Engine) error) (domain.SessionState, error) {
	eng, err := s.Engine(ctx, sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	if err := op(eng); err != nil {
		return domain.SessionState{}, err
	}
	return s.persist(ctx, sessionID, eng)
}

func (s *SessionService) persist(ctx context.Context, sessionID string, eng *session.Engine) (domain.SessionState, error) {
	st := eng.Snapshot()
	if err := s.sessions.Persist(ctx, sessionID, st); err != nil {
		return domain.SessionState{}, fmt.Errorf("persist session: %w", err)
	}
	return st, nil
}

func sectionContent(cfg *domain.QuizConfig, q domain.Question) string {
	if q.SectionID == "" {
		return ""
	}
	if sec, ok := cfg.SectionByID(q.SectionID); ok {
		return sec.Content
	}
	return ""
}
