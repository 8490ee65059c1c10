package session

import (
	"errors"
	"testing"

	"assessprep-service/internal/domain"
)

func sampleConfig() domain.QuizConfig {
	return domain.QuizConfig{
		ID:              "quiz-1",
		Title:           "Sample",
		GlobalTimeLimit: 60,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Type: domain.SingleChoice,
				Options: []domain.Option{
					{ID: "opt1", IsCorrect: true},
					{ID: "opt2"},
				},
				Points: 1,
			},
			{
				ID:        "q2",
				Type:      domain.SingleChoice,
				TimeLimit: 2,
				Options: []domain.Option{
					{ID: "opt3", IsCorrect: true},
					{ID: "opt4"},
				},
				Points: 2,
			},
			{
				ID:     "q3",
				Type:   domain.TextQuestion,
				Points: 3,
			},
		},
	}
}

func TestSetConfigResetsSession(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())

	st := e.Snapshot()
	if st.Status != domain.StatusIntro {
		t.Fatalf("expected intro, got %s", st.Status)
	}
	if st.CurrentQuestionIndex != 0 {
		t.Fatalf("expected cursor at 0, got %d", st.CurrentQuestionIndex)
	}
	if len(st.Answers) != 0 || len(st.FlaggedQuestions) != 0 {
		t.Fatalf("expected empty answers and flags, got %+v / %+v", st.Answers, st.FlaggedQuestions)
	}
	if st.TimeRemaining != 60 {
		t.Fatalf("expected global timer 60, got %d", st.TimeRemaining)
	}
	if rem := st.QuestionTimeRemaining["q2"]; rem != 2 {
		t.Fatalf("expected q2 timer 2, got %d", rem)
	}
	if _, ok := st.QuestionTimeRemaining["q1"]; ok {
		t.Fatalf("untimed question must not get a countdown entry")
	}
}

func TestSetConfigClearsPreviousEvaluations(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	if err := e.RecordEvaluation("q3", domain.Evaluation{Score: 2, MaxScore: 3}); err != nil {
		t.Fatalf("record evaluation: %v", err)
	}

	e.SetConfig(sampleConfig())
	if len(e.Snapshot().Evaluations) != 0 {
		t.Fatalf("expected evaluations cleared on new config")
	}
}

func TestStartQuizOnlyFromIntro(t *testing.T) {
	e := NewEngine()
	e.StartQuiz()
	if e.Status() != domain.StatusIdle {
		t.Fatalf("start from idle must be a no-op, got %s", e.Status())
	}

	e.SetConfig(sampleConfig())
	e.StartQuiz()
	if e.Status() != domain.StatusActive {
		t.Fatalf("expected active, got %s", e.Status())
	}

	e.FinishQuiz()
	e.StartQuiz()
	if e.Status() != domain.StatusCompleted {
		t.Fatalf("start from completed must be a no-op, got %s", e.Status())
	}
}

func TestAnswerGuardBlocksExpiredQuestion(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()

	if err := e.AnswerQuestion("q2", []string{"opt3"}); err != nil {
		t.Fatalf("answer before expiry: %v", err)
	}

	// Burn q2's two seconds.
	if err := e.JumpToQuestion(1); err != nil {
		t.Fatalf("jump: %v", err)
	}
	e.Tick()
	e.Tick()

	if err := e.AnswerQuestion("q2", []string{"opt4"}); err != nil {
		t.Fatalf("expired answer must be silently dropped, got %v", err)
	}
	st := e.Snapshot()
	if got := st.Answers["q2"]; len(got) != 1 || got[0] != "opt3" {
		t.Fatalf("expired answer must not change state, got %v", got)
	}
	if rem := st.QuestionTimeRemaining["q2"]; rem != 0 {
		t.Fatalf("expected q2 timer exhausted, got %d", rem)
	}
}

func TestAnswerReplacesNotMerges(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()

	_ = e.AnswerQuestion("q1", []string{"opt1"})
	_ = e.AnswerQuestion("q1", []string{"opt2"})

	if got := e.Snapshot().Answers["q1"]; len(got) != 1 || got[0] != "opt2" {
		t.Fatalf("expected replacement answer [opt2], got %v", got)
	}
}

func TestAnswerUnknownQuestion(t *testing.T) {
	e := NewEngine()
	if err := e.AnswerQuestion("q1", nil); !errors.Is(err, domain.ErrNoQuizLoaded) {
		t.Fatalf("expected ErrNoQuizLoaded, got %v", err)
	}
	e.SetConfig(sampleConfig())
	if err := e.AnswerQuestion("nope", nil); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestNavigationTerminus(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()

	for i := 0; i < len(sampleConfig().Questions); i++ {
		e.NextQuestion()
	}
	if e.Status() != domain.StatusCompleted {
		t.Fatalf("expected completed after advancing past last question, got %s", e.Status())
	}
}

func TestPrevQuestionStopsAtZero(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()

	e.PrevQuestion()
	if got := e.Snapshot().CurrentQuestionIndex; got != 0 {
		t.Fatalf("expected cursor pinned at 0, got %d", got)
	}
	e.NextQuestion()
	e.PrevQuestion()
	if got := e.Snapshot().CurrentQuestionIndex; got != 0 {
		t.Fatalf("expected cursor back at 0, got %d", got)
	}
}

func TestJumpRejectsOutOfRange(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())

	if err := e.JumpToQuestion(-1); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected rejection for -1, got %v", err)
	}
	if err := e.JumpToQuestion(3); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected rejection for len(questions), got %v", err)
	}
	if err := e.JumpToQuestion(2); err != nil {
		t.Fatalf("expected in-range jump to succeed, got %v", err)
	}
	if got := e.Snapshot().CurrentQuestionIndex; got != 2 {
		t.Fatalf("expected cursor at 2, got %d", got)
	}
}

func TestTickDecrementsOneSecond(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()

	e.Tick()

	st := e.Snapshot()
	if st.TimeRemaining != 59 {
		t.Fatalf("expected 59 remaining, got %d", st.TimeRemaining)
	}
	if st.QuestionTimeTaken["q1"] != 1 {
		t.Fatalf("expected 1s dwell on q1, got %d", st.QuestionTimeTaken["q1"])
	}
	if st.QuestionTimeTaken["q2"] != 0 {
		t.Fatalf("dwell must only accrue on the displayed question")
	}
}

func TestTickNoOpOutsideActive(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())

	e.Tick()
	if got := e.Snapshot().TimeRemaining; got != 60 {
		t.Fatalf("tick in intro must be a no-op, got %d remaining", got)
	}
}

func TestGlobalTimeoutCompletesQuiz(t *testing.T) {
	cfg := sampleConfig()
	cfg.GlobalTimeLimit = 1

	e := NewEngine()
	e.SetConfig(cfg)
	e.StartQuiz()
	e.Tick()

	if e.Status() != domain.StatusCompleted {
		t.Fatalf("expected completed on global timeout, got %s", e.Status())
	}
	// The terminal tick suppresses dwell accrual.
	if got := e.Snapshot().QuestionTimeTaken["q1"]; got != 0 {
		t.Fatalf("expected no dwell on the timeout tick, got %d", got)
	}
}

func TestQuestionTimeoutDoesNotForceNavigation(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()
	if err := e.JumpToQuestion(1); err != nil {
		t.Fatalf("jump: %v", err)
	}

	e.Tick()
	e.Tick()
	e.Tick() // past expiry; timer floors at 0

	st := e.Snapshot()
	if st.CurrentQuestionIndex != 1 {
		t.Fatalf("per-question timeout must not navigate, cursor moved to %d", st.CurrentQuestionIndex)
	}
	if st.QuestionTimeRemaining["q2"] != 0 {
		t.Fatalf("expected q2 timer floored at 0, got %d", st.QuestionTimeRemaining["q2"])
	}
	if st.QuestionTimeTaken["q2"] != 3 {
		t.Fatalf("dwell keeps accruing past expiry, got %d", st.QuestionTimeTaken["q2"])
	}
}

func TestToggleFlagPairsAreIdempotent(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())

	_ = e.ToggleFlag("q1")
	if got := e.Snapshot().FlaggedQuestions; len(got) != 1 || got[0] != "q1" {
		t.Fatalf("expected q1 flagged, got %v", got)
	}
	_ = e.ToggleFlag("q1")
	if got := e.Snapshot().FlaggedQuestions; len(got) != 0 {
		t.Fatalf("expected flag removed, got %v", got)
	}
}

func TestResetQuizPreservesConfig(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()
	_ = e.AnswerQuestion("q1", []string{"opt1"})
	_ = e.ToggleFlag("q1")
	e.Tick()

	e.ResetQuiz()

	st := e.Snapshot()
	if st.Status != domain.StatusIntro {
		t.Fatalf("expected intro after reset, got %s", st.Status)
	}
	if len(st.Answers) != 0 || len(st.FlaggedQuestions) != 0 || len(st.QuestionTimeTaken) != 0 {
		t.Fatalf("expected cleared attempt data, got %+v", st)
	}
	if st.TimeRemaining != 60 {
		t.Fatalf("expected global timer re-seeded, got %d", st.TimeRemaining)
	}
	if st.Config == nil || st.Config.ID != "quiz-1" || len(st.Config.Questions) != 3 {
		t.Fatalf("reset must keep the loaded config, got %+v", st.Config)
	}
}

func TestClearStateReturnsToIdle(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()

	e.ClearState()

	st := e.Snapshot()
	if st.Status != domain.StatusIdle || st.Config != nil {
		t.Fatalf("expected idle with no config, got %s / %+v", st.Status, st.Config)
	}
}

func TestFinishQuizFromAnyPosition(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()

	e.FinishQuiz()
	if e.Status() != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", e.Status())
	}
}

func TestRecordEvaluationRejectsChoiceQuestions(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())

	if err := e.RecordEvaluation("q1", domain.Evaluation{Score: 1, MaxScore: 1}); !errors.Is(err, domain.ErrNotTextQuestion) {
		t.Fatalf("expected ErrNotTextQuestion, got %v", err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := NewEngine()
	e.SetConfig(sampleConfig())
	e.StartQuiz()
	_ = e.AnswerQuestion("q1", []string{"opt1"})
	_ = e.ToggleFlag("q2")
	e.Tick()
	_ = e.RecordEvaluation("q3", domain.Evaluation{Score: 1.5, MaxScore: 3, Feedback: "partial"})

	restored := NewEngine()
	if err := restored.Restore(e.Snapshot()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	a, b := e.Snapshot(), restored.Snapshot()
	if a.Status != b.Status || a.CurrentQuestionIndex != b.CurrentQuestionIndex || a.TimeRemaining != b.TimeRemaining {
		t.Fatalf("restored state diverges: %+v vs %+v", a, b)
	}
	if got := b.Answers["q1"]; len(got) != 1 || got[0] != "opt1" {
		t.Fatalf("expected answers restored, got %v", got)
	}
	if ev, ok := b.Evaluations["q3"]; !ok || ev.Score != 1.5 {
		t.Fatalf("expected evaluation restored, got %+v", b.Evaluations)
	}

	// The restored engine keeps ticking where the original left off.
	restored.Tick()
	if got := restored.Snapshot().TimeRemaining; got != a.TimeRemaining-1 {
		t.Fatalf("expected resume from last ticked value, got %d", got)
	}
}

func TestSubscribeReceivesMutations(t *testing.T) {
	e := NewEngine()
	ch, cancel := e.Subscribe()
	defer cancel()

	<-ch // initial snapshot

	e.SetConfig(sampleConfig())
	st := <-ch
	if st.Status != domain.StatusIntro {
		t.Fatalf("expected intro snapshot, got %s", st.Status)
	}
}
