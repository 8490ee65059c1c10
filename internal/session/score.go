package session

import (
	"math"

	"assessprep-service/internal/domain"
)

// Score derives the aggregate summary from a config and session state.
// It is a pure function: choice questions are all-or-nothing against the
// set of correct option ids, text questions contribute whatever their
// evaluation awarded (ungraded contributes 0 but is marked Graded=false
// so callers can tell it apart from an explicit zero).
func Score(cfg *domain.QuizConfig, st domain.SessionState) domain.ScoreSummary {
	summary := domain.ScoreSummary{}
	if cfg == nil {
		return summary
	}

	summary.Questions = make([]domain.QuestionResult, 0, len(cfg.Questions))
	for _, q := range cfg.Questions {
		pts := questionPoints(q)
		res := domain.QuestionResult{
			QuestionID: q.ID,
			MaxPoints:  pts,
			TimeTaken:  st.QuestionTimeTaken[q.ID],
		}

		switch q.Type {
		case domain.TextQuestion:
			if ev, ok := st.Evaluations[q.ID]; ok {
				res.Graded = true
				res.Awarded = ev.Score
				// A text question is fully correct only when the grader
				// awarded the whole rubric.
				res.Correct = ev.MaxScore > 0 && ev.Score == ev.MaxScore
			}
		default:
			res.Graded = true
			if choiceCorrect(q, st.Answers[q.ID]) {
				res.Correct = true
				res.Awarded = pts
			}
		}

		summary.MaxScore += pts
		summary.TotalScore += res.Awarded
		if res.Correct {
			summary.CorrectCount++
		}
		summary.Questions = append(summary.Questions, res)
	}

	for _, taken := range st.QuestionTimeTaken {
		summary.TotalTimeSpent += taken
	}

	if summary.MaxScore > 0 {
		summary.Percentage = int(math.Round(100 * summary.TotalScore / summary.MaxScore))
	}
	return summary
}

// choiceCorrect reports set equality between the selected option ids and
// the correct option ids. No partial credit for choice questions.
func choiceCorrect(q domain.Question, selected []string) bool {
	correct := make(map[string]bool)
	for _, opt := range q.Options {
		if opt.IsCorrect {
			correct[opt.ID] = true
		}
	}
	if len(correct) == 0 || len(selected) != len(correct) {
		return false
	}
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if !correct[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

func questionPoints(q domain.Question) float64 {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}
