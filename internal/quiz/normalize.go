package quiz

import (
	"encoding/json"
	"fmt"
	"strconv"

	"assessprep-service/internal/domain"
)

// Parse decodes, normalizes and validates a quiz definition. This is the
// single funnel for both user uploads and AI-generated quizzes: whatever
// reaches the session engine afterwards is guaranteed to have unique ids,
// numeric points and resolvable section references.
//
// Normalization rules:
//   - missing question ids become q-<n>, option ids opt-<questionId>-<n>,
//     section ids section-<n>
//   - missing/unknown type defaults to single_choice
//   - missing or non-numeric points default to 1
//   - both imageUrl and imageURL casings are accepted
//   - questions nested under sections are flattened into the top-level
//     ordered list with sectionId stamped (generators sometimes emit both;
//     when sections carry questions, the nested ones win)
func Parse(raw []byte) (domain.QuizConfig, error) {
	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return domain.QuizConfig{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return normalize(rc)
}

type rawConfig struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	GlobalTimeLimit  json.RawMessage `json:"globalTimeLimit"`
	ShuffleQuestions bool            `json:"shuffleQuestions"`
	Sections         []rawSection    `json:"sections"`
	Questions        []rawQuestion   `json:"questions"`
}

type rawSection struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Questions []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Content       string          `json:"content"`
	SectionID     string          `json:"sectionId"`
	TimeLimit     json.RawMessage `json:"timeLimit"`
	Options       []rawOption     `json:"options"`
	Points        json.RawMessage `json:"points"`
	Justification string          `json:"justification"`
}

type rawOption struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	IsCorrect bool   `json:"isCorrect"`
	ImageURL  string `json:"imageUrl"`
	ImageURL2 string `json:"imageURL"`
}

func normalize(rc rawConfig) (domain.QuizConfig, error) {
	cfg := domain.QuizConfig{
		ID:               rc.ID,
		Title:            rc.Title,
		Description:      rc.Description,
		GlobalTimeLimit:  intOrZero(rc.GlobalTimeLimit),
		ShuffleQuestions: rc.ShuffleQuestions,
	}

	var flat []rawQuestion
	for i, rs := range rc.Sections {
		sec := domain.Section{ID: rs.ID, Title: rs.Title, Content: rs.Content}
		if sec.ID == "" {
			sec.ID = fmt.Sprintf("section-%d", i+1)
		}
		cfg.Sections = append(cfg.Sections, sec)
		for _, rq := range rs.Questions {
			rq.SectionID = sec.ID
			flat = append(flat, rq)
		}
	}
	// When sections carry their own question lists, top-level questions
	// are duplicates emitted by the generator and are dropped.
	if len(flat) == 0 {
		flat = rc.Questions
	}
	if len(flat) == 0 {
		return domain.QuizConfig{}, fmt.Errorf("%w: questions array is required and must not be empty", domain.ErrInvalidConfig)
	}

	seenQ := make(map[string]bool, len(flat))
	for i, rq := range flat {
		q := domain.Question{
			ID:            rq.ID,
			Type:          domain.QuestionType(rq.Type),
			Content:       rq.Content,
			SectionID:     rq.SectionID,
			TimeLimit:     intOrZero(rq.TimeLimit),
			Points:        pointsOrOne(rq.Points),
			Justification: rq.Justification,
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q-%d", i+1)
		}
		switch q.Type {
		case domain.SingleChoice, domain.MultipleChoice, domain.TextQuestion:
		default:
			q.Type = domain.SingleChoice
		}
		if seenQ[q.ID] {
			return domain.QuizConfig{}, fmt.Errorf("%w: duplicate question id %q", domain.ErrInvalidConfig, q.ID)
		}
		seenQ[q.ID] = true

		if q.SectionID != "" {
			if _, ok := cfg.SectionByID(q.SectionID); !ok {
				return domain.QuizConfig{}, fmt.Errorf("%w: question %q references unknown section %q", domain.ErrInvalidConfig, q.ID, q.SectionID)
			}
		}

		if q.Type != domain.TextQuestion {
			if len(rq.Options) == 0 {
				return domain.QuizConfig{}, fmt.Errorf("%w: choice question %q has no options", domain.ErrInvalidConfig, q.ID)
			}
			seenOpt := make(map[string]bool, len(rq.Options))
			for j, ro := range rq.Options {
				opt := domain.Option{
					ID:        ro.ID,
					Content:   ro.Content,
					IsCorrect: ro.IsCorrect,
					ImageURL:  ro.ImageURL,
				}
				if opt.ImageURL == "" {
					opt.ImageURL = ro.ImageURL2
				}
				if opt.ID == "" {
					opt.ID = fmt.Sprintf("opt-%s-%d", q.ID, j+1)
				}
				if seenOpt[opt.ID] {
					return domain.QuizConfig{}, fmt.Errorf("%w: duplicate option id %q in question %q", domain.ErrInvalidConfig, opt.ID, q.ID)
				}
				seenOpt[opt.ID] = true
				q.Options = append(q.Options, opt)
			}
		}

		cfg.Questions = append(cfg.Questions, q)
	}

	return cfg, nil
}

// intOrZero reads a JSON number field tolerantly: strings and junk
// collapse to 0 instead of failing the whole upload.
func intOrZero(raw json.RawMessage) int {
	f, ok := numeric(raw)
	if !ok {
		return 0
	}
	return int(f)
}

func pointsOrOne(raw json.RawMessage) float64 {
	f, ok := numeric(raw)
	if !ok || f <= 0 {
		return 1
	}
	return f
}

func numeric(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	// Generators occasionally quote numbers.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
