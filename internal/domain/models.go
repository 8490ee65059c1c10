package domain

// Status is the lifecycle phase of a quiz session.
type Status string

const (
	// StatusIdle means no quiz is loaded yet.
	StatusIdle Status = "idle"
	// StatusIntro means a quiz is loaded but the attempt has not started.
	StatusIntro Status = "intro"
	// StatusActive means the attempt is in progress and timers are running.
	StatusActive Status = "active"
	// StatusCompleted is terminal for the attempt.
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusIntro, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// QuestionType discriminates how a question is answered and scored.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TextQuestion   QuestionType = "text"
)

// Option is one selectable answer for a choice question.
type Option struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	IsCorrect bool   `json:"isCorrect"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Question is a single quiz item. Content is opaque markdown/LaTeX;
// rendering is a client concern.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Content       string       `json:"content"`
	SectionID     string       `json:"sectionId,omitempty"`
	TimeLimit     int          `json:"timeLimit,omitempty"` // seconds, per-question countdown
	Options       []Option     `json:"options,omitempty"`
	Points        float64      `json:"points,omitempty"` // defaults to 1
	Justification string       `json:"justification,omitempty"`
}

// Section is background/context text shared by a group of questions.
type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// QuizConfig is the static quiz definition. It is immutable once loaded;
// a session replaces it wholesale via SetConfig.
type QuizConfig struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	GlobalTimeLimit  int        `json:"globalTimeLimit,omitempty"` // seconds, 0 = no overall deadline
	ShuffleQuestions bool       `json:"shuffleQuestions,omitempty"`
	Sections         []Section  `json:"sections,omitempty"`
	Questions        []Question `json:"questions"`
}

// QuestionByID returns the question with the given id, if present.
func (c *QuizConfig) QuestionByID(id string) (Question, bool) {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return c.Questions[i], true
		}
	}
	return Question{}, false
}

// SectionByID returns the section with the given id, if present.
func (c *QuizConfig) SectionByID(id string) (Section, bool) {
	for i := range c.Sections {
		if c.Sections[i].ID == id {
			return c.Sections[i], true
		}
	}
	return Section{}, false
}

// Evaluation is the grading outcome for one free-text answer, produced by
// the external text-completion collaborator. Absence of an Evaluation is
// observable ("ungraded") and distinct from a zero score.
type Evaluation struct {
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
	Feedback string  `json:"feedback"`
}

// SessionState is the full persistable snapshot of one quiz attempt.
// It round-trips through a single JSON document so a client reload can
// resume mid-quiz from the last persisted tick.
type SessionState struct {
	Config                *QuizConfig           `json:"config,omitempty"`
	Status                Status                `json:"status"`
	CurrentQuestionIndex  int                   `json:"currentQuestionIndex"`
	Answers               map[string][]string   `json:"answers"`
	FlaggedQuestions      []string              `json:"flaggedQuestions"`
	TimeRemaining         int                   `json:"timeRemaining"`
	QuestionTimeRemaining map[string]int        `json:"questionTimeRemaining"`
	QuestionTimeTaken     map[string]int        `json:"questionTimeTaken"`
	Evaluations           map[string]Evaluation `json:"evaluations"`
}

// QuestionResult is the per-question line of a score summary.
type QuestionResult struct {
	QuestionID string  `json:"questionId"`
	Awarded    float64 `json:"awarded"`
	MaxPoints  float64 `json:"maxPoints"`
	Correct    bool    `json:"correct"`
	Graded     bool    `json:"graded"` // false for text questions still awaiting evaluation
	TimeTaken  int     `json:"timeTaken"`
}

// ScoreSummary is the aggregate scoring view, recomputed on demand rather
// than stored.
type ScoreSummary struct {
	TotalScore     float64          `json:"totalScore"`
	MaxScore       float64          `json:"maxScore"`
	CorrectCount   int              `json:"correctCount"`
	Percentage     int              `json:"percentage"`
	TotalTimeSpent int              `json:"totalTimeSpent"`
	Questions      []QuestionResult `json:"questions"`
}
