package domain

import "errors"

var (
	// ErrNoQuizLoaded is returned by session operations that need a config.
	ErrNoQuizLoaded = errors.New("no quiz loaded")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionNotFound indicates a question ID outside the loaded config.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrIndexOutOfRange indicates a navigation index outside [0, len(questions)).
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrInvalidConfig indicates an uploaded or generated quiz definition
	// failed validation; the session state is left untouched.
	ErrInvalidConfig = errors.New("invalid quiz config")
	// ErrNotTextQuestion is returned when an evaluation is recorded against
	// a choice question.
	ErrNotTextQuestion = errors.New("question is not a text question")
)
