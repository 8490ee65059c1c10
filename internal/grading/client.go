package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"assessprep-service/internal/domain"
	"assessprep-service/internal/quiz"
)

// DefaultBaseURL points at the hosted text-completion API.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModels is the fallback chain, tried in order until one answers.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-3-flash"}

// Client calls the hosted language model that generates quizzes from a
// syllabus and grades free-text answers. It is a best-effort collaborator:
// every method can fail on network or parse errors, and callers must treat
// a failure as "no result produced", never as fatal for the session.
type Client struct {
	apiKey     string
	baseURL    string
	models     []string
	httpClient *http.Client
}

// Options tunes a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL    string
	Models     []string
	HTTPClient *http.Client
}

func NewClient(apiKey string, opts Options) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		models:     DefaultModels,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if len(opts.Models) > 0 {
		c.models = opts.Models
	}
	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	}
	return c
}

// StructureMode selects flat question lists or section-grouped output.
type StructureMode string

const (
	StructureFlat     StructureMode = "flat"
	StructureSections StructureMode = "sections"
)

// TypeFilter restricts which question types the generator may emit.
type TypeFilter string

const (
	TypesMixed TypeFilter = "mixed"
	TypesMCQ   TypeFilter = "mcq"
	TypesText  TypeFilter = "text"
)

// GenerateRequest describes one quiz-generation call.
type GenerateRequest struct {
	Syllabus      string
	QuestionCount int
	Structure     StructureMode
	QuestionType  TypeFilter
}

// EvalItem pairs a text question with the student's answer for grading.
type EvalItem struct {
	Question       domain.Question
	SectionContent string
	Answer         string
}

// GenerateQuiz asks the model for a quiz matching the request and runs the
// response through the same normalization/validation funnel as a user
// upload, so the engine never sees an unvalidated config.
func (c *Client) GenerateQuiz(ctx context.Context, req GenerateRequest) (domain.QuizConfig, error) {
	if req.Syllabus == "" {
		return domain.QuizConfig{}, fmt.Errorf("syllabus content is required")
	}
	if req.QuestionCount <= 0 {
		req.QuestionCount = 5
	}
	if req.Structure == "" {
		req.Structure = StructureFlat
	}
	if req.QuestionType == "" {
		req.QuestionType = TypesMixed
	}

	text, err := c.generate(ctx, generatePrompt(req))
	if err != nil {
		return domain.QuizConfig{}, fmt.Errorf("generate quiz: %w", err)
	}

	cfg, err := quiz.Parse([]byte(extractJSON(text)))
	if err != nil {
		return domain.QuizConfig{}, fmt.Errorf("generated quiz failed validation: %w", err)
	}
	if cfg.ID == "" {
		cfg.ID = "gen-quiz-" + uuid.NewString()
	}
	return cfg, nil
}

// EvaluateAnswer grades one text answer. A non-empty appealComment turns
// the call into a re-grade of a disputed score, with the student's
// clarification included in the rubric context.
func (c *Client) EvaluateAnswer(ctx context.Context, item EvalItem, appealComment string) (domain.Evaluation, error) {
	maxPoints := item.Question.Points
	if maxPoints <= 0 {
		maxPoints = 1
	}
	if strings.TrimSpace(item.Answer) == "" {
		return domain.Evaluation{Score: 0, MaxScore: maxPoints, Feedback: "No answer provided."}, nil
	}

	text, err := c.generate(ctx, evaluatePrompt(item, appealComment))
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate answer: %w", err)
	}

	var parsed struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate answer: unparseable grader output: %w", err)
	}
	return domain.Evaluation{
		Score:    clamp(parsed.Score, 0, maxPoints),
		MaxScore: maxPoints,
		Feedback: parsed.Feedback,
	}, nil
}

// EvaluateBatch grades many text answers in one round-trip. Items the
// model skipped are absent from the result, leaving those questions
// ungraded rather than graded-zero.
func (c *Client) EvaluateBatch(ctx context.Context, items []EvalItem) (map[string]domain.Evaluation, error) {
	if len(items) == 0 {
		return map[string]domain.Evaluation{}, nil
	}

	text, err := c.generate(ctx, batchPrompt(items))
	if err != nil {
		return nil, fmt.Errorf("evaluate batch: %w", err)
	}

	var parsed struct {
		Evaluations map[string]struct {
			Score    float64 `json:"score"`
			Feedback string  `json:"feedback"`
		} `json:"evaluations"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return nil, fmt.Errorf("evaluate batch: unparseable grader output: %w", err)
	}

	out := make(map[string]domain.Evaluation, len(items))
	for _, item := range items {
		ev, ok := parsed.Evaluations[item.Question.ID]
		if !ok {
			continue
		}
		maxPoints := item.Question.Points
		if maxPoints <= 0 {
			maxPoints = 1
		}
		out[item.Question.ID] = domain.Evaluation{
			Score:    clamp(ev.Score, 0, maxPoints),
			MaxScore: maxPoints,
			Feedback: ev.Feedback,
		}
	}
	return out, nil
}

// generate runs the prompt against each model in the fallback chain until
// one returns text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, model := range c.models {
		text, err := c.generateWithModel(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no models configured")
	}
	return "", lastErr
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) generateWithModel(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("model %s: decode response: %w", model, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("model %s: %s", model, msg)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model %s: empty response", model)
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
