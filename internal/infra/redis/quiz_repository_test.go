package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"assessprep-service/internal/domain"
	"assessprep-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuizLoader: memory.NewStaticQuizLoader(map[string]domain.QuizConfig{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(client, loader, time.Minute)

	got, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(got.Questions) != 1 || got.Questions[0].Content == "" {
		t.Fatalf("expected full question content cached, got %+v", got.Questions)
	}

	// Second call should hit cache, loader not incremented.
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if !mr.Exists("assessprep:quiz:quiz-1") {
		t.Fatalf("expected quiz cached under redis key")
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.QuizConfig {
	return domain.QuizConfig{
		ID:              "quiz-1",
		Title:           "Arithmetic check",
		GlobalTimeLimit: 60,
		Questions: []domain.Question{
			{
				ID:      "q1",
				Type:    domain.SingleChoice,
				Content: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Content: "3"},
					{ID: "o2", Content: "4", IsCorrect: true},
				},
				Points: 1,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
}
