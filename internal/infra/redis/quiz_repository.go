package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"assessprep-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error)
}

// QuizRepository caches whole normalized quiz documents in Redis
// (one JSON value per quiz) and falls back to a loader on cache miss.
// The session engine needs full question content, so unlike an
// answers-only cache the entire config is stored.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error) {
	key := r.key(quizID)

	if cfg, ok := r.fromCache(ctx, key); ok {
		return cfg, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cfg, ok := r.fromCache(ctx, key); ok {
			return cfg, nil
		}

		cfg, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizConfig{}, err
		}

		raw, err := json.Marshal(cfg)
		if err != nil {
			return domain.QuizConfig{}, fmt.Errorf("encode quiz %s: %w", quizID, err)
		}
		// best-effort cache fill
		_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()

		return cfg, nil
	})
	if err != nil {
		return domain.QuizConfig{}, err
	}
	return result.(domain.QuizConfig), nil
}

func (r *QuizRepository) fromCache(ctx context.Context, key string) (domain.QuizConfig, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		// A flaky cache counts as a miss; the loader is authoritative.
		return domain.QuizConfig{}, false
	}
	var cfg domain.QuizConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.QuizConfig{}, false
	}
	return cfg, true
}

func (r *QuizRepository) key(quizID string) string {
	return "assessprep:quiz:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
