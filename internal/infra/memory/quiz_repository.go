package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"assessprep-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error)
}

// QuizRepository caches quiz configs with TTL to avoid repeated backing
// store hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	cfg       domain.QuizConfig
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.cfg, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.cfg, nil
		}
		r.mu.RUnlock()

		cfg, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizConfig{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			cfg:       cfg,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return domain.QuizConfig{}, err
	}
	return result.(domain.QuizConfig), nil
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a loader backed by an in-memory map. It doubles as
// the quiz saver for uploaded and generated quizzes when no database is
// configured.
type StaticQuizLoader struct {
	mu      sync.RWMutex
	quizzes map[string]domain.QuizConfig
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizConfig) *StaticQuizLoader {
	if quizzes == nil {
		quizzes = make(map[string]domain.QuizConfig)
	}
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizConfig, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cfg, ok := l.quizzes[quizID]; ok {
		return cfg, nil
	}
	return domain.QuizConfig{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) SaveQuiz(_ context.Context, cfg domain.QuizConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quizzes[cfg.ID] = cfg
	return nil
}
