package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"assessprep-service/internal/domain"
)

// QuizLoader loads quiz config JSONB from Postgres. Stored documents are
// already normalized (uploads and generated quizzes pass through the
// parse funnel before being saved), so they unmarshal straight into the
// domain type.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QuizConfig{}, domain.ErrQuizNotFound
		}
		return domain.QuizConfig{}, fmt.Errorf("load quiz: %w", err)
	}
	var cfg domain.QuizConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.QuizConfig{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return cfg, nil
}

// SaveQuiz upserts a normalized quiz document, making uploaded and
// AI-generated quizzes loadable like any other.
func (l *QuizLoader) SaveQuiz(ctx context.Context, cfg domain.QuizConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		cfg.ID, raw)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
