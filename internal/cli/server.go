package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"assessprep-service/internal/app"
	"assessprep-service/internal/config"
	"assessprep-service/internal/domain"
	"assessprep-service/internal/grading"
	"assessprep-service/internal/infra/memory"
	pgstore "assessprep-service/internal/infra/postgres"
	redisstore "assessprep-service/internal/infra/redis"
	transport "assessprep-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment prep server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// quizStorage is what the server needs from a quiz backend: loading for
// the repository cache and saving for uploads and generated quizzes.
type quizStorage interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizConfig, error)
	SaveQuiz(ctx context.Context, cfg domain.QuizConfig) error
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var storage quizStorage = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		storage = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, storage, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(storage, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
	}

	if cfg.Grading.APIKey == "" {
		log.Printf("no grading api key configured; text questions will stay ungraded")
	}
	grader := grading.NewClient(cfg.Grading.APIKey, grading.Options{
		BaseURL: cfg.Grading.BaseURL,
		Models:  cfg.Grading.Models,
	})

	service := app.NewSessionService(store, quizRepo, storage, grader)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections outlive any sane value.
	}

	go func() {
		log.Printf("starting assessment prep service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds the in-memory loader so the service is usable
// without Postgres; production deployments load from the database.
func sampleQuizzes() map[string]domain.QuizConfig {
	return map[string]domain.QuizConfig{
		"demo-physics": {
			ID:              "demo-physics",
			Title:           "Physics warm-up",
			GlobalTimeLimit: 300,
			Questions: []domain.Question{
				{
					ID:      "q-1",
					Type:    domain.SingleChoice,
					Content: "A ball is dropped from rest. Ignoring air resistance, what is its speed after 2 s?",
					Options: []domain.Option{
						{ID: "opt-q-1-1", Content: "9.8 m/s"},
						{ID: "opt-q-1-2", Content: "19.6 m/s", IsCorrect: true},
						{ID: "opt-q-1-3", Content: "4.9 m/s"},
					},
					Points: 1,
				},
				{
					ID:      "q-2",
					Type:    domain.MultipleChoice,
					Content: "Which of the following are vector quantities?",
					Options: []domain.Option{
						{ID: "opt-q-2-1", Content: "Velocity", IsCorrect: true},
						{ID: "opt-q-2-2", Content: "Speed"},
						{ID: "opt-q-2-3", Content: "Displacement", IsCorrect: true},
					},
					Points: 2,
				},
				{
					ID:        "q-3",
					Type:      domain.TextQuestion,
					Content:   "Explain why a satellite in circular orbit is accelerating even though its speed is constant.",
					TimeLimit: 120,
					Points:    4,
				},
			},
		},
	}
}
