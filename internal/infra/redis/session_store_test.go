package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"assessprep-service/internal/domain"
)

func TestSessionStorePersistAndRehydrate(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	eng, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	eng.SetConfig(sampleQuiz())
	eng.StartQuiz()
	if err := eng.AnswerQuestion("q1", []string{"o2"}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	eng.Tick()

	if err := store.Persist(ctx, "sess-1", eng.Snapshot()); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if !mr.Exists("assessprep:session:sess-1") {
		t.Fatalf("expected redis key to be set")
	}

	// A fresh store (new process) rehydrates the attempt mid-quiz.
	rehydrated := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	resumed, err := rehydrated.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	st := resumed.Snapshot()
	if st.Status != domain.StatusActive {
		t.Fatalf("expected active after resume, got %s", st.Status)
	}
	if got := st.Answers["q1"]; len(got) != 1 || got[0] != "o2" {
		t.Fatalf("expected answer restored, got %v", got)
	}
	if st.TimeRemaining != 59 {
		t.Fatalf("expected resume from last ticked value 59, got %d", st.TimeRemaining)
	}
}

func TestSessionStoreDeleteClearsKey(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	eng, _ := store.GetOrCreate(ctx, "sess-1")
	eng.SetConfig(sampleQuiz())
	if err := store.Persist(ctx, "sess-1", eng.Snapshot()); err != nil {
		t.Fatalf("persist: %v", err)
	}

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("assessprep:session:sess-1") {
		t.Fatalf("expected redis key removed")
	}
	if _, ok, _ := store.Get(ctx, "sess-1"); ok {
		t.Fatalf("expected engine dropped from local map")
	}
}
