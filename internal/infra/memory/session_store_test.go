package memory

import (
	"context"
	"testing"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	eng, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil || eng == nil {
		t.Fatalf("expected engine, got %v / %v", eng, err)
	}

	again, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil || again != eng {
		t.Fatalf("expected same engine on repeat GetOrCreate")
	}

	if _, ok, _ := store.Get(ctx, "sess-1"); !ok {
		t.Fatalf("expected session present")
	}

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "sess-1"); ok {
		t.Fatalf("expected session removed")
	}
}
