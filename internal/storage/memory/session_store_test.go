package memory

import (
	"context"
	"sync"
	"testing"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	store := NewSessionStore()

	ws, err := store.Load(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ws.UserID != "new-user" || ws.CurrentFocus != "" {
		t.Errorf("unexpected default workspace: %+v", ws)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	ws, _ := store.Load(ctx, "alice")
	ws.CurrentFocus = "fiscal"
	if err := store.Save(ctx, ws); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.CurrentFocus != "fiscal" {
		t.Errorf("CurrentFocus = %q, want %q", got.CurrentFocus, "fiscal")
	}
}

// TestStoredStateIsIsolatedFromCaller verifies that mutating a loaded
// workspace does not change the stored copy until Save is called.
func TestStoredStateIsIsolatedFromCaller(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	ws, _ := store.Load(ctx, "alice")
	ws.CurrentFocus = "fiscal"
	if err := store.Save(ctx, ws); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutate the saved pointer after Save; the store must not observe it.
	ws.CurrentFocus = "product_catalog"
	ws.Fields["leak"] = true

	got, _ := store.Load(ctx, "alice")
	if got.CurrentFocus != "fiscal" {
		t.Errorf("CurrentFocus = %q, want %q", got.CurrentFocus, "fiscal")
	}
	if _, ok := got.Fields["leak"]; ok {
		t.Error("mutation after Save leaked into the store")
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := store.Load(ctx, "alice")
			if err != nil {
				t.Errorf("Load failed: %v", err)
				return
			}
			ws.CurrentFocus = "fiscal"
			if err := store.Save(ctx, ws); err != nil {
				t.Errorf("Save failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := store.Load(ctx, "alice")
	if got.CurrentFocus != "fiscal" {
		t.Errorf("CurrentFocus = %q, want %q", got.CurrentFocus, "fiscal")
	}
}
