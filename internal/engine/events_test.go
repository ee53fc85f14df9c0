package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

const anne = "anne@example.com"

func TestEventStore_MergeIsIdempotent(t *testing.T) {
	fetcher := &fakeEvents{}
	fetcher.set(anne,
		event("1", engine.CategoryOffice, "2024-01-01T09:00", "2024-01-01T17:00"),
		event("2", engine.CategoryRemote, "2024-01-02T09:00", "2024-01-02T17:00"),
	)
	store := engine.NewEventStore(fetcher, nil, nil, nil)
	ctx := context.Background()

	if err := store.FetchAndMerge(ctx, anne, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	once := store.UserEvents(anne)

	if err := store.FetchAndMerge(ctx, anne, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	twice := store.UserEvents(anne)

	if len(once) != 2 || len(twice) != 2 {
		t.Fatalf("expected 2 events after each merge, got %d and %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("event %d: %s vs %s", i, once[i].ID, twice[i].ID)
		}
	}
	if twice[0].OwnerEmail != anne {
		t.Errorf("owner should be stamped, got %q", twice[0].OwnerEmail)
	}
}

func TestEventStore_ExistingWinsOverFetchedDuplicate(t *testing.T) {
	fetcher := &fakeEvents{}
	store := engine.NewEventStore(fetcher, nil, nil, nil)
	ctx := context.Background()

	fetcher.set(anne, engine.Event{ID: "7", Title: "old", Start: at("2024-01-01T09:00"), End: at("2024-01-01T10:00")})
	if err := store.FetchAndMerge(ctx, anne, time.Time{}, time.Time{}); err != nil {
		t.Fatal(err)
	}

	fetcher.set(anne,
		engine.Event{ID: "7", Title: "new", Start: at("2024-01-01T09:00"), End: at("2024-01-01T10:00")},
		engine.Event{ID: "8", Title: "other", Start: at("2024-01-08T09:00"), End: at("2024-01-08T10:00")},
	)
	if err := store.FetchAndMerge(ctx, anne, time.Time{}, time.Time{}); err != nil {
		t.Fatal(err)
	}

	got := store.UserEvents(anne)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Title != "old" {
		t.Errorf("held event should win, got title %q", got[0].Title)
	}
	if got[1].ID != "8" {
		t.Errorf("new event should be appended, got %q", got[1].ID)
	}
}

func TestEventStore_FetchFailureKeepsState(t *testing.T) {
	fetcher := &fakeEvents{}
	fetcher.set(anne, event("1", engine.CategoryOffice, "2024-01-01T09:00", "2024-01-01T17:00"))
	store := engine.NewEventStore(fetcher, nil, nil, nil)
	ctx := context.Background()

	if err := store.FetchAndMerge(ctx, anne, time.Time{}, time.Time{}); err != nil {
		t.Fatal(err)
	}

	fetcher.fail = map[string]error{anne: errBoom}
	err := store.FetchAndMerge(ctx, anne, time.Time{}, time.Time{})

	var fetchErr *engine.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("fetch error should wrap the cause")
	}
	if got := store.UserEvents(anne); len(got) != 1 {
		t.Errorf("prior state should survive, got %d events", len(got))
	}
}

func TestEventStore_Guards(t *testing.T) {
	fetcher := &fakeEvents{}
	ctx := context.Background()

	store := engine.NewEventStore(fetcher, nil, nil, nil)
	var vErr *engine.ValidationError
	if err := store.FetchAndMerge(ctx, "", time.Time{}, time.Time{}); !errors.As(err, &vErr) {
		t.Errorf("empty email: expected *ValidationError, got %v", err)
	}

	locked := engine.NewEventStore(fetcher, nil, fakeAuth(false), nil)
	if err := locked.FetchAndMerge(ctx, anne, time.Time{}, time.Time{}); !errors.Is(err, engine.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
	if n := fetcher.calls.Load(); n != 0 {
		t.Errorf("guards should not fetch, got %d calls", n)
	}
}

func TestEventStore_RemoveUserIsIdempotent(t *testing.T) {
	fetcher := &fakeEvents{}
	fetcher.set(anne, event("1", engine.CategoryOffice, "2024-01-01T09:00", "2024-01-01T17:00"))
	store := engine.NewEventStore(fetcher, nil, nil, nil)

	if err := store.FetchAndMerge(context.Background(), anne, time.Time{}, time.Time{}); err != nil {
		t.Fatal(err)
	}

	store.RemoveUser(anne)
	store.RemoveUser(anne)
	store.RemoveUser("nobody@example.com")

	if _, ok := store.Snapshot()[anne]; ok {
		t.Error("user should be gone from the snapshot")
	}
}

func TestEventStore_ConcurrentSameUserMerges(t *testing.T) {
	ctx := context.Background()
	store := engine.NewEventStore(&racingEvents{}, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.FetchAndMerge(ctx, anne, time.Time{}, time.Time{}); err != nil {
				t.Errorf("merge %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	got := store.UserEvents(anne)
	if len(got) != 21 {
		t.Fatalf("expected shared + 20 distinct events, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, e := range got {
		if seen[e.ID] {
			t.Errorf("duplicate id %s after concurrent merges", e.ID)
		}
		seen[e.ID] = true
	}
}

// racingEvents returns the shared event plus one fresh event per call.
type racingEvents struct {
	mu sync.Mutex
	n  int
}

func (r *racingEvents) FetchEvents(context.Context, string, time.Time, time.Time) ([]engine.Event, error) {
	r.mu.Lock()
	r.n++
	n := r.n
	r.mu.Unlock()

	return []engine.Event{
		event("shared", engine.CategoryOffice, "2024-01-01T09:00", "2024-01-01T17:00"),
		event(fmt.Sprintf("own-%d", n), engine.CategoryOffice, "2024-01-02T09:00", "2024-01-02T17:00"),
	}, nil
}

func TestEventStore_SubscribeAndCategories(t *testing.T) {
	fetcher := &fakeEvents{}
	fetcher.set(anne, event("1", engine.CategoryOffice, "2024-01-01T09:00", "2024-01-01T17:00"))
	store := engine.NewEventStore(fetcher, fakeCategories(engine.DefaultCategories), nil, nil)

	ch, cancel := store.Subscribe()
	defer cancel()

	if err := store.LoadCategories(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(store.Categories()); got != 4 {
		t.Errorf("expected 4 categories, got %d", got)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification after loading categories")
	}

	if err := store.FetchAndMerge(context.Background(), anne, time.Time{}, time.Time{}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification after merging")
	}
}
