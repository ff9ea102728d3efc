package reactive

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/retroplay/backend/internal/db"
)

func setupTestEngine(t *testing.T) (*Engine, *db.Repository) {
	t.Helper()
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	repo, err := db.InitStore(store)
	if err != nil {
		t.Fatalf("Failed to initialize test store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	engine := NewEngine(repo)
	t.Cleanup(engine.Close)
	return engine, repo
}

// awaitResult waits for the next delivery on a subscription.
func awaitResult(t *testing.T, sub *Subscription) Result {
	t.Helper()
	select {
	case res := <-sub.Updates():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a query result")
		return Result{}
	}
}

func TestSubscribeDeliversInitialResult(t *testing.T) {
	engine, repo := setupTestEngine(t)

	if err := repo.AddFavorite("zelda"); err != nil {
		t.Fatalf("AddFavorite failed: %v", err)
	}

	// Gate the first execution so the loading state is observable.
	gate := make(chan struct{})
	sub := engine.Subscribe("favorites", func(q *Queries) (interface{}, error) {
		<-gate
		favorites, err := q.Favorites()
		if err != nil {
			return nil, err
		}
		games := make([]string, len(favorites))
		for i, f := range favorites {
			games[i] = f.GameID
		}
		return games, nil
	})
	defer sub.Unsubscribe()

	if cur := sub.Current(); !cur.Loading {
		t.Error("Subscription must start in the loading state")
	}
	close(gate)

	res := awaitResult(t, sub)
	if res.Loading {
		t.Error("Delivered result must not be loading")
	}
	if res.Err != nil {
		t.Fatalf("Query failed: %v", res.Err)
	}
	games := res.Value.([]string)
	if len(games) != 1 || games[0] != "zelda" {
		t.Errorf("Expected [zelda], got %v", games)
	}
}

func TestMutationTriggersRecomputation(t *testing.T) {
	engine, repo := setupTestEngine(t)

	sub := engine.Subscribe("favorite-count", func(q *Queries) (interface{}, error) {
		favorites, err := q.Favorites()
		if err != nil {
			return nil, err
		}
		return len(favorites), nil
	})
	defer sub.Unsubscribe()

	res := awaitResult(t, sub)
	if res.Value.(int) != 0 {
		t.Fatalf("Expected empty initial result, got %v", res.Value)
	}

	if _, err := repo.ToggleFavorite("metroid"); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	res = awaitResult(t, sub)
	if res.Value.(int) != 1 {
		t.Errorf("Expected recomputed count 1, got %v", res.Value)
	}
}

func TestUnrelatedMutationDoesNotRecompute(t *testing.T) {
	engine, repo := setupTestEngine(t)

	var runs int64
	sub := engine.Subscribe("favorites-only", func(q *Queries) (interface{}, error) {
		atomic.AddInt64(&runs, 1)
		return q.Favorites()
	})
	defer sub.Unsubscribe()

	awaitResult(t, sub)
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Fatalf("Expected one initial run, got %d", got)
	}

	// A save-state write touches a collection the query never read.
	if _, err := repo.UpsertSaveState("zelda", 0, []byte("x"), nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	select {
	case res := <-sub.Updates():
		t.Fatalf("Unexpected delivery after unrelated mutation: %+v", res)
	case <-time.After(200 * time.Millisecond):
	}
	if got := atomic.LoadInt64(&runs); got != 1 {
		t.Errorf("Query re-ran after unrelated mutation: %d runs", got)
	}
}

func TestUnsubscribeStopsDeliveries(t *testing.T) {
	engine, repo := setupTestEngine(t)

	sub := engine.Subscribe("favorites", func(q *Queries) (interface{}, error) {
		return q.Favorites()
	})

	awaitResult(t, sub)
	sub.Unsubscribe()

	if _, err := repo.ToggleFavorite("metroid"); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	select {
	case res, ok := <-sub.Updates():
		if ok {
			t.Fatalf("Delivery after unsubscribe: %+v", res)
		}
	case <-time.After(200 * time.Millisecond):
	}

	// Unsubscribing twice is safe.
	sub.Unsubscribe()
}

func TestUnsubscribeClosesUpdates(t *testing.T) {
	engine, _ := setupTestEngine(t)

	sub := engine.Subscribe("favorites", func(q *Queries) (interface{}, error) {
		return q.Favorites()
	})
	awaitResult(t, sub)

	// A consumer ranging over Updates must terminate once the
	// subscription ends.
	done := make(chan struct{})
	go func() {
		for range sub.Updates() {
		}
		close(done)
	}()

	sub.Unsubscribe()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Consumer still ranging after unsubscribe")
	}
}

func TestQueryErrorIsCaptured(t *testing.T) {
	engine, _ := setupTestEngine(t)

	sub := engine.Subscribe("failing", func(q *Queries) (interface{}, error) {
		q.Favorites()
		return nil, errFailure
	})
	defer sub.Unsubscribe()

	res := awaitResult(t, sub)
	if res.Err != errFailure {
		t.Errorf("Expected captured query error, got %v", res.Err)
	}
	if res.Loading {
		t.Error("Failed result must not be loading")
	}
}

func TestQueryPanicIsRecovered(t *testing.T) {
	engine, _ := setupTestEngine(t)

	sub := engine.Subscribe("panicking", func(q *Queries) (interface{}, error) {
		panic("boom")
	})
	defer sub.Unsubscribe()

	res := awaitResult(t, sub)
	if res.Err == nil {
		t.Fatal("Expected a panic to surface as an error")
	}
}

func TestCoalescedDeliveriesConvergeToLatest(t *testing.T) {
	engine, repo := setupTestEngine(t)

	sub := engine.Subscribe("favorite-count", func(q *Queries) (interface{}, error) {
		favorites, err := q.Favorites()
		if err != nil {
			return nil, err
		}
		return len(favorites), nil
	})
	defer sub.Unsubscribe()

	awaitResult(t, sub)

	games := []string{"a", "b", "c", "d", "e"}
	for _, g := range games {
		if err := repo.AddFavorite(g); err != nil {
			t.Fatalf("AddFavorite failed: %v", err)
		}
	}

	// Intermediate results may be dropped, but the final one must
	// reflect all five writes.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case res := <-sub.Updates():
			if res.Err != nil {
				t.Fatalf("Query failed: %v", res.Err)
			}
			if res.Value.(int) == len(games) {
				return
			}
		case <-deadline:
			t.Fatalf("Never converged to %d favorites; last seen %+v", len(games), sub.Current())
		}
	}
}

var errFailure = &testError{}

type testError struct{}

func (e *testError) Error() string { return "query rejected" }
